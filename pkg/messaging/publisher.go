// Package messaging defines the outbound event contract shared by publishers.
package messaging

import (
	"context"
)

const (
	// StockChangedSubject carries every purchase and restock.
	StockChangedSubject = "sweets.stock.changed"
	// SweetsSubjects matches all subjects of the sweets stream.
	SweetsSubjects = "sweets.>"
)

type Event interface {
	Subject() string
	Payload() ([]byte, error)
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher drops every event. It is used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
