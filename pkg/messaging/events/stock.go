// Package events contains the payloads published on the message bus.
package events

import (
	"encoding/json"
	"time"

	"github.com/abgdnv/sweetshop/pkg/messaging"
	"github.com/google/uuid"
)

type StockChangeReason string

const (
	ReasonPurchase StockChangeReason = "PURCHASE"
	ReasonRestock  StockChangeReason = "RESTOCK"
)

// StockChangedEvent is emitted after a purchase or a restock has been committed.
// Delta is negative for purchases. Quantity is the stock level after the change.
type StockChangedEvent struct {
	Carrier    map[string]string `json:"carrier,omitempty"`
	SweetID    uuid.UUID         `json:"sweet_id"`
	Name       string            `json:"name"`
	Delta      int32             `json:"delta"`
	Quantity   int32             `json:"quantity"`
	Reason     StockChangeReason `json:"reason"`
	OccurredAt time.Time         `json:"occurred_at"`
}

func (e StockChangedEvent) Subject() string {
	return messaging.StockChangedSubject
}

func (e StockChangedEvent) Payload() ([]byte, error) {
	return json.Marshal(e)
}
