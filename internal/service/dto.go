package service

import (
	"github.com/abgdnv/sweetshop/internal/store"
	"github.com/google/uuid"
)

// SweetDto represents the data transfer object for a sweet.
// Version is read-only and reflects the optimistic locking stamp of the stored record.
type SweetDto struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	Category string    `json:"category"`
	Price    float64   `json:"price"`
	Quantity int32     `json:"quantity"`
	Version  int32     `json:"version"`
}

// SweetCreateDto represents the data transfer object for creating a new sweet.
// Sign checks of price and quantity belong to the inventory engine, not to the tags.
type SweetCreateDto struct {
	Name     string  `json:"name"     validate:"required,max=100"`
	Category string  `json:"category" validate:"max=100"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
}

// SweetUpdateDto replaces every mutable field of a sweet.
type SweetUpdateDto struct {
	Name     string  `json:"name"     validate:"required,max=100"`
	Category string  `json:"category" validate:"max=100"`
	Price    float64 `json:"price"`
	Quantity int32   `json:"quantity"`
}

// StockReceipt confirms a purchase or a restock.
type StockReceipt struct {
	Message string   `json:"message"`
	Sweet   SweetDto `json:"sweet"`
}

// SearchFilter holds the optional catalog predicates. Nil fields are not applied.
type SearchFilter struct {
	Name     *string
	Category *string
	MinPrice *float64
	MaxPrice *float64
}

func toDto(s *store.Sweet) SweetDto {
	return SweetDto{
		ID:       s.ID,
		Name:     s.Name,
		Category: s.Category,
		Price:    s.Price,
		Quantity: s.Quantity,
		Version:  s.Version,
	}
}

func toCreateParams(d SweetCreateDto) store.CreateParams {
	return store.CreateParams{
		Name:     d.Name,
		Category: d.Category,
		Price:    d.Price,
		Quantity: d.Quantity,
	}
}

// toUpdateParams keeps every field of current and stamps it with the version that was read.
func toUpdateParams(current store.Sweet) store.UpdateParams {
	return store.UpdateParams{
		ID:       current.ID,
		Name:     current.Name,
		Category: current.Category,
		Price:    current.Price,
		Quantity: current.Quantity,
		Version:  current.Version,
	}
}
