package testutil

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/taskgoapp/taskgo-sync/internal/domain/entity"
	"github.com/taskgoapp/taskgo-sync/internal/domain/outbox"
)

func NewTestProduct(sellerID string, updatedAtMillis int64) *entity.Product {
	return &entity.Product{
		ID:         uuid.New().String(),
		SellerID:   sellerID,
		Title:      "Cordless drill",
		PriceCents: 12900,
		Category:   "tools",
		Active:     true,
		UpdatedAt:  updatedAtMillis,
	}
}

func NewTestService(providerID string, updatedAtMillis int64) *entity.Service {
	return &entity.Service{
		ID:         uuid.New().String(),
		ProviderID: providerID,
		Title:      "Furniture assembly",
		PriceCents: 8000,
		Category:   "home",
		Active:     true,
		UpdatedAt:  updatedAtMillis,
	}
}

func NewTestOrder(clientID, sellerID string, updatedAtMillis int64) *entity.Order {
	return &entity.Order{
		ID:         uuid.New().String(),
		ClientID:   clientID,
		SellerID:   sellerID,
		Status:     "placed",
		TotalCents: 12900,
		Items: []entity.OrderItem{
			{ProductID: uuid.New().String(), Quantity: 1, UnitCents: 12900},
		},
		UpdatedAt: updatedAtMillis,
	}
}

func NewTestAddress(userID string, updatedAtMillis int64) *entity.Address {
	return &entity.Address{
		ID:        uuid.New().String(),
		UserID:    userID,
		Street:    "Rua das Flores",
		Number:    "120",
		City:      "Fortaleza",
		State:     "CE",
		UpdatedAt: updatedAtMillis,
	}
}

func NewTestCard(userID string, updatedAtMillis int64) *entity.Card {
	return &entity.Card{
		ID:        uuid.New().String(),
		UserID:    userID,
		Brand:     "visa",
		Last4:     "4242",
		ExpMonth:  12,
		ExpYear:   2030,
		UpdatedAt: updatedAtMillis,
	}
}

// NewTestEntry builds a pending entry due immediately for the payload.
func NewTestEntry(p entity.Payload, op outbox.Operation) *outbox.Entry {
	raw, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return outbox.NewEntry(p.EntityType(), p.DocID(), op, raw, time.Now())
}

// RawPayload marshals v for tests that bypass the typed payloads.
func RawPayload(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
