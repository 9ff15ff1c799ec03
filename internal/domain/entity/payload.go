package entity

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
)

var validate = validator.New()

// Payload is a decoded outbox payload. Each entity type has its own
// variant; decoding happens exactly once, at executor dispatch time.
type Payload interface {
	EntityType() Type
	// DocID is the remote document id. May be empty on create.
	DocID() string
	// Owner is the owning user id resolved from the type's owner field.
	Owner() string
	// UpdatedAtMillis is the last-writer-wins ordering signal.
	UpdatedAtMillis() int64
	// Doc renders the payload as the document body sent to the remote
	// store.
	Doc() (map[string]any, error)
}

type Product struct {
	ID          string   `json:"id"`
	SellerID    string   `json:"sellerId" validate:"required"`
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description,omitempty"`
	PriceCents  int64    `json:"priceCents" validate:"gte=0"`
	Category    string   `json:"category,omitempty"`
	Active      bool     `json:"active"`
	ImageURLs   []string `json:"imageUrls,omitempty"`
	UpdatedAt   int64    `json:"updatedAt" validate:"gt=0"`
}

func (p *Product) EntityType() Type { return TypeProduct }
func (p *Product) DocID() string { return p.ID }
func (p *Product) Owner() string { return p.SellerID }
func (p *Product) UpdatedAtMillis() int64 { return p.UpdatedAt }
func (p *Product) Doc() (map[string]any, error) { return toDoc(p) }

type Service struct {
	ID          string `json:"id"`
	ProviderID  string `json:"providerId" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description,omitempty"`
	PriceCents  int64  `json:"priceCents" validate:"gte=0"`
	Category    string `json:"category,omitempty"`
	Active      bool   `json:"active"`
	UpdatedAt   int64  `json:"updatedAt" validate:"gt=0"`
}

func (s *Service) EntityType() Type { return TypeService }
func (s *Service) DocID() string { return s.ID }
func (s *Service) Owner() string { return s.ProviderID }
func (s *Service) UpdatedAtMillis() int64 { return s.UpdatedAt }
func (s *Service) Doc() (map[string]any, error) { return toDoc(s) }

type OrderItem struct {
	ProductID string `json:"productId" validate:"required"`
	Quantity  int    `json:"quantity" validate:"gt=0"`
	UnitCents int64  `json:"unitCents" validate:"gte=0"`
}

type Order struct {
	ID         string      `json:"id"`
	ClientID   string      `json:"clientId" validate:"required"`
	SellerID   string      `json:"sellerId" validate:"required"`
	Status     string      `json:"status" validate:"required"`
	TotalCents int64       `json:"totalCents" validate:"gte=0"`
	Items      []OrderItem `json:"items,omitempty" validate:"dive"`
	UpdatedAt  int64       `json:"updatedAt" validate:"gt=0"`
}

func (o *Order) EntityType() Type { return TypeOrder }
func (o *Order) DocID() string { return o.ID }
func (o *Order) Owner() string { return o.ClientID }
func (o *Order) UpdatedAtMillis() int64 { return o.UpdatedAt }
func (o *Order) Doc() (map[string]any, error) { return toDoc(o) }

type Address struct {
	ID        string `json:"id"`
	UserID    string `json:"userId" validate:"required"`
	Street    string `json:"street" validate:"required"`
	Number    string `json:"number,omitempty"`
	District  string `json:"district,omitempty"`
	City      string `json:"city" validate:"required"`
	State     string `json:"state,omitempty"`
	ZipCode   string `json:"zipCode,omitempty"`
	Country   string `json:"country,omitempty"`
	UpdatedAt int64  `json:"updatedAt" validate:"gt=0"`
}

func (a *Address) EntityType() Type { return TypeAddress }
func (a *Address) DocID() string { return a.ID }
func (a *Address) Owner() string { return a.UserID }
func (a *Address) UpdatedAtMillis() int64 { return a.UpdatedAt }
func (a *Address) Doc() (map[string]any, error) { return toDoc(a) }

type Card struct {
	ID         string `json:"id"`
	UserID     string `json:"userId" validate:"required"`
	Brand      string `json:"brand,omitempty"`
	Last4      string `json:"last4" validate:"required,len=4,numeric"`
	HolderName string `json:"holderName,omitempty"`
	ExpMonth   int    `json:"expMonth" validate:"min=1,max=12"`
	ExpYear    int    `json:"expYear" validate:"gte=2000"`
	UpdatedAt  int64  `json:"updatedAt" validate:"gt=0"`
}

func (c *Card) EntityType() Type { return TypeCard }
func (c *Card) DocID() string { return c.ID }
func (c *Card) Owner() string { return c.UserID }
func (c *Card) UpdatedAtMillis() int64 { return c.UpdatedAt }
func (c *Card) Doc() (map[string]any, error) { return toDoc(c) }

type UserProfile struct {
	ID        string  `json:"id" validate:"required"`
	Name      string  `json:"name,omitempty"`
	Email     string  `json:"email,omitempty" validate:"omitempty,email"`
	Phone     string  `json:"phone,omitempty"`
	City      string  `json:"city,omitempty"`
	Role      string  `json:"role,omitempty"`
	Rating    float64 `json:"rating,omitempty"`
	PhotoURL  string  `json:"photoURL,omitempty"`
	UpdatedAt int64   `json:"updatedAt" validate:"gt=0"`
}

func (u *UserProfile) EntityType() Type { return TypeUserProfile }
func (u *UserProfile) DocID() string { return u.ID }
func (u *UserProfile) Owner() string { return u.ID }
func (u *UserProfile) UpdatedAtMillis() int64 { return u.UpdatedAt }
func (u *UserProfile) Doc() (map[string]any, error) { return toDoc(u) }

// Settings are stored on the owner's user document, so the document id
// is the user id and writes always merge.
type Settings struct {
	UserID               string `json:"userId" validate:"required"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
	Language             string `json:"language,omitempty"`
	Theme                string `json:"theme,omitempty"`
	UpdatedAt            int64  `json:"updatedAt" validate:"gt=0"`
}

func (s *Settings) EntityType() Type { return TypeSettings }
func (s *Settings) DocID() string { return s.UserID }
func (s *Settings) Owner() string { return s.UserID }
func (s *Settings) UpdatedAtMillis() int64 { return s.UpdatedAt }
func (s *Settings) Doc() (map[string]any, error) { return toDoc(s) }

type Post struct {
	ID        string   `json:"id"`
	UserID    string   `json:"userId" validate:"required"`
	Text      string   `json:"text,omitempty"`
	MediaURLs []string `json:"mediaUrls,omitempty"`
	Active    bool     `json:"active"`
	UpdatedAt int64    `json:"updatedAt" validate:"gt=0"`
}

func (p *Post) EntityType() Type { return TypePost }
func (p *Post) DocID() string { return p.ID }
func (p *Post) Owner() string { return p.UserID }
func (p *Post) UpdatedAtMillis() int64 { return p.UpdatedAt }
func (p *Post) Doc() (map[string]any, error) { return toDoc(p) }

// DecodePayload unmarshals and validates an outbox payload for the
// given type. Failures are permanent: the sync loop fails such entries
// fast instead of burning retries on them.
func DecodePayload(t Type, raw json.RawMessage) (Payload, error) {
	var p Payload
	switch t {
	case TypeProduct:
		p = &Product{}
	case TypeService:
		p = &Service{}
	case TypeOrder:
		p = &Order{}
	case TypeAddress:
		p = &Address{}
	case TypeCard:
		p = &Card{}
	case TypeUserProfile:
		p = &UserProfile{}
	case TypeSettings:
		p = &Settings{}
	case TypePost:
		p = &Post{}
	default:
		return nil, fmt.Errorf("%w: %q", domainErrors.ErrUnknownEntityType, t)
	}

	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", domainErrors.ErrMalformedPayload, t, err)
	}
	if err := validate.Struct(p); err != nil {
		return nil, fmt.Errorf("%w: validate %s: %v", domainErrors.ErrMalformedPayload, t, err)
	}
	return p, nil
}

func toDoc(v any) (map[string]any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("payload to document: %w", err)
	}
	return doc, nil
}
