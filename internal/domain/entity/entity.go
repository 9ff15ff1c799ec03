// Package entity declares the synced entity types, their strongly typed
// payloads, and the per-type replication descriptors the executor and
// the trigger pair dispatch on.
package entity

import (
	"fmt"
)

// Type identifies a synced entity kind. The values are the wire names
// used in the outbox table, stream events and document collections.
type Type string

const (
	TypeProduct     Type = "product"
	TypeService     Type = "service"
	TypeOrder       Type = "order"
	TypeAddress     Type = "address"
	TypeCard        Type = "card"
	TypeUserProfile Type = "userProfile"
	TypeSettings    Type = "settings"
	TypePost        Type = "post"
)

// ParseType maps a wire name back to a Type.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeProduct, TypeService, TypeOrder, TypeAddress, TypeCard, TypeUserProfile, TypeSettings, TypePost:
		return Type(s), nil
	}
	return "", fmt.Errorf("entity type %q: unknown", s)
}

// DeletePolicy tells the executor how a remote delete is expressed.
// The soft/hard split per type is inherited from the source system and
// is a product decision, not an accident.
type DeletePolicy int

const (
	// DeleteUnsupported rejects delete as a permanent error.
	DeleteUnsupported DeletePolicy = iota
	// DeleteHard removes the remote document.
	DeleteHard
	// DeleteSoft flags the remote document inactive instead of
	// removing it.
	DeleteSoft
)

// Descriptor carries everything type-specific the sync engine needs:
// which public collection the type lives in, which payload field names
// the owner, how deletes are expressed, and whether the private/public
// replica pair applies.
type Descriptor struct {
	Type Type

	// PublicCollection is the top-level collection for the type.
	PublicCollection string

	// PrivateSubcollection is the per-owner subcollection name under
	// users/{ownerId}. Empty for types that are not replicated.
	PrivateSubcollection string

	// OwnerField is the payload field holding the owning user id.
	OwnerField string

	// Replicated marks types mirrored between the owner's private
	// subcollection and the public collection.
	Replicated bool

	// Delete is the remote delete policy for the type.
	Delete DeletePolicy

	// MergeWrite makes upserts merge into the existing document
	// instead of replacing it.
	MergeWrite bool
}

var descriptors = map[Type]Descriptor{
	TypeProduct: {
		Type:                 TypeProduct,
		PublicCollection:     "products",
		PrivateSubcollection: "products",
		OwnerField:           "sellerId",
		Replicated:           true,
		Delete:               DeleteSoft,
	},
	TypeService: {
		Type:                 TypeService,
		PublicCollection:     "services",
		PrivateSubcollection: "services",
		OwnerField:           "providerId",
		Replicated:           true,
		Delete:               DeleteHard,
	},
	TypeOrder: {
		Type:                 TypeOrder,
		PublicCollection:     "orders",
		PrivateSubcollection: "orders",
		OwnerField:           "clientId",
		Replicated:           true,
		Delete:               DeleteUnsupported,
	},
	TypePost: {
		Type:                 TypePost,
		PublicCollection:     "posts",
		PrivateSubcollection: "posts",
		OwnerField:           "userId",
		Replicated:           true,
		Delete:               DeleteHard,
	},
	TypeAddress: {
		Type:             TypeAddress,
		PublicCollection: "addresses",
		OwnerField:       "userId",
		Delete:           DeleteHard,
	},
	TypeCard: {
		Type:             TypeCard,
		PublicCollection: "cards",
		OwnerField:       "userId",
		Delete:           DeleteHard,
	},
	TypeUserProfile: {
		Type:             TypeUserProfile,
		PublicCollection: "users",
		OwnerField:       "id",
		Delete:           DeleteUnsupported,
		MergeWrite:       true,
	},
	// Settings have no document of their own: the fields merge into
	// the owner's users/{id} document.
	TypeSettings: {
		Type:             TypeSettings,
		PublicCollection: "users",
		OwnerField:       "userId",
		Delete:           DeleteUnsupported,
		MergeWrite:       true,
	},
}

// DescriptorFor returns the descriptor for the type.
func DescriptorFor(t Type) (Descriptor, error) {
	d, ok := descriptors[t]
	if !ok {
		return Descriptor{}, fmt.Errorf("entity type %q: no descriptor", t)
	}
	return d, nil
}

// ReplicatedByPublicCollection resolves a public collection name back
// to its replicated descriptor. Non-replicated collections resolve to
// ok=false.
func ReplicatedByPublicCollection(collection string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Replicated && d.PublicCollection == collection {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ReplicatedBySubcollection resolves a private subcollection name.
func ReplicatedBySubcollection(sub string) (Descriptor, bool) {
	for _, d := range descriptors {
		if d.Replicated && d.PrivateSubcollection == sub {
			return d, true
		}
	}
	return Descriptor{}, false
}

// OutboxTypes lists the types local mutations may enqueue. Posts are
// replicated server-side only and never pass through the outbox.
func OutboxTypes() []Type {
	return []Type{TypeProduct, TypeService, TypeOrder, TypeAddress, TypeCard, TypeUserProfile, TypeSettings}
}
