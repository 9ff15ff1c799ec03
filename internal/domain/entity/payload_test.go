package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainErrors "github.com/taskgoapp/taskgo-sync/internal/domain/errors"
)

func TestDecodePayload_Product(t *testing.T) {
	raw := []byte(`{"id":"p1","sellerId":"u1","title":"drill","priceCents":12900,"active":true,"updatedAt":100}`)

	p, err := DecodePayload(TypeProduct, raw)
	require.NoError(t, err)

	assert.Equal(t, TypeProduct, p.EntityType())
	assert.Equal(t, "p1", p.DocID())
	assert.Equal(t, "u1", p.Owner())
	assert.EqualValues(t, 100, p.UpdatedAtMillis())

	doc, err := p.Doc()
	require.NoError(t, err)
	assert.Equal(t, "drill", doc["title"])
	assert.EqualValues(t, 12900, doc["priceCents"])
}

func TestDecodePayload_UnknownType(t *testing.T) {
	_, err := DecodePayload(Type("invoice"), []byte(`{}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrUnknownEntityType)
}

func TestDecodePayload_InvalidJSON(t *testing.T) {
	_, err := DecodePayload(TypeProduct, []byte(`{broken`))
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
}

func TestDecodePayload_ValidationFailures(t *testing.T) {
	tests := []struct {
		name string
		t    Type
		raw  string
	}{
		{"product missing seller", TypeProduct, `{"id":"p1","title":"x","updatedAt":1}`},
		{"product missing updatedAt", TypeProduct, `{"id":"p1","sellerId":"u1","title":"x"}`},
		{"product negative price", TypeProduct, `{"id":"p1","sellerId":"u1","title":"x","priceCents":-1,"updatedAt":1}`},
		{"service missing provider", TypeService, `{"id":"s1","title":"x","updatedAt":1}`},
		{"order missing status", TypeOrder, `{"id":"o1","clientId":"u1","sellerId":"u2","updatedAt":1}`},
		{"card bad last4", TypeCard, `{"id":"c1","userId":"u1","last4":"12ab","expMonth":1,"expYear":2030,"updatedAt":1}`},
		{"card bad month", TypeCard, `{"id":"c1","userId":"u1","last4":"4242","expMonth":13,"expYear":2030,"updatedAt":1}`},
		{"profile bad email", TypeUserProfile, `{"id":"u1","email":"nope","updatedAt":1}`},
		{"settings missing user", TypeSettings, `{"language":"en","updatedAt":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePayload(tt.t, []byte(tt.raw))
			require.Error(t, err)
			assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
		})
	}
}

func TestDecodePayload_SettingsDocTargetsUserDocument(t *testing.T) {
	p, err := DecodePayload(TypeSettings, []byte(`{"userId":"u1","notificationsEnabled":true,"updatedAt":5}`))
	require.NoError(t, err)

	assert.Equal(t, "u1", p.DocID(), "settings live on the owner's user document")
	assert.Equal(t, "u1", p.Owner())
}

func TestDecodePayload_OrderItems(t *testing.T) {
	raw := []byte(`{"id":"o1","clientId":"u1","sellerId":"u2","status":"placed","totalCents":500,
		"items":[{"productId":"p1","quantity":2,"unitCents":250}],"updatedAt":1}`)

	p, err := DecodePayload(TypeOrder, raw)
	require.NoError(t, err)

	o := p.(*Order)
	require.Len(t, o.Items, 1)
	assert.Equal(t, 2, o.Items[0].Quantity)
}

func TestDecodePayload_OrderItemValidationDives(t *testing.T) {
	raw := []byte(`{"id":"o1","clientId":"u1","sellerId":"u2","status":"placed","totalCents":500,
		"items":[{"productId":"","quantity":0,"unitCents":250}],"updatedAt":1}`)

	_, err := DecodePayload(TypeOrder, raw)
	require.Error(t, err)
	assert.ErrorIs(t, err, domainErrors.ErrMalformedPayload)
}
