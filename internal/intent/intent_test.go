package intent

import (
	"encoding/json"
	"testing"
	"time"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func sampleSnapshot() model.Snapshot {
	return model.NewSnapshot([]model.SnapshotLine{
		{ProductID: "p-1", ProductName: "Mug", Quantity: 2, UnitPrice: decimal.RequireFromString("9.50")},
		{ProductID: "p-2", ProductName: "Tee", Quantity: 1, UnitPrice: decimal.RequireFromString("20.00")},
	}, "usd")
}

func TestSigner_SignVerify_RoundTrip(t *testing.T) {
	signer := NewSigner(testKey)

	metadata, err := signer.Sign(sampleSnapshot())
	require.NoError(t, err)
	assert.Equal(t, "39.00", metadata[KeySubtotal])
	assert.Equal(t, "39.00", metadata[KeyTotal])
	assert.Equal(t, "usd", metadata[KeyCurrency])
	assert.NotEmpty(t, metadata[KeyIntent])

	snapshot, err := signer.Verify(metadata)
	require.NoError(t, err)
	require.Len(t, snapshot.Lines, 2)
	assert.Equal(t, "Mug", snapshot.Lines[0].ProductName)
	assert.True(t, snapshot.Lines[0].UnitPrice.Equal(decimal.RequireFromString("9.5")))
	assert.True(t, snapshot.Total.Equal(decimal.NewFromInt(39)))
}

func TestSigner_Verify_Tampered(t *testing.T) {
	signer := NewSigner(testKey)

	tests := []struct {
		name   string
		mutate func(m map[string]string)
	}{
		{
			name:   "total lowered",
			mutate: func(m map[string]string) { m[KeyTotal] = "1.00" },
		},
		{
			name: "unit price edited",
			mutate: func(m map[string]string) {
				var lines []model.SnapshotLine
				_ = json.Unmarshal([]byte(m[KeyItems]), &lines)
				lines[0].UnitPrice = decimal.RequireFromString("0.01")
				b, _ := json.Marshal(lines)
				m[KeyItems] = string(b)
			},
		},
		{
			name:   "currency swapped",
			mutate: func(m map[string]string) { m[KeyCurrency] = "jpy" },
		},
		{
			name:   "token removed",
			mutate: func(m map[string]string) { delete(m, KeyIntent) },
		},
		{
			name:   "token garbled",
			mutate: func(m map[string]string) { m[KeyIntent] = m[KeyIntent] + "x" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			metadata, err := signer.Sign(sampleSnapshot())
			require.NoError(t, err)

			tt.mutate(metadata)

			_, err = signer.Verify(metadata)
			require.Error(t, err)
			assert.ErrorIs(t, err, model.ErrInvalidSession)
		})
	}
}

func TestSigner_Verify_WrongKey(t *testing.T) {
	metadata, err := NewSigner(testKey).Sign(sampleSnapshot())
	require.NoError(t, err)

	_, err = NewSigner([]byte("another-key-another-key-another!!")).Verify(metadata)
	assert.ErrorIs(t, err, model.ErrInvalidSession)
}

func TestSigner_Verify_EmptySnapshotRejected(t *testing.T) {
	signer := NewSigner(testKey)
	metadata, err := signer.Sign(model.NewSnapshot(nil, "usd"))
	require.NoError(t, err)

	_, err = signer.Verify(metadata)
	assert.ErrorIs(t, err, model.ErrInvalidSession)
}

func TestSigner_Verify_IssuedAtInFuture(t *testing.T) {
	future := &hmacSigner{key: testKey, now: func() time.Time { return time.Now().Add(time.Hour) }}
	metadata, err := future.Sign(sampleSnapshot())
	require.NoError(t, err)

	_, err = NewSigner(testKey).Verify(metadata)
	assert.ErrorIs(t, err, model.ErrInvalidSession)
}
