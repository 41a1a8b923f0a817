package qr

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-dispatch/internal/models"
)

var pngHeader = []byte{0x89, 'P', 'N', 'G'}

func sampleTicket() models.Ticket {
	return models.Ticket{
		ID:            "ticket-1",
		TicketNumber:  "TKT-1700000000-000042",
		ManifestID:    "manifest-1",
		PassengerID:   "passenger-1",
		RouteID:       "route-1",
		SeatNumber:    12,
		AmountPaid:    85000,
		PaymentMethod: models.PaymentCash,
		State:         models.TicketStateActive,
		SellerUserID:  "user-1",
		DeviceID:      "device-1",
		SoldAt:        time.Now(),
	}
}

func TestGenerateBoardingQR(t *testing.T) {
	gen := NewGenerator("test-secret")

	img, err := gen.GenerateBoardingQR(sampleTicket())
	require.NoError(t, err)
	assert.Equal(t, pngHeader, img[:4])
}

// Any secret works: it is hashed to a valid AES key length.
func TestSecretOfAnyLength(t *testing.T) {
	for _, secret := range []string{"", "x", "a-much-longer-secret-than-thirty-two-bytes-total"} {
		gen := NewGenerator(secret)
		_, err := gen.GenerateBoardingQR(sampleTicket())
		assert.NoError(t, err)
	}
}

// The payload must not embed a previously generated image.
func TestPayloadExcludesPriorImage(t *testing.T) {
	gen := NewGenerator("test-secret")

	ticket := sampleTicket()
	first, err := gen.GenerateBoardingQR(ticket)
	require.NoError(t, err)

	// Re-encoding a ticket that already carries its image would overflow the
	// QR capacity if the payload nested it.
	ticket.BoardingQR = first
	second, err := gen.GenerateBoardingQR(ticket)
	require.NoError(t, err)
	assert.Equal(t, pngHeader, second[:4])
}
