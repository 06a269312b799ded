package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_test_secret"

// signStripePayload builds a Stripe-Signature header for payload.
func signStripePayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func sessionEvent(eventType string, orderRef, clientRef string) []byte {
	metadata := "{}"
	if orderRef != "" {
		metadata = fmt.Sprintf(`{"order_id":%q}`, orderRef)
	}
	return []byte(fmt.Sprintf(`{
  "id": "evt_test_1",
  "object": "event",
  "type": %q,
  "data": {
    "object": {
      "id": "cs_test_1",
      "object": "checkout.session",
      "client_reference_id": %q,
      "metadata": %s
    }
  }
}`, eventType, clientRef, metadata))
}

func TestParseWebhook(t *testing.T) {
	p := NewStripePayments("", testWebhookSecret)
	orderID := uuid.New()

	tests := []struct {
		name      string
		eventType string
		orderRef  string
		clientRef string
		want      PaymentEventKind
	}{
		{"completed", "checkout.session.completed", orderID.String(), "", PaymentCompleted},
		{"expired", "checkout.session.expired", orderID.String(), "", PaymentExpired},
		{"client reference fallback", "checkout.session.completed", "", orderID.String(), PaymentCompleted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload := sessionEvent(tt.eventType, tt.orderRef, tt.clientRef)
			ev, err := p.ParseWebhook(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
			require.NoError(t, err)
			assert.Equal(t, tt.want, ev.Kind)
			assert.Equal(t, orderID, ev.OrderID)
			assert.Equal(t, "cs_test_1", ev.SessionID)
			assert.Equal(t, "evt_test_1", ev.EventID)
		})
	}
}

func TestParseWebhookIgnoresOtherEvents(t *testing.T) {
	p := NewStripePayments("", testWebhookSecret)
	payload := []byte(`{"id":"evt_test_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1","object":"customer"}}}`)

	ev, err := p.ParseWebhook(payload, signStripePayload(payload, testWebhookSecret, time.Now()))
	require.NoError(t, err)
	assert.Equal(t, PaymentIgnored, ev.Kind)
}

func TestParseWebhookRejects(t *testing.T) {
	p := NewStripePayments("", testWebhookSecret)
	payload := sessionEvent("checkout.session.completed", uuid.NewString(), "")

	_, err := p.ParseWebhook(payload, signStripePayload(payload, "whsec_other", time.Now()))
	assert.Error(t, err, "wrong secret")

	_, err = p.ParseWebhook(payload, signStripePayload(payload, testWebhookSecret, time.Now().Add(-time.Hour)))
	assert.Error(t, err, "stale timestamp")

	noRef := sessionEvent("checkout.session.completed", "", "")
	_, err = p.ParseWebhook(noRef, signStripePayload(noRef, testWebhookSecret, time.Now()))
	assert.ErrorContains(t, err, "no order reference")

	_, err = NewStripePayments("", "").ParseWebhook(payload, "t=1,v1=00")
	assert.ErrorIs(t, err, ErrPaymentsNotConfigured)
}

func TestCreateCheckoutSessionRequiresKey(t *testing.T) {
	_, err := NewStripePayments("", testWebhookSecret).CreateCheckoutSession(context.Background(), PaymentSessionRequest{OrderID: uuid.New()})
	assert.ErrorIs(t, err, ErrPaymentsNotConfigured)
}
