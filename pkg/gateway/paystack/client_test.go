package paystack

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sitecraft/sitecraft/pkg/apperr"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, "sk_test_123")
}

func TestInitialize(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/transaction/initialize", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		var in InitializeRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, int64(150050), in.Amount)
		assert.Equal(t, "SC-1", in.Reference)
		_, _ = w.Write([]byte(`{"status":true,"message":"Authorization URL created",
			"data":{"authorization_url":"https://checkout.paystack.com/abc","access_code":"abc","reference":"SC-1"}}`))
	})

	auth, err := c.Initialize(context.Background(), InitializeRequest{
		Email:     "ada@example.com",
		Amount:    ToMinor(1500.5),
		Reference: "SC-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.paystack.com/abc", auth.AuthorizationURL)
	assert.Equal(t, "abc", auth.AccessCode)
}

func TestVerify(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/transaction/verify/SC-2", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":true,"message":"Verification successful",
			"data":{"id":42,"status":"success","reference":"SC-2","amount":90000,"currency":"NGN",
			"paid_at":"2026-01-02T10:00:00Z","gateway_response":"Approved"}}`))
	})

	tx, err := c.Verify(context.Background(), "SC-2")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, tx.Status)
	assert.Equal(t, int64(90000), tx.Amount)
	require.NotNil(t, tx.PaidAt)
	assert.Contains(t, string(tx.Raw), `"gateway_response":"Approved"`)
}

func TestGatewayErrors(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/refund":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction has been fully reversed"}`))
		default:
			_, _ = w.Write([]byte(`{"status":false,"message":"Transaction reference not found"}`))
		}
	})

	err := c.Refund(context.Background(), "SC-3", 0)
	require.ErrorIs(t, err, ErrGateway)
	assert.ErrorIs(t, err, apperr.ErrUpstream)
	assert.Contains(t, err.Error(), "fully reversed")

	_, err = c.Verify(context.Background(), "SC-missing")
	require.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "reference not found")
}

func TestSignature(t *testing.T) {
	body := []byte(`{"event":"charge.success","data":{"reference":"SC-4","amount":5000}}`)
	sig := Sign(body, "sk_test_123")

	assert.Len(t, sig, 128)
	assert.True(t, ValidSignature(body, sig, "sk_test_123"))
	assert.False(t, ValidSignature(body, sig, "sk_test_other"))
	assert.False(t, ValidSignature(body, "", "sk_test_123"))
	assert.False(t, ValidSignature(body, sig, ""))

	mutated := append([]byte(nil), body...)
	mutated[len(mutated)-3] = '1'
	assert.False(t, ValidSignature(mutated, sig, "sk_test_123"))

	ev, err := ParseEvent(body)
	require.NoError(t, err)
	assert.Equal(t, EventChargeSuccess, ev.Event)
	assert.Equal(t, "SC-4", ev.Data.Reference)
}

func TestMinorUnits(t *testing.T) {
	assert.Equal(t, int64(150050), ToMinor(1500.5))
	assert.Equal(t, int64(10), ToMinor(0.1))
	assert.InDelta(t, 1500.5, FromMinor(150050), 1e-9)
}
