package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: "0803 123 4567", want: "2348031234567"},
		{raw: "+234 803 123 4567", want: "2348031234567"},
		{raw: "8031234567", want: "2348031234567"},
		{raw: "(0803)-123-4567", want: "2348031234567"},
		{raw: "00447911123456", want: "447911123456"},
		{raw: "", wantErr: true},
		{raw: "phone", wantErr: true},
		{raw: "12", wantErr: true},
		{raw: "+234 803 123 4567 8910 11", wantErr: true},
	}
	for _, tc := range cases {
		t.Run(tc.raw, func(t *testing.T) {
			got, err := NormalizePhone(tc.raw, "234")
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		assert.Equal(t, "/api/sms/send", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"message_id":"m-1","message":"Successfully Sent"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key", "SiteCraft", "234")
	require.NoError(t, c.Send(context.Background(), "0803 123 4567", "hello"))
	assert.Equal(t, "2348031234567", got.To)
	assert.Equal(t, "SiteCraft", got.From)
	assert.Equal(t, "key", got.APIKey)
	assert.Equal(t, "hello", got.SMS)
}

func TestSendErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		calls++
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Invalid api key"}`))
	}))
	defer srv.Close()
	c := NewClient(srv.URL, "bad", "SiteCraft", "234")

	err := c.Send(context.Background(), "not a number", "hello")
	assert.ErrorIs(t, err, ErrInvalidPhone)
	assert.Zero(t, calls)

	err = c.Send(context.Background(), "08031234567", "hello")
	assert.ErrorIs(t, err, ErrGateway)
	assert.Contains(t, err.Error(), "Invalid api key")
	assert.Equal(t, 1, calls)
}
