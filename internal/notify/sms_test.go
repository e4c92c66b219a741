package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSMSSend_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/2010-04-01/Accounts/AC123/Messages.json", r.URL.Path)

		sid, token, ok := r.BasicAuth()
		require.True(t, ok)
		assert.Equal(t, "AC123", sid)
		assert.Equal(t, "secret", token)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+15550001", r.PostForm.Get("To"))
		assert.Equal(t, "+15559999", r.PostForm.Get("From"))
		assert.Contains(t, r.PostForm.Get("Body"), "Ride Down")

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"sid":"SM1","status":"queued"}`))
	}))
	defer server.Close()

	client := NewSMSClient(server.URL, "AC123", "secret", "+15559999", 5*time.Second, zap.NewNop())

	err := client.Send(context.Background(), "+15550001", "Ride Down\nSpace Coaster changed from OPERATING to DOWN")

	assert.NoError(t, err)
}

func TestSMSSend_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":21211,"message":"invalid number"}`))
	}))
	defer server.Close()

	client := NewSMSClient(server.URL, "AC123", "secret", "+15559999", 5*time.Second, zap.NewNop())

	err := client.Send(context.Background(), "not-a-number", "body")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
}

func TestSMSSend_MissingRecipient(t *testing.T) {
	client := NewSMSClient("http://localhost:0", "AC123", "secret", "+15559999", time.Second, zap.NewNop())

	err := client.Send(context.Background(), "", "body")

	assert.Error(t, err)
}
