package transport

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPSenderPostsJSON(t *testing.T) {
	var got outboundMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), "chat-9", "✔️ Recebido.")
	require.NoError(t, err)
	assert.Equal(t, outboundMessage{ChatID: "chat-9", Text: "✔️ Recebido."}, got)
}

func TestHTTPSenderReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not paired", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPSender(srv.URL, time.Second).Send(context.Background(), "chat-9", "oi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
	assert.Contains(t, err.Error(), "not paired")
}
