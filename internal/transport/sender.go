package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// outboundMessage is the body accepted by the messaging bridge's send endpoint.
type outboundMessage struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

// HTTPSender posts replies to the messaging bridge.  It implements
// core.Sender and never retries.
type HTTPSender struct {
	URL  string
	HTTP *http.Client
}

func NewHTTPSender(url string, timeout time.Duration) *HTTPSender {
	return &HTTPSender{URL: url, HTTP: &http.Client{Timeout: timeout}}
}

func (s *HTTPSender) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(outboundMessage{ChatID: chatID, Text: text})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.URL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.HTTP.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("send reply: HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
