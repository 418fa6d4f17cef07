package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homecare-visit-bot/internal/db"
	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

type captureSubmitter struct{ events []pkg.Event }

func (c *captureSubmitter) Submit(ev pkg.Event) error {
	c.events = append(c.events, ev)
	return nil
}

type fakeReports struct{ reports []pkg.ArchivedReport }

func (f *fakeReports) ListReports(_ context.Context, limit int) ([]pkg.ArchivedReport, error) {
	if limit < len(f.reports) {
		return f.reports[:limit], nil
	}
	return f.reports, nil
}

func (f *fakeReports) GetReport(_ context.Context, id string) (*pkg.ArchivedReport, error) {
	for i := range f.reports {
		if f.reports[i].ID == id {
			return &f.reports[i], nil
		}
	}
	return nil, db.ErrNotFound
}

func post(t *testing.T, s *Server, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/messages", strings.NewReader(body))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestWebhookQueuesValidEvents(t *testing.T) {
	sub := &captureSubmitter{}
	s := NewServer(sub, nil, logger.NewNop())

	media := base64.StdEncoding.EncodeToString([]byte("OggS-voice"))
	rec := post(t, s, `{"sender_id":"5511999","chat_id":"5511999@c.us","message_id":"ABC","kind":"audio","media":"`+media+`","mime_type":"audio/ogg","timestamp":1714573800}`)

	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	require.Len(t, sub.events, 1)
	ev := sub.events[0]
	assert.Equal(t, pkg.KindAudio, ev.Kind)
	assert.Equal(t, []byte("OggS-voice"), ev.Media)
	assert.Equal(t, time.Unix(1714573800, 0), ev.ReceivedAt)
}

func TestWebhookRejectsInvalidEvents(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "not json", body: `hello`},
		{name: "missing sender", body: `{"chat_id":"c","kind":"text","body":"oi"}`},
		{name: "unknown kind", body: `{"sender_id":"s","chat_id":"c","kind":"sticker"}`},
		{name: "bad media", body: `{"sender_id":"s","chat_id":"c","kind":"image","media":"%%%"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := &captureSubmitter{}
			rec := post(t, NewServer(sub, nil, logger.NewNop()), tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, sub.events)
		})
	}
}

func TestReportEndpoints(t *testing.T) {
	reports := &fakeReports{reports: []pkg.ArchivedReport{{ID: "r1", SenderID: "5511", Report: &pkg.Report{Observations: "ok"}}}}
	s := NewServer(&captureSubmitter{}, reports, logger.NewNop())

	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Reports []pkg.ArchivedReport `json:"reports"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Reports, 1)
	assert.Equal(t, "ok", list.Reports[0].Report.Observations)

	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	NewServer(&captureSubmitter{}, nil, logger.NewNop()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
