package http

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"homecare-visit-bot/internal/db"
	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

// maxWebhookBytes bounds one inbound event; voice notes and photos from the
// messaging app stay well below this.
const maxWebhookBytes = 32 << 20

// Submitter queues an inbound event for its sender's conversation.
type Submitter interface {
	Submit(ev pkg.Event) error
}

// ReportReader exposes the report archive.
type ReportReader interface {
	ListReports(ctx context.Context, limit int) ([]pkg.ArchivedReport, error)
	GetReport(ctx context.Context, id string) (*pkg.ArchivedReport, error)
}

// Server bundles together the dependencies required by HTTP handlers.  It
// implements http.Handler so it can be passed to http.ListenAndServe.
type Server struct {
	Dispatcher Submitter
	Reports    ReportReader // nil when the archive is disabled
	Validate   *validator.Validate
	Log        logger.ILogger
	now        func() time.Time
}

// NewServer constructs a Server.  reports may be nil.
func NewServer(dispatcher Submitter, reports ReportReader, log logger.ILogger) *Server {
	return &Server{
		Dispatcher: dispatcher,
		Reports:    reports,
		Validate:   validator.New(),
		Log:        log,
		now:        time.Now,
	}
}

// inboundPayload is the webhook body posted by the messaging bridge.  Media
// is base64 encoded; timestamp is Unix seconds.
type inboundPayload struct {
	SenderID  string `json:"sender_id" validate:"required"`
	ChatID    string `json:"chat_id" validate:"required"`
	MessageID string `json:"message_id" validate:"max=128"`
	Kind      string `json:"kind" validate:"required,oneof=text audio image document"`
	Body      string `json:"body"`
	Media     string `json:"media" validate:"omitempty,base64"`
	MimeType  string `json:"mime_type"`
	FileName  string `json:"file_name"`
	Timestamp int64  `json:"timestamp" validate:"gte=0"`
}

// ServeHTTP dispatches incoming requests based on the URL path.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path
	switch {
	case path == "/webhook/messages" && r.Method == http.MethodPost:
		s.handleInbound(w, r)
	case path == "/health" && r.Method == http.MethodGet:
		s.handleHealth(w, r)
	case path == "/api/reports" && r.Method == http.MethodGet:
		s.handleListReports(w, r)
	case strings.HasPrefix(path, "/api/reports/") && r.Method == http.MethodGet:
		s.handleGetReport(w, r, strings.TrimPrefix(path, "/api/reports/"))
	default:
		http.NotFound(w, r)
	}
}

// handleInbound validates one event from the messaging bridge and queues it.
// The conversation replies through the sender, so the webhook only
// acknowledges receipt.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBytes)
	var in inboundPayload
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.Validate.Struct(in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ev, err := s.toEvent(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.Dispatcher.Submit(ev); err != nil {
		s.Log.Error("webhook", "Failed to queue event", map[string]interface{}{"user": ev.SenderID, "error": err})
		writeError(w, http.StatusServiceUnavailable, "not accepting messages")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (s *Server) toEvent(in inboundPayload) (pkg.Event, error) {
	ev := pkg.Event{
		SenderID:  in.SenderID,
		ChatID:    in.ChatID,
		MessageID: in.MessageID,
		Kind:      pkg.MessageKind(in.Kind),
		Body:      in.Body,
		MimeType:  in.MimeType,
		FileName:  in.FileName,
	}
	if in.Media != "" {
		media, err := base64.StdEncoding.DecodeString(in.Media)
		if err != nil {
			return pkg.Event{}, errors.New("media is not valid base64")
		}
		ev.Media = media
	}
	if in.Timestamp > 0 {
		ev.ReceivedAt = time.Unix(in.Timestamp, 0)
	} else {
		ev.ReceivedAt = s.now()
	}
	return ev, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.now().Format(time.RFC3339),
		"archive":   s.Reports != nil,
	})
}

// handleListReports returns the latest archived reports as JSON.
func (s *Server) handleListReports(w http.ResponseWriter, r *http.Request) {
	if s.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive disabled")
		return
	}
	limit := 50
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 && v <= 500 {
		limit = v
	}
	reports, err := s.Reports.ListReports(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if reports == nil {
		reports = []pkg.ArchivedReport{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"reports": reports})
}

func (s *Server) handleGetReport(w http.ResponseWriter, r *http.Request, id string) {
	if s.Reports == nil {
		writeError(w, http.StatusServiceUnavailable, "report archive disabled")
		return
	}
	report, err := s.Reports.GetReport(r.Context(), id)
	if errors.Is(err, db.ErrNotFound) {
		writeError(w, http.StatusNotFound, "report not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
