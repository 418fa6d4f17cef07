package core

import (
	"context"
	"errors"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

// Handoff submits a finished session's evidence to the extraction backend.
// Each Finalize call makes at most one backend call and never retries.
type Handoff struct {
	Store     ArtifactStore
	Extractor Extractor
	APIKey    string
	Timeout   time.Duration
	Log       logger.ILogger
}

// NewHandoff constructs a Handoff.  apiKey is forwarded to the backend for
// its own AI provider.
func NewHandoff(store ArtifactStore, extractor Extractor, apiKey string, timeout time.Duration, log logger.ILogger) *Handoff {
	return &Handoff{Store: store, Extractor: extractor, APIKey: apiKey, Timeout: timeout, Log: log}
}

// Finalize resolves every artifact to its stored bytes and calls the
// extractor once under the configured timeout.  Artifacts that cannot be
// read back are skipped.  Errors are *ExtractionError, *TransportError or
// ErrNothingCollected.
func (h *Handoff) Finalize(ctx context.Context, userID string, artifacts []pkg.ArtifactRef, notes []string) (*pkg.Report, error) {
	req := ExtractionRequest{
		APIKey: h.APIKey,
		Notes:  append([]string(nil), notes...),
	}
	for _, ref := range artifacts {
		name, data, err := h.Store.Load(ref)
		if err != nil {
			h.Log.Error("handoff", "Failed to load artifact, skipping", map[string]interface{}{
				"user": userID, "path": ref.Path, "error": err,
			})
			continue
		}
		req.Files = append(req.Files, ExtractionFile{
			Name:     name,
			MimeType: mimetype.Detect(data).String(),
			Data:     data,
		})
	}
	if len(req.Files) == 0 && len(req.Notes) == 0 {
		return nil, ErrNothingCollected
	}

	h.Log.Info("handoff", "Submitting visit evidence", map[string]interface{}{
		"user": userID, "files": len(req.Files), "notes": len(req.Notes),
	})

	callCtx, cancel := context.WithTimeout(ctx, h.Timeout)
	defer cancel()

	start := time.Now()
	report, err := h.Extractor.Extract(callCtx, req)
	elapsed := time.Since(start)
	if err != nil {
		err = classify(err)
		h.Log.Error("handoff", "Extraction failed", map[string]interface{}{
			"user": userID, "elapsed_ms": elapsed.Milliseconds(), "error": err,
		})
		return nil, err
	}
	if report == nil {
		report = &pkg.Report{}
	}
	h.Log.Info("handoff", "Extraction completed", map[string]interface{}{
		"user": userID, "elapsed_ms": elapsed.Milliseconds(),
	})
	return report, nil
}

// classify maps untyped extractor errors onto the hand-off taxonomy.
// Anything that is not an application failure counts as transport.
func classify(err error) error {
	var appErr *ExtractionError
	var trErr *TransportError
	if errors.As(err, &appErr) || errors.As(err, &trErr) {
		return err
	}
	op := "call"
	if errors.Is(err, context.DeadlineExceeded) {
		op = "timeout"
	}
	return &TransportError{Op: op, Err: err}
}
