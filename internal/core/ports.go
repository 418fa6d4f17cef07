package core

import (
	"context"
	"errors"
	"fmt"

	"homecare-visit-bot/pkg"
)

// Sender delivers a plain-text reply to a chat on the messaging transport.
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// ArtifactStore persists inbound payloads and resolves stored references
// back to bytes for the hand-off.
type ArtifactStore interface {
	Save(ctx context.Context, category pkg.ArtifactCategory, payload []byte, ext, messageID string) (pkg.ArtifactRef, error)
	Load(ref pkg.ArtifactRef) (name string, data []byte, err error)
}

// ExtractionFile is one artifact attached to an extraction request.
type ExtractionFile struct {
	Name     string
	MimeType string
	Data     []byte
}

// ExtractionRequest is everything a finished session hands to the
// extraction backend.
type ExtractionRequest struct {
	APIKey string
	Notes  []string
	Files  []ExtractionFile
}

// Extractor turns the collected visit evidence into a structured report.
// Implementations return *ExtractionError for failures reported by the
// backend and *TransportError when the backend could not be reached.
type Extractor interface {
	Extract(ctx context.Context, req ExtractionRequest) (*pkg.Report, error)
}

// Archiver receives side observations for the message history archive.
// Implementations must not block the conversation.
type Archiver interface {
	ArchiveMessage(ctx context.Context, ev pkg.Event)
	ArchiveReport(ctx context.Context, senderID string, notes, files int, report *pkg.Report)
}

// ErrNothingCollected is returned by the hand-off when a session is
// finalized without any note or artifact.
var ErrNothingCollected = errors.New("no visit evidence collected")

// ExtractionError is an application-level failure reported by the
// extraction backend.
type ExtractionError struct {
	Message string
	RawText string
}

func (e *ExtractionError) Error() string {
	return "extraction failed: " + e.Message
}

// TransportError means the extraction backend did not produce a usable
// answer: timeout, connection failure or an unexpected HTTP response.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("extraction transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
