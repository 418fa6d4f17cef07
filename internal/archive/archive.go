package archive

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

const (
	TopicInbound = "messages.inbound"
	TopicReports = "reports.completed"
)

// ReportPayload is the body of a reports.completed message.
type ReportPayload struct {
	SenderID   string      `json:"sender_id"`
	NotesCount int         `json:"notes_count"`
	FilesCount int         `json:"files_count"`
	Report     *pkg.Report `json:"report"`
}

// Publisher forwards archive observations to the event bus.  It implements
// core.Archiver; publish failures are logged and otherwise ignored.
type Publisher struct {
	pub message.Publisher
	log logger.ILogger
}

func NewPublisher(pub message.Publisher, log logger.ILogger) *Publisher {
	return &Publisher{pub: pub, log: log}
}

func (p *Publisher) ArchiveMessage(_ context.Context, ev pkg.Event) {
	p.publish(TopicInbound, ev)
}

func (p *Publisher) ArchiveReport(_ context.Context, senderID string, notes, files int, report *pkg.Report) {
	p.publish(TopicReports, ReportPayload{
		SenderID:   senderID,
		NotesCount: notes,
		FilesCount: files,
		Report:     report,
	})
}

func (p *Publisher) publish(topic string, v interface{}) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.log.Error("archive", "Failed to encode archive event", map[string]interface{}{"topic": topic, "error": err})
		return
	}
	if err := p.pub.Publish(topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		p.log.Error("archive", "Failed to publish archive event", map[string]interface{}{"topic": topic, "error": err})
	}
}

// Nop discards archive observations.  Used when no database is configured.
type Nop struct{}

func (Nop) ArchiveMessage(context.Context, pkg.Event) {}

func (Nop) ArchiveReport(context.Context, string, int, int, *pkg.Report) {}
