package archive

import (
	"context"
	"encoding/json"

	"github.com/ThreeDotsLabs/watermill/message"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

// Store is the persistence side of the archive.
type Store interface {
	InsertInboundMessage(ctx context.Context, ev pkg.Event) error
	InsertReport(ctx context.Context, senderID string, notes, files int, report *pkg.Report) (string, error)
}

// Notifier announces a stored report.
type Notifier interface {
	Notify(ctx context.Context, reportID string) error
}

// Consumer drains both archive topics into the Store.
type Consumer struct {
	sub      message.Subscriber
	store    Store
	notifier Notifier
	log      logger.ILogger
}

// NewConsumer builds a consumer; notifier may be nil.
func NewConsumer(sub message.Subscriber, store Store, notifier Notifier, log logger.ILogger) *Consumer {
	return &Consumer{sub: sub, store: store, notifier: notifier, log: log}
}

// Consume subscribes and processes messages in the background until ctx is
// cancelled.
func (c *Consumer) Consume(ctx context.Context) error {
	inbound, err := c.sub.Subscribe(ctx, TopicInbound)
	if err != nil {
		return err
	}
	reports, err := c.sub.Subscribe(ctx, TopicReports)
	if err != nil {
		return err
	}

	go func() {
		for msg := range inbound {
			c.processInbound(ctx, msg)
		}
	}()
	go func() {
		for msg := range reports {
			c.processReport(ctx, msg)
		}
	}()
	return nil
}

func (c *Consumer) processInbound(ctx context.Context, msg *message.Message) {
	// Archive rows are best effort: always Ack so a bad row never blocks the topic.
	defer msg.Ack()

	var ev pkg.Event
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		c.log.Error("archive", "Failed to unmarshal inbound message", map[string]interface{}{"error": err})
		return
	}
	if err := c.store.InsertInboundMessage(ctx, ev); err != nil {
		c.log.Error("archive", "Failed to archive inbound message", map[string]interface{}{
			"user": ev.SenderID, "message_id": ev.MessageID, "error": err,
		})
	}
}

func (c *Consumer) processReport(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var p ReportPayload
	if err := json.Unmarshal(msg.Payload, &p); err != nil {
		c.log.Error("archive", "Failed to unmarshal report", map[string]interface{}{"error": err})
		return
	}
	id, err := c.store.InsertReport(ctx, p.SenderID, p.NotesCount, p.FilesCount, p.Report)
	if err != nil {
		c.log.Error("archive", "Failed to archive report", map[string]interface{}{"user": p.SenderID, "error": err})
		return
	}
	c.log.Info("archive", "Report archived", map[string]interface{}{"user": p.SenderID, "report_id": id})
	if c.notifier != nil {
		if err := c.notifier.Notify(ctx, id); err != nil {
			c.log.Warn("archive", "Failed to notify report", map[string]interface{}{"report_id": id, "error": err})
		}
	}
}
