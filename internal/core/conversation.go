package core

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

// Conversation runs the per-user state machine.  Handle serializes all work
// for one identity on the session lock, so storage writes and the hand-off
// for a user never overlap, while different users proceed in parallel.
type Conversation struct {
	Registry *Registry
	Store    ArtifactStore
	Handoff  *Handoff
	Sender   Sender
	Archiver Archiver
	Log      logger.ILogger
}

// NewConversation wires a Conversation.  A nil archiver disables the message
// history archive.
func NewConversation(registry *Registry, store ArtifactStore, handoff *Handoff, sender Sender, archiver Archiver, log logger.ILogger) *Conversation {
	return &Conversation{
		Registry: registry,
		Store:    store,
		Handoff:  handoff,
		Sender:   sender,
		Archiver: archiver,
		Log:      log,
	}
}

// Handle processes one inbound event to completion, replies included.  The
// returned error only reports a failed reply delivery; the session is
// consistent either way.
func (c *Conversation) Handle(ctx context.Context, ev pkg.Event) error {
	if c.Archiver != nil {
		c.Archiver.ArchiveMessage(ctx, ev)
	}

	sess := c.Registry.GetOrCreate(ev.SenderID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	text := strings.TrimSpace(ev.Body)
	tr := Decide(sess.State, Input{Text: text, Media: ev.Kind != pkg.KindText})
	prev := sess.State

	c.Log.Debug("conversation", "Transition", map[string]interface{}{
		"user": ev.SenderID, "from": prev.String(), "to": tr.Next.String(), "action": tr.Action.String(),
	})

	switch tr.Action {
	case ActionIgnore:
		return nil
	case ActionPromptPIN:
		sess.State = tr.Next
		return c.reply(ctx, ev, PINPrompt)
	case ActionRejectPIN:
		return c.reply(ctx, ev, InvalidPINMessage)
	case ActionAcceptPIN:
		sess.PIN = text
		sess.clear()
		sess.State = tr.Next
		if prev != StateAwaitingPIN {
			c.Log.Info("conversation", "Re-authenticated, session restarted", map[string]interface{}{
				"user": ev.SenderID, "from": prev.String(),
			})
		}
		return c.reply(ctx, ev, MenuMessage)
	case ActionShowSchedule:
		return c.reply(ctx, ev, ScheduleMessage)
	case ActionInvalidOption:
		return c.reply(ctx, ev, InvalidOptionMessage)
	case ActionStartCollecting:
		sess.clear()
		sess.State = tr.Next
		return c.reply(ctx, ev, CollectingMessage)
	case ActionAppendNote:
		c.captureNote(ctx, sess, ev, text)
		return c.reply(ctx, ev, ReceivedMessage)
	case ActionStoreArtifact:
		if err := c.captureArtifact(ctx, sess, ev); err != nil {
			return c.reply(ctx, ev, StoreFailedMessage)
		}
		return c.reply(ctx, ev, ReceivedMessage)
	case ActionFinalize:
		return c.finalize(ctx, sess, ev, tr.Next)
	}
	return nil
}

func (c *Conversation) captureNote(ctx context.Context, sess *Session, ev pkg.Event, text string) {
	sess.Notes = append(sess.Notes, text)
	// The stored copy is for audit only; the note itself travels as text.
	if _, err := c.Store.Save(ctx, pkg.CategoryText, []byte(text), ".txt", ev.MessageID); err != nil {
		c.Log.Warn("conversation", "Failed to store text note", map[string]interface{}{
			"user": ev.SenderID, "message_id": ev.MessageID, "error": err,
		})
	}
}

func (c *Conversation) captureArtifact(ctx context.Context, sess *Session, ev pkg.Event) error {
	if len(ev.Media) == 0 {
		err := errors.New("media event without payload")
		c.Log.Warn("conversation", "Dropped artifact", map[string]interface{}{
			"user": ev.SenderID, "message_id": ev.MessageID, "kind": string(ev.Kind), "error": err,
		})
		return err
	}
	ref, err := c.Store.Save(ctx, categoryOf(ev.Kind), ev.Media, filepath.Ext(ev.FileName), ev.MessageID)
	if err != nil {
		c.Log.Error("conversation", "Failed to store artifact", map[string]interface{}{
			"user": ev.SenderID, "message_id": ev.MessageID, "kind": string(ev.Kind), "error": err,
		})
		return err
	}
	sess.Artifacts = append(sess.Artifacts, ref)
	// A caption is evidence too, unless it is a control keyword.
	if caption := strings.TrimSpace(ev.Body); caption != "" && !IsFinalizeKeyword(caption) {
		sess.Notes = append(sess.Notes, caption)
	}
	c.Log.Info("conversation", "Artifact captured", map[string]interface{}{
		"user": ev.SenderID, "category": string(ref.Category), "path": ref.Path,
		"converted": ref.ConvertedPath != "", "count": len(sess.Artifacts),
	})
	return nil
}

// finalize consumes the accumulators exactly once.  The session leaves
// collection mode before the backend is called, whatever the outcome.
func (c *Conversation) finalize(ctx context.Context, sess *Session, ev pkg.Event, next State) error {
	artifacts, notes := sess.Artifacts, sess.Notes
	sess.clear()
	sess.State = next

	if len(artifacts) == 0 && len(notes) == 0 {
		return c.reply(ctx, ev, NothingCollectedMessage)
	}
	_ = c.reply(ctx, ev, ProcessingMessage)

	report, err := c.Handoff.Finalize(ctx, ev.SenderID, artifacts, notes)
	if err != nil {
		return c.reply(ctx, ev, handoffErrorMessage(err))
	}
	if c.Archiver != nil {
		c.Archiver.ArchiveReport(ctx, ev.SenderID, len(notes), len(artifacts), report)
	}
	return c.reply(ctx, ev, FormatReport(report))
}

func handoffErrorMessage(err error) string {
	var appErr *ExtractionError
	switch {
	case errors.Is(err, ErrNothingCollected):
		return NothingCollectedMessage
	case errors.As(err, &appErr):
		return ExtractionFailedPrefix + appErr.Message
	default:
		return TransportFailedMessage
	}
}

// reply sends text to the event's chat.  Delivery failures are logged and
// not retried.
func (c *Conversation) reply(ctx context.Context, ev pkg.Event, text string) error {
	if err := c.Sender.Send(ctx, ev.ChatID, text); err != nil {
		c.Log.Error("conversation", "Failed to send reply", map[string]interface{}{
			"user": ev.SenderID, "chat": ev.ChatID, "error": err,
		})
		return err
	}
	return nil
}

func categoryOf(kind pkg.MessageKind) pkg.ArtifactCategory {
	switch kind {
	case pkg.KindAudio:
		return pkg.CategoryAudio
	case pkg.KindImage:
		return pkg.CategoryImage
	default:
		return pkg.CategoryDocument
	}
}
