package core

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

type sentMessage struct {
	chatID string
	text   string
}

type recordingSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (r *recordingSender) Send(_ context.Context, chatID, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, sentMessage{chatID, text})
	return nil
}

func (r *recordingSender) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return ""
	}
	return r.sent[len(r.sent)-1].text
}

func (r *recordingSender) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
	seq   int
	fail  bool
}

func newMemoryStore() *memoryStore { return &memoryStore{files: map[string][]byte{}} }

func (m *memoryStore) Save(_ context.Context, category pkg.ArtifactCategory, payload []byte, ext, messageID string) (pkg.ArtifactRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return pkg.ArtifactRef{}, errors.New("disk full")
	}
	m.seq++
	path := fmt.Sprintf("%s/%03d_%s%s", category, m.seq, messageID, ext)
	m.files[path] = payload
	return pkg.ArtifactRef{Category: category, Path: path, MessageID: messageID, ReceivedAt: time.Now()}, nil
}

func (m *memoryStore) Load(ref pkg.ArtifactRef) (string, []byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[ref.Path]
	if !ok {
		return "", nil, errors.New("missing")
	}
	return ref.Path, data, nil
}

type fakeExtractor struct {
	mu       sync.Mutex
	requests []ExtractionRequest
	report   *pkg.Report
	err      error
	hang     bool
}

func (f *fakeExtractor) Extract(ctx context.Context, req ExtractionRequest) (*pkg.Report, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.report, f.err
}

func (f *fakeExtractor) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

type harness struct {
	conv      *Conversation
	sender    *recordingSender
	store     *memoryStore
	extractor *fakeExtractor
}

func newHarness(timeout time.Duration) *harness {
	log := logger.NewNop()
	store := newMemoryStore()
	extractor := &fakeExtractor{report: &pkg.Report{Vitals: &pkg.VitalSigns{HR: intPtr(82)}}}
	sender := &recordingSender{}
	handoff := NewHandoff(store, extractor, "gateway-key", timeout, log)
	return &harness{
		conv:      NewConversation(NewRegistry(), store, handoff, sender, nil, log),
		sender:    sender,
		store:     store,
		extractor: extractor,
	}
}

func (h *harness) text(t *testing.T, user, body string) string {
	t.Helper()
	require.NoError(t, h.conv.Handle(context.Background(), pkg.Event{
		SenderID: user, ChatID: user + "@chat", Kind: pkg.KindText, Body: body,
	}))
	return h.sender.last()
}

func (h *harness) media(t *testing.T, user string, kind pkg.MessageKind, data string) string {
	t.Helper()
	require.NoError(t, h.conv.Handle(context.Background(), pkg.Event{
		SenderID: user, ChatID: user + "@chat", MessageID: "m" + data, Kind: kind, Media: []byte(data),
	}))
	return h.sender.last()
}

func (h *harness) view(user string) SessionView {
	return h.conv.Registry.GetOrCreate(user).View()
}

func TestHappyPath(t *testing.T) {
	h := newHarness(time.Second)

	assert.Equal(t, PINPrompt, h.text(t, "u1", "hello"))
	assert.Equal(t, StateAwaitingPIN, h.view("u1").State)

	assert.Equal(t, MenuMessage, h.text(t, "u1", "123456"))
	assert.Equal(t, StateAuthenticated, h.view("u1").State)
	assert.Equal(t, "123456", h.view("u1").PIN)

	assert.Equal(t, CollectingMessage, h.text(t, "u1", "2"))
	assert.Equal(t, StateCollecting, h.view("u1").State)

	assert.Equal(t, ReceivedMessage, h.media(t, "u1", pkg.KindAudio, "voice"))
	assert.Len(t, h.view("u1").Artifacts, 1)

	reply := h.text(t, "u1", "0")
	assert.Contains(t, reply, "Frequência cardíaca: 82 bpm")

	require.Equal(t, 1, h.extractor.calls())
	req := h.extractor.requests[0]
	assert.Len(t, req.Files, 1)
	assert.Empty(t, req.Notes)
	assert.Equal(t, "gateway-key", req.APIKey)
	assert.Equal(t, []byte("voice"), req.Files[0].Data)

	v := h.view("u1")
	assert.Equal(t, StateAuthenticated, v.State)
	assert.Empty(t, v.Artifacts)
	assert.Empty(t, v.Notes)
}

func TestBadPINThenRecovery(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")

	assert.Equal(t, InvalidPINMessage, h.text(t, "u1", "12a456"))
	assert.Equal(t, StateAwaitingPIN, h.view("u1").State)

	assert.Equal(t, MenuMessage, h.text(t, "u1", "654321"))
	assert.Equal(t, StateAuthenticated, h.view("u1").State)
}

func TestHandoffTimeout(t *testing.T) {
	h := newHarness(50 * time.Millisecond)
	h.extractor.hang = true
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")
	h.text(t, "u1", "pressão 12 por 8")
	h.text(t, "u1", "curativo trocado")
	h.media(t, "u1", pkg.KindImage, "photo")

	assert.Equal(t, TransportFailedMessage, h.text(t, "u1", "sair"))

	require.Equal(t, 1, h.extractor.calls())
	assert.Len(t, h.extractor.requests[0].Notes, 2)
	assert.Len(t, h.extractor.requests[0].Files, 1)

	v := h.view("u1")
	assert.Equal(t, StateAuthenticated, v.State)
	assert.Empty(t, v.Artifacts)
	assert.Empty(t, v.Notes)

	// A new collection starts clean.
	h.text(t, "u1", "2")
	assert.Empty(t, h.view("u1").Notes)
}

func TestHandoffApplicationError(t *testing.T) {
	h := newHarness(time.Second)
	h.extractor.err = &ExtractionError{Message: "modelo indisponível"}
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")
	h.text(t, "u1", "nota")

	assert.Equal(t, ExtractionFailedPrefix+"modelo indisponível", h.text(t, "u1", "0"))
	assert.Equal(t, StateAuthenticated, h.view("u1").State)
	assert.Empty(t, h.view("u1").Notes)
}

func TestFinalizeWithNothingCollected(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")

	assert.Equal(t, NothingCollectedMessage, h.text(t, "u1", "SAIR"))
	assert.Equal(t, 0, h.extractor.calls())
	assert.Equal(t, StateAuthenticated, h.view("u1").State)
}

func TestFinalizeKeywordIsNeverANote(t *testing.T) {
	for _, kw := range []string{"0", "sair", "SAIR", "Sair"} {
		t.Run(kw, func(t *testing.T) {
			h := newHarness(time.Second)
			h.text(t, "u1", "oi")
			h.text(t, "u1", "123456")
			h.text(t, "u1", "2")
			h.text(t, "u1", "nota real")
			h.text(t, "u1", kw)

			require.Equal(t, 1, h.extractor.calls())
			assert.Equal(t, []string{"nota real"}, h.extractor.requests[0].Notes)
		})
	}
}

func TestReauthenticationClearsAccumulators(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")
	h.text(t, "u1", "nota")
	h.media(t, "u1", pkg.KindDocument, "pdf")

	assert.Equal(t, MenuMessage, h.text(t, "u1", "999999"))
	v := h.view("u1")
	assert.Equal(t, StateAuthenticated, v.State)
	assert.Equal(t, "999999", v.PIN)
	assert.Empty(t, v.Artifacts)
	assert.Empty(t, v.Notes)
	assert.Equal(t, 0, h.extractor.calls())

	assert.Equal(t, MenuMessage, h.text(t, "u1", "111111"))
}

func TestNoiseOutsideCollectionIsIgnored(t *testing.T) {
	h := newHarness(time.Second)

	h.media(t, "u1", pkg.KindImage, "sticker")
	h.text(t, "u1", "   ")
	assert.Equal(t, 0, h.sender.count())
	assert.Equal(t, StateUnauthenticated, h.view("u1").State)

	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	before := h.sender.count()
	h.media(t, "u1", pkg.KindAudio, "voice")
	assert.Equal(t, before, h.sender.count())
	assert.Empty(t, h.view("u1").Artifacts)
}

func TestStoreFailureKeepsSession(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")

	h.store.fail = true
	assert.Equal(t, StoreFailedMessage, h.media(t, "u1", pkg.KindImage, "photo"))
	assert.Equal(t, StateCollecting, h.view("u1").State)
	assert.Empty(t, h.view("u1").Artifacts)

	// Notes survive even when their audit copy cannot be written.
	assert.Equal(t, ReceivedMessage, h.text(t, "u1", "nota"))
	assert.Equal(t, []string{"nota"}, h.view("u1").Notes)
}

func TestMediaCaptionBecomesNote(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")

	require.NoError(t, h.conv.Handle(context.Background(), pkg.Event{
		SenderID: "u1", ChatID: "u1@chat", Kind: pkg.KindImage, Body: "ferida no calcanhar", Media: []byte("img"),
	}))
	v := h.view("u1")
	assert.Len(t, v.Artifacts, 1)
	assert.Equal(t, []string{"ferida no calcanhar"}, v.Notes)

	// Keywords used as captions are never kept as visit content.
	for _, caption := range []string{"sair", " SAIR ", "0"} {
		require.NoError(t, h.conv.Handle(context.Background(), pkg.Event{
			SenderID: "u1", ChatID: "u1@chat", Kind: pkg.KindImage, Body: caption, Media: []byte("img-" + caption),
		}))
	}
	v = h.view("u1")
	assert.Equal(t, StateCollecting, v.State)
	assert.Len(t, v.Artifacts, 4)
	assert.Equal(t, []string{"ferida no calcanhar"}, v.Notes)
}

func TestUsersAreIndependent(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "a", "oi")
	h.text(t, "a", "123456")
	h.text(t, "a", "2")

	assert.Equal(t, PINPrompt, h.text(t, "b", "2"))
	assert.Equal(t, StateCollecting, h.view("a").State)
	assert.Equal(t, StateAwaitingPIN, h.view("b").State)
}

// Accumulators are non-empty only while collecting, for any event sequence.
func TestAccumulatorInvariantUnderRandomEvents(t *testing.T) {
	h := newHarness(time.Second)
	rng := rand.New(rand.NewSource(42))
	inputs := []string{"", "oi", "1", "2", "3", "0", "sair", "123456", "12a456", "nota"}

	for i := 0; i < 2000; i++ {
		user := fmt.Sprintf("u%d", rng.Intn(3))
		if rng.Intn(4) == 0 {
			kinds := []pkg.MessageKind{pkg.KindAudio, pkg.KindImage, pkg.KindDocument}
			h.media(t, user, kinds[rng.Intn(len(kinds))], fmt.Sprintf("blob%d", i))
		} else {
			h.text(t, user, inputs[rng.Intn(len(inputs))])
		}
		v := h.view(user)
		empty := len(v.Artifacts) == 0 && len(v.Notes) == 0
		if v.State != StateCollecting {
			require.True(t, empty, "step %d: %s has accumulators in %s", i, user, v.State)
		}
	}
}

func TestConcurrentEventsForOneUserAreSerialized(t *testing.T) {
	h := newHarness(time.Second)
	h.text(t, "u1", "oi")
	h.text(t, "u1", "123456")
	h.text(t, "u1", "2")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = h.conv.Handle(context.Background(), pkg.Event{
				SenderID: "u1", ChatID: "c", Kind: pkg.KindText, Body: fmt.Sprintf("nota %d", i),
			})
		}(i)
	}
	wg.Wait()

	v := h.view("u1")
	assert.Len(t, v.Notes, 50)
	for _, n := range v.Notes {
		assert.True(t, strings.HasPrefix(n, "nota "))
	}
}
