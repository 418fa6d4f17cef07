package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"homecare-visit-bot/internal/pkg/logger"
	"homecare-visit-bot/pkg"
)

var areas = map[pkg.ArtifactCategory]string{
	pkg.CategoryAudio:    "audio",
	pkg.CategoryImage:    "images",
	pkg.CategoryDocument: "documents",
	pkg.CategoryText:     "texts",
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// Store keeps artifacts on the local filesystem, one directory per
// category.  Files are created exclusively and never rewritten.
type Store struct {
	root       string
	transcoder Transcoder
	log        logger.ILogger
	now        func() time.Time
}

// NewStore creates the category directories under root.  A nil transcoder
// stores audio as received.
func NewStore(root string, transcoder Transcoder, log logger.ILogger) (*Store, error) {
	for _, area := range areas {
		if err := os.MkdirAll(filepath.Join(root, area), 0o755); err != nil {
			return nil, fmt.Errorf("create storage area %s: %w", area, err)
		}
	}
	return &Store{root: root, transcoder: transcoder, log: log, now: time.Now}, nil
}

// Save writes payload under a name built from the current time and the
// message id.  Audio is then transcoded best-effort; a failed transcode still
// returns the reference to the raw file.
func (s *Store) Save(ctx context.Context, category pkg.ArtifactCategory, payload []byte, ext, messageID string) (pkg.ArtifactRef, error) {
	area, ok := areas[category]
	if !ok {
		return pkg.ArtifactRef{}, fmt.Errorf("unknown artifact category %q", category)
	}
	receivedAt := s.now()
	ext = s.extension(category, payload, ext)
	stem := fileStem(receivedAt, messageID)
	path := filepath.Join(s.root, area, stem+ext)

	err := writeExclusive(path, payload)
	if errors.Is(err, fs.ErrExist) {
		// Same clock tick and message id; disambiguate instead of overwriting.
		path = filepath.Join(s.root, area, stem+"_"+uuid.NewString()[:8]+ext)
		err = writeExclusive(path, payload)
	}
	if err != nil {
		return pkg.ArtifactRef{}, err
	}
	ref := pkg.ArtifactRef{
		Category:   category,
		Path:       path,
		MessageID:  messageID,
		ReceivedAt: receivedAt,
	}
	if category == pkg.CategoryAudio && s.transcoder != nil {
		ref.ConvertedPath = s.transcode(ctx, path, ext)
	}
	return ref, nil
}

func (s *Store) transcode(ctx context.Context, src, ext string) string {
	dst := strings.TrimSuffix(src, ext) + ".wav"
	if dst == src {
		dst = strings.TrimSuffix(src, ext) + ".pcm.wav"
	}
	if err := s.transcoder.Transcode(ctx, src, dst); err != nil {
		_ = os.Remove(dst)
		s.log.Warn("storage", "Transcode skipped, keeping raw audio", map[string]interface{}{
			"path": src, "error": err,
		})
		return ""
	}
	return dst
}

// Load returns the bytes to submit for ref, preferring the transcoded copy.
func (s *Store) Load(ref pkg.ArtifactRef) (string, []byte, error) {
	if ref.ConvertedPath != "" {
		if data, err := os.ReadFile(ref.ConvertedPath); err == nil {
			return filepath.Base(ref.ConvertedPath), data, nil
		}
	}
	data, err := os.ReadFile(ref.Path)
	if err != nil {
		return "", nil, fmt.Errorf("read artifact: %w", err)
	}
	return filepath.Base(ref.Path), data, nil
}

func (s *Store) extension(category pkg.ArtifactCategory, payload []byte, suggested string) string {
	suggested = strings.ToLower(strings.TrimSpace(suggested))
	if suggested != "" {
		if !strings.HasPrefix(suggested, ".") {
			suggested = "." + suggested
		}
		return suggested
	}
	if category == pkg.CategoryText {
		return ".txt"
	}
	if ext := mimetype.Detect(payload).Extension(); ext != "" {
		return ext
	}
	return ".bin"
}

func fileStem(at time.Time, messageID string) string {
	id := unsafeName.ReplaceAllString(messageID, "")
	if id == "" {
		id = uuid.NewString()
	}
	return at.UTC().Format("20060102_150405.000000000") + "_" + id
}

func writeExclusive(path string, payload []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write artifact: %w", err)
	}
	return f.Close()
}
