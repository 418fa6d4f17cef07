package llm

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"homecare-visit-bot/internal/core"
	"homecare-visit-bot/pkg"
)

// OpenAIExtractor builds the visit report directly with the OpenAI API
// instead of going through the extraction gateway.  Audio is transcribed
// with Whisper first; images are attached as data URLs.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
	now    func() time.Time
}

// NewOpenAIExtractor constructs an extractor.  An empty baseURL targets the
// public API.
func NewOpenAIExtractor(apiKey, model, baseURL string) *OpenAIExtractor {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = "gpt-4o-mini"
	}
	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		now:    time.Now,
	}
}

// Extract implements core.Extractor.  The api key in req is meant for the
// gateway and is ignored here.
func (e *OpenAIExtractor) Extract(ctx context.Context, req core.ExtractionRequest) (*pkg.Report, error) {
	parts := []openai.ChatMessagePart{{Type: openai.ChatMessagePartTypeText, Text: ExtractionPrompt}}

	if len(req.Notes) > 0 {
		var b strings.Builder
		b.WriteString("--- DADOS DE TEXTO ---\n")
		for i, note := range req.Notes {
			fmt.Fprintf(&b, "Texto %d: %s\n", i+1, note)
		}
		parts = append(parts, textPart(b.String()))
	}

	for _, f := range req.Files {
		switch {
		case strings.HasPrefix(f.MimeType, "audio/"):
			text, err := e.transcribe(ctx, f)
			if err != nil {
				if ctx.Err() != nil {
					return nil, &core.TransportError{Op: "transcribe", Err: err}
				}
				parts = append(parts, textPart(fmt.Sprintf("[Áudio %s não pôde ser transcrito]", f.Name)))
				continue
			}
			parts = append(parts, textPart(fmt.Sprintf("--- TRANSCRIÇÃO DO ÁUDIO %s ---\n%s", f.Name, text)))
		case strings.HasPrefix(f.MimeType, "image/"):
			parts = append(parts, openai.ChatMessagePart{
				Type: openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{
					URL:    "data:" + f.MimeType + ";base64," + base64.StdEncoding.EncodeToString(f.Data),
					Detail: openai.ImageURLDetailAuto,
				},
			})
		case strings.HasPrefix(f.MimeType, "text/plain"):
			parts = append(parts, textPart(fmt.Sprintf("--- DOCUMENTO %s ---\n%s", f.Name, f.Data)))
		default:
			parts = append(parts, textPart(fmt.Sprintf("[Documento anexado não suportado: %s (%s)]", f.Name, f.MimeType)))
		}
	}

	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Messages:    []openai.ChatCompletionMessage{{Role: openai.ChatMessageRoleUser, MultiContent: parts}},
		Temperature: 0.1,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode >= 400 && apiErr.HTTPStatusCode < 500 {
			return nil, &core.ExtractionError{Message: apiErr.Message}
		}
		return nil, &core.TransportError{Op: "openai", Err: err}
	}
	if len(resp.Choices) == 0 {
		return nil, &core.ExtractionError{Message: "empty model response"}
	}

	raw := resp.Choices[0].Message.Content
	report, err := decodeReport(raw)
	if err != nil {
		return nil, &core.ExtractionError{Message: InvalidJSONMessage, RawText: raw}
	}
	report.ProcessedAt = e.now().Format("2006-01-02T15:04:05")
	return report, nil
}

func (e *OpenAIExtractor) transcribe(ctx context.Context, f core.ExtractionFile) (string, error) {
	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: f.Name,
		Reader:   bytes.NewReader(f.Data),
		Language: "pt",
	})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// decodeReport parses the model output, tolerating a markdown code fence.
func decodeReport(raw string) (*pkg.Report, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	var report pkg.Report
	if err := json.Unmarshal([]byte(strings.TrimSpace(cleaned)), &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func textPart(s string) openai.ChatMessagePart {
	return openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: s}
}
