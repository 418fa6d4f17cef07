package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"
	"unicode/utf8"

	"homecare-visit-bot/internal/core"
	"homecare-visit-bot/pkg"
)

const visitReportPath = "/extract/visit-report"

// maxResponseBytes caps the gateway answer; reports are small JSON documents.
const maxResponseBytes = 4 << 20

// Client calls the extraction gateway's visit-report endpoint.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// NewClient builds a gateway client.  timeout bounds the whole HTTP exchange
// in addition to any deadline on the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// Extract posts the notes and files as multipart form data and decodes the
// gateway envelope.
func (c *Client) Extract(ctx context.Context, req core.ExtractionRequest) (*pkg.Report, error) {
	body, contentType, err := encodeForm(req)
	if err != nil {
		return nil, fmt.Errorf("encode extraction request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+visitReportPath, body)
	if err != nil {
		return nil, &core.TransportError{Op: "request", Err: err}
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		op := "post"
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			op = "timeout"
		}
		return nil, &core.TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &core.TransportError{Op: "read", Err: err}
	}
	var envelope pkg.ExtractionResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		if resp.StatusCode >= 300 {
			return nil, &core.TransportError{Op: "status", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), 200))}
		}
		return nil, &core.TransportError{Op: "decode", Err: err}
	}
	if !envelope.Success {
		if envelope.Error == "" && resp.StatusCode >= 300 {
			// Not our envelope, e.g. a framework error page rendered as JSON.
			return nil, &core.TransportError{Op: "status", Err: fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(string(raw), 200))}
		}
		msg := envelope.Error
		if msg == "" {
			msg = "gateway reported failure without details"
		}
		return nil, &core.ExtractionError{Message: msg, RawText: envelope.RawText}
	}
	if envelope.Data == nil {
		return &pkg.Report{}, nil
	}
	return envelope.Data, nil
}

func encodeForm(req core.ExtractionRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("api_key", req.APIKey); err != nil {
		return nil, "", err
	}
	for _, note := range req.Notes {
		if err := w.WriteField("texts", note); err != nil {
			return nil, "", err
		}
	}
	for _, f := range req.Files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename="%s"`, escapeQuotes(f.Name)))
		ct := f.MimeType
		if ct == "" {
			ct = "application/octet-stream"
		}
		h.Set("Content-Type", ct)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", err
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string { return quoteEscaper.Replace(s) }

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}

// truncate shortens s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n] + "..."
}
