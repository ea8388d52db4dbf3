package download

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dunamismax/imaginify/internal/domain"
)

const (
	DefaultTimeout  = 30 * time.Second
	DefaultMaxBytes = 32 << 20
	defaultFilename = "image"
)

// Attachment is a fetched render ready to be handed to a user as a file.
type Attachment struct {
	Filename    string
	ContentType string
	Body        []byte
}

type Config struct {
	Timeout  time.Duration
	MaxBytes int64
}

type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		maxBytes:   maxBytes,
	}
}

// Fetch downloads the rendered image at rawURL and names it after title.
func (c *Client) Fetch(ctx context.Context, rawURL, title string) (Attachment, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return Attachment{}, fmt.Errorf("%w: download url is required", domain.ErrValidation)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: build download request: %v", domain.ErrValidation, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: fetch %s: %v", domain.ErrExternalService, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Attachment{}, fmt.Errorf("%w: fetch %s returned status=%d", domain.ErrExternalService, rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes+1))
	if err != nil {
		return Attachment{}, fmt.Errorf("%w: read %s: %v", domain.ErrExternalService, rawURL, err)
	}
	if int64(len(body)) > c.maxBytes {
		return Attachment{}, fmt.Errorf("%w: render exceeds %d bytes", domain.ErrExternalService, c.maxBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(body)
	}

	return Attachment{
		Filename:    Filename(title),
		ContentType: contentType,
		Body:        body,
	}, nil
}

// Filename turns a user title into the saved file name: every space becomes
// an underscore and the extension is always .png.
func Filename(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = defaultFilename
	}
	title = strings.ReplaceAll(title, " ", "_")
	title = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', '"', '\r', '\n':
			return '_'
		}
		return r
	}, title)
	return title + ".png"
}

