// Package passage fetches scripture text for a canonical reference from a
// bible-api.com compatible service.
package passage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/juju/ratelimit"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultBaseURL     = "https://bible-api.com"
	DefaultTranslation = "web"
	defaultTimeout     = 10 * time.Second
	maxResponseBytes   = 4 << 20
)

var (
	// ErrFetchFailed marks every failure to produce a passage.
	ErrFetchFailed = errors.New("passage: fetch failed")
	// ErrEmptyReference indicates that no reference was supplied.
	ErrEmptyReference = errors.New("passage: empty reference")
	noOpLogger        = zap.NewNop()
)

// Verse is one verse of fetched text.
type Verse struct {
	Book    string `json:"book"`
	Chapter int    `json:"chapter"`
	Verse   int    `json:"verse"`
	Text    string `json:"text"`
}

// Passage is the fetched text for a reference.
type Passage struct {
	Reference   string  `json:"reference"`
	Translation string  `json:"translation"`
	Verses      []Verse `json:"verses"`
}

// FetchError describes a failed fetch. It matches ErrFetchFailed with errors.Is.
type FetchError struct {
	Reference  string
	StatusCode int
	Reason     string
	Err        error
}

func (e *FetchError) Error() string {
	var builder strings.Builder
	builder.WriteString("passage fetch ")
	builder.WriteString(fmt.Sprintf("%q", e.Reference))
	builder.WriteString(": ")
	builder.WriteString(e.Reason)
	if e.StatusCode != 0 {
		builder.WriteString(fmt.Sprintf(" (status %d)", e.StatusCode))
	}
	if e.Err != nil {
		builder.WriteString(": ")
		builder.WriteString(e.Err.Error())
	}
	return builder.String()
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetchFailed
}

// Observer receives the outcome of every upstream request.
type Observer interface {
	ObserveFetch(outcome string, duration time.Duration)
}

type ClientConfig struct {
	BaseURL           string
	Translation       string
	HTTPClient        *http.Client
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int64
	Observer          Observer
	Logger            *zap.Logger
}

// Client fetches passages. Concurrent fetches of the same reference share one
// upstream request; all upstream requests draw from one token bucket.
type Client struct {
	baseURL     *url.URL
	translation string
	httpClient  *http.Client
	bucket      *ratelimit.Bucket
	group       singleflight.Group
	observer    Observer
	logger      *zap.Logger
}

func NewClient(cfg ClientConfig) (*Client, error) {
	rawBaseURL := strings.TrimSpace(cfg.BaseURL)
	if rawBaseURL == "" {
		rawBaseURL = DefaultBaseURL
	}
	baseURL, err := url.Parse(strings.TrimRight(rawBaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("passage: invalid base url: %w", err)
	}
	if baseURL.Scheme != "http" && baseURL.Scheme != "https" {
		return nil, fmt.Errorf("passage: unsupported base url scheme %q", baseURL.Scheme)
	}

	translation := strings.TrimSpace(cfg.Translation)
	if translation == "" {
		translation = DefaultTranslation
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var bucket *ratelimit.Bucket
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		bucket = ratelimit.NewBucketWithRate(cfg.RequestsPerSecond, burst)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}

	return &Client{
		baseURL:     baseURL,
		translation: translation,
		httpClient:  httpClient,
		bucket:      bucket,
		observer:    cfg.Observer,
		logger:      logger,
	}, nil
}

// Translation reports the translation requested from the upstream service.
func (c *Client) Translation() string {
	return c.translation
}

// Fetch returns the verses of reference.
func (c *Client) Fetch(ctx context.Context, reference string) (Passage, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Passage{}, &FetchError{Reason: "empty reference", Err: ErrEmptyReference}
	}

	result, err, shared := c.group.Do(reference, func() (any, error) {
		return c.fetch(ctx, reference)
	})
	if err != nil {
		return Passage{}, err
	}
	fetched := result.(Passage)
	if shared {
		fetched.Verses = append([]Verse(nil), fetched.Verses...)
	}
	return fetched, nil
}

func (c *Client) fetch(ctx context.Context, reference string) (passage Passage, err error) {
	started := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			c.logger.Warn("passage fetch failed", zap.String("reference", reference), zap.Error(err))
		}
		if c.observer != nil {
			c.observer.ObserveFetch(outcome, time.Since(started))
		}
	}()

	if err := c.wait(ctx); err != nil {
		return Passage{}, &FetchError{Reference: reference, Reason: "rate limit wait aborted", Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.passageURL(reference), nil)
	if err != nil {
		return Passage{}, &FetchError{Reference: reference, Reason: "build request", Err: err}
	}
	request.Header.Set("Accept", "application/json")

	response, err := c.httpClient.Do(request)
	if err != nil {
		return Passage{}, &FetchError{Reference: reference, Reason: "request failed", Err: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(response.Body, maxResponseBytes))
		return Passage{}, &FetchError{Reference: reference, StatusCode: response.StatusCode, Reason: "unexpected status"}
	}

	body, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return Passage{}, &FetchError{Reference: reference, Reason: "read body", Err: err}
	}

	var payload apiResponse
	if err := sonic.ConfigStd.Unmarshal(body, &payload); err != nil {
		return Passage{}, &FetchError{Reference: reference, Reason: "decode body", Err: err}
	}
	if len(payload.Verses) == 0 {
		return Passage{}, &FetchError{Reference: reference, Reason: "no verses returned"}
	}

	return payload.passage(reference, c.translation), nil
}

func (c *Client) wait(ctx context.Context) error {
	if c.bucket == nil {
		return ctx.Err()
	}
	delay := c.bucket.Take(1)
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (c *Client) passageURL(reference string) string {
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + reference
	target.RawPath = c.baseURL.EscapedPath() + "/" + url.PathEscape(reference)
	query := url.Values{}
	query.Set("translation", c.translation)
	target.RawQuery = query.Encode()
	return target.String()
}

type apiVerse struct {
	BookName string `json:"book_name"`
	Chapter  int    `json:"chapter"`
	Verse    int    `json:"verse"`
	Text     string `json:"text"`
}

type apiResponse struct {
	Reference       string     `json:"reference"`
	Verses          []apiVerse `json:"verses"`
	TranslationID   string     `json:"translation_id"`
	TranslationName string     `json:"translation_name"`
}

func (r apiResponse) passage(requested, translation string) Passage {
	verses := make([]Verse, 0, len(r.Verses))
	for _, verse := range r.Verses {
		verses = append(verses, Verse{
			Book:    verse.BookName,
			Chapter: verse.Chapter,
			Verse:   verse.Verse,
			Text:    strings.TrimSpace(verse.Text),
		})
	}
	reference := strings.TrimSpace(r.Reference)
	if reference == "" {
		reference = requested
	}
	if r.TranslationID != "" {
		translation = r.TranslationID
	}
	return Passage{Reference: reference, Translation: translation, Verses: verses}
}
