package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/sync/singleflight"

	"github.com/avollmer/chatrelay/internal/metrics"
)

const (
	breakerFailureThreshold = 5
	breakerOpenDuration     = 30 * time.Second
	maxResponseBytes        = 64 * 1024
)

// Translator produces a translation of text into the target language. An
// error means "no translation available"; callers fall back to the original.
type Translator interface {
	Translate(ctx context.Context, text, targetLanguage string) (string, error)
}

type translationRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type translationResponse struct {
	TranslatedText string `json:"translated_text"`
}

// Client is an HTTP Translator.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	group   singleflight.Group
}

func NewClient(url string, timeout time.Duration) *Client {
	settings := gobreaker.Settings{
		Name: "translation",
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerFailureThreshold
		},
		Timeout: breakerOpenDuration,
		OnStateChange: func(_ string, from, to gobreaker.State) {
			slog.Warn("Translation circuit breaker state changed", "from", from.String(), "to", to.String())
			metrics.TranslationBreakerState.Set(breakerStateValue(to))
		},
	}

	return &Client{
		url:     url,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// Translate POSTs {text, target_language} and returns the translated_text
// field of the response. Concurrent calls for the same text/language pair
// share one request.
func (c *Client) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	key := targetLanguage + "\x00" + text

	result, err, _ := c.group.Do(key, func() (any, error) {
		return c.breaker.Execute(func() (any, error) {
			translated, err := c.doRequest(ctx, text, targetLanguage)
			return translated, err
		})
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.TranslationRequestsTotal.WithLabelValues("rejected").Inc()
		} else {
			metrics.TranslationRequestsTotal.WithLabelValues("error").Inc()
		}
		return "", err
	}

	metrics.TranslationRequestsTotal.WithLabelValues("success").Inc()
	return result.(string), nil
}

func (c *Client) doRequest(ctx context.Context, text, targetLanguage string) (string, error) {
	start := time.Now()
	defer func() {
		metrics.TranslationDuration.Observe(time.Since(start).Seconds())
	}()

	body, err := json.Marshal(translationRequest{Text: text, TargetLanguage: targetLanguage})
	if err != nil {
		return "", fmt.Errorf("failed to encode translation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build translation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("translation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("translation service returned status %d", resp.StatusCode)
	}

	var parsed translationResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&parsed); err != nil {
		return "", fmt.Errorf("failed to decode translation response: %w", err)
	}

	if parsed.TranslatedText == "" {
		return "", errors.New("translation service returned no translated_text")
	}

	return parsed.TranslatedText, nil
}

func breakerStateValue(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
