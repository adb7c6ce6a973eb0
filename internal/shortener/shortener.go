// Package shortener talks to the external link shortening service.
//
// Shortening never fails from the caller's point of view: any error
// yields the original link.
package shortener

import (
	"bytes"
	"context"
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/sony/gobreaker"
	"github.com/tgdrive/filestore/internal/config"
	"github.com/tgdrive/filestore/internal/logging"
	"github.com/tgdrive/filestore/internal/metrics"
	"go.uber.org/zap"
)

const maxResponseSize = 64 * 1024

var (
	errStatus     = errors.New("unexpected status")
	errNoShortURL = errors.New("short_url missing")
)

type Shortener struct {
	endpoint string
	apiKey   string
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
}

func New(cfg *config.ShortenerConfig) *Shortener {
	threshold := uint32(cfg.FailureThreshold)
	return &Shortener{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.ApiKey,
		client:   &http.Client{Timeout: cfg.Timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "shortener",
			MaxRequests: 1,
			Timeout:     cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return threshold > 0 && counts.ConsecutiveFailures >= threshold
			},
		}),
	}
}

// Shorten returns the short form of longURL, or longURL itself when the
// service cannot provide one.
func (s *Shortener) Shorten(ctx context.Context, longURL string) string {
	lg := logging.FromContext(ctx)
	if s.endpoint == "" {
		metrics.ShortenerRequests.WithLabelValues("disabled").Inc()
		return longURL
	}

	res, err := s.breaker.Execute(func() (any, error) {
		return s.request(ctx, longURL)
	})
	if err != nil {
		metrics.ShortenerRequests.WithLabelValues("failed").Inc()
		lg.Warn("shortener failed, using original link", zap.String("url", longURL), zap.Error(err))
		return longURL
	}
	metrics.ShortenerRequests.WithLabelValues("ok").Inc()
	return res.(string)
}

func (s *Shortener) request(ctx context.Context, longURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(encodeRequest(longURL, s.apiKey)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", errors.Wrapf(errStatus, "status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", errors.Wrap(err, "read body")
	}
	return decodeResponse(body)
}

func encodeRequest(longURL, apiKey string) []byte {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("long_url", func(e *jx.Encoder) { e.Str(longURL) })
		e.Field("api_key", func(e *jx.Encoder) { e.Str(apiKey) })
	})
	return e.Bytes()
}

func decodeResponse(body []byte) (string, error) {
	var short string
	err := jx.DecodeBytes(body).ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "short_url" {
			return d.Skip()
		}
		v, err := d.Str()
		if err != nil {
			return errors.Wrap(err, "short_url")
		}
		short = v
		return nil
	})
	if err != nil {
		return "", errors.Wrap(err, "decode body")
	}
	if short == "" {
		return "", errNoShortURL
	}
	return short, nil
}
