// Package httpx is the JSON-over-HTTP plumbing shared by the clients of the
// external inventory, customer and transaction services.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker/v2"
)

var defaultClient = &http.Client{
	Timeout: 10 * time.Second,
	Transport: &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   5 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	},
}

// ErrUnavailable is returned while the breaker for a service is open.
var ErrUnavailable = errors.New("service unavailable")

// StatusError is a non-2xx answer. Detail is the service's {"detail": ...}
// message when it sent one, else the raw body.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Detail     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.StatusCode, e.Detail)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == code
}

type Options struct {
	Name        string
	Timeout     time.Duration
	MaxFailures uint32
	OpenTimeout time.Duration
	Client      *http.Client
}

// Doer sends JSON requests to one service. Consecutive transport errors and
// 5xx answers trip its breaker; 4xx answers are the service doing its job and
// do not count.
type Doer struct {
	base    string
	client  *http.Client
	timeout time.Duration
	cb      *gobreaker.CircuitBreaker[[]byte]
}

func New(baseURL string, o Options) *Doer {
	if o.Client == nil {
		o.Client = defaultClient
	}
	if o.MaxFailures == 0 {
		o.MaxFailures = 5
	}
	if o.OpenTimeout <= 0 {
		o.OpenTimeout = 30 * time.Second
	}
	maxFailures := o.MaxFailures
	st := gobreaker.Settings{
		Name:    o.Name,
		Timeout: o.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= maxFailures
		},
		IsSuccessful: func(err error) bool {
			var se *StatusError
			if errors.As(err, &se) {
				return se.StatusCode < 500
			}
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("service", name).Str("from", from.String()).Str("to", to.String()).Msg("breaker state change")
		},
	}
	return &Doer{
		base:    strings.TrimRight(baseURL, "/"),
		client:  o.Client,
		timeout: o.Timeout,
		cb:      gobreaker.NewCircuitBreaker[[]byte](st),
	}
}

func (d *Doer) Get(ctx context.Context, path string, q url.Values, out any) error {
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	return d.Do(ctx, http.MethodGet, path, nil, out)
}

func (d *Doer) Post(ctx context.Context, path string, in, out any) error {
	return d.Do(ctx, http.MethodPost, path, in, out)
}

// Do sends in as JSON (when non-nil) and decodes the response into out
// (when non-nil). Each call is a single attempt.
func (d *Doer) Do(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		payload = b
	}

	body, err := d.cb.Execute(func() ([]byte, error) {
		return d.roundTrip(ctx, method, d.base+path, payload)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: %s: %w", ErrUnavailable, d.cb.Name(), err)
		}
		return err
	}
	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (d *Doer) roundTrip(ctx context.Context, method, u string, payload []byte) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, URL: u, StatusCode: resp.StatusCode, Detail: detail(body)}
	}
	return body, nil
}

// detail pulls the message out of a FastAPI-style error body.
func detail(body []byte) string {
	var e struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(body, &e) == nil && len(e.Detail) > 0 {
		var s string
		if json.Unmarshal(e.Detail, &s) == nil {
			return s
		}
		return string(e.Detail)
	}
	return strings.TrimSpace(string(body))
}
