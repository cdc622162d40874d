package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/MrEthical07/goAuthClient/transport"
)

const (
	defaultAttemptTimeout = 15 * time.Second
	maxErrorBody          = 64 << 10
)

// Options configure a [Client].
type Options struct {
	BaseURL string
	// Public sends unauthenticated calls. Nil uses a new [http.Client].
	Public *http.Client
	// Authorized sends bearer calls; it must attach the token itself.
	Authorized *http.Client
	// AttemptTimeout bounds each public call. Zero means 15s.
	AttemptTimeout time.Duration
	Logger         zerolog.Logger
}

// Client talks to the authentication backend.
type Client struct {
	baseURL    string
	public     *http.Client
	authorized *http.Client
	timeout    time.Duration
	validate   *validator.Validate
	logger     zerolog.Logger
}

// New returns a Client for opts.
func New(opts Options) *Client {
	if opts.Public == nil {
		opts.Public = &http.Client{}
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = defaultAttemptTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		public:     opts.Public,
		authorized: opts.Authorized,
		timeout:    opts.AttemptTimeout,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		logger:     opts.Logger,
	}
}

// call describes one request.
type call struct {
	method string
	path   string
	in     any
	out    any
	bearer string
	authed bool
}

func (c *Client) do(ctx context.Context, cl call) error {
	if cl.in != nil {
		if err := c.validate.Struct(cl.in); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
	}

	hc := c.public
	if cl.authed {
		if c.authorized == nil {
			return transport.ErrNotAuthenticated
		}
		hc = c.authorized
	} else {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var body io.Reader
	if cl.in != nil {
		b, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", cl.method, cl.path, err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, body)
	if err != nil {
		return fmt.Errorf("create request %s %s: %w", cl.method, cl.path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cl.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+cl.bearer)
	}

	start := time.Now()
	resp, err := hc.Do(req)
	if err != nil {
		if errors.Is(err, transport.ErrNotAuthenticated) {
			return transport.ErrNotAuthenticated
		}
		c.logger.Debug().Err(err).Str("method", cl.method).Str("path", cl.path).Msg("request failed")
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, cl.method, cl.path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	c.logger.Debug().
		Str("method", cl.method).
		Str("path", cl.path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("api call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}
	if cl.out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(cl.out); err != nil {
		return fmt.Errorf("%w: decode %s %s response: %w", ErrNetwork, cl.method, cl.path, err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	apiErr := &Error{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var eb errorBody
	if json.Unmarshal(raw, &eb) == nil {
		apiErr.Code = eb.Code
		apiErr.Message = eb.Message
	} else if text := strings.TrimSpace(string(raw)); text != "" && len(text) < 256 {
		apiErr.Message = text
	}
	return apiErr
}
