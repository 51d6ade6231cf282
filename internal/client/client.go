package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/host"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/resilience"
)

var (
	ErrNotFound   = errors.New("worker not found")
	ErrHostStatus = errors.New("unexpected host response")
)

// Config configures a host client.
type Config struct {
	Timeout      time.Duration
	RetryMax     int
	RetryWaitMin time.Duration
	RetryWaitMax time.Duration
	Breaker      resilience.Settings
	Logger       *zap.Logger
}

// DefaultConfig returns the client defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:      10 * time.Second,
		RetryMax:     3,
		RetryWaitMin: 200 * time.Millisecond,
		RetryWaitMax: 2 * time.Second,
		Breaker:      resilience.DefaultSettings(),
	}
}

// Health is the host's /health response.
type Health struct {
	Status     string `json:"status"`
	Service    string `json:"service"`
	Workers    int    `json:"workers"`
	MaxWorkers int    `json:"max_workers"`
}

type workerList struct {
	Workers []host.Info `json:"workers"`
	Count   int         `json:"count"`
}

type apiError struct {
	Error string `json:"error"`
}

// Client talks to a worker host's HTTP API.
type Client struct {
	base    *url.URL
	resty   *resty.Client
	breaker *resilience.Breaker
	log     *zap.Logger
}

// New creates a client for the host at baseURL (http or https).
func New(baseURL string, cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse host url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("parse host url: unsupported scheme %q", base.Scheme)
	}

	log := logging.OrNop(cfg.Logger).Named("client")

	retry := retryablehttp.NewClient()
	retry.RetryMax = cfg.RetryMax
	retry.RetryWaitMin = cfg.RetryWaitMin
	retry.RetryWaitMax = cfg.RetryWaitMax
	retry.Logger = leveled{log.Sugar()}

	httpClient := retry.StandardClient()
	httpClient.Timeout = cfg.Timeout

	settings := cfg.Breaker
	settings.Permanent = func(err error) bool { return errors.Is(err, ErrNotFound) }
	settings.OnStateChange = func(name string, from, to resilience.State) {
		log.Warn("Host circuit changed", zap.String("host", name),
			zap.Stringer("from", from), zap.Stringer("to", to))
	}

	return &Client{
		base: base,
		resty: resty.NewWithClient(httpClient).
			SetBaseURL(base.String()).
			SetHeader("User-Agent", "jsworker/1.0").
			SetHeader("Accept", "application/json"),
		breaker: resilience.New(base.Host, settings),
		log:     log,
	}, nil
}

// SpawnURL returns the host's websocket spawn endpoint.
func (c *Client) SpawnURL() string {
	u := *c.base
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/spawn"
	return u.String()
}

// Breaker returns the breaker guarding the host.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Health fetches host status.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Workers lists the host's running workers.
func (c *Client) Workers(ctx context.Context) ([]host.Info, error) {
	var out workerList
	if err := c.do(ctx, http.MethodGet, "/workers", &out); err != nil {
		return nil, err
	}
	return out.Workers, nil
}

// Terminate stops a worker on the host.
func (c *Client) Terminate(ctx context.Context, workerID string) error {
	return c.do(ctx, http.MethodDelete, "/workers/"+url.PathEscape(workerID), nil)
}

func (c *Client) do(ctx context.Context, method, path string, result any) error {
	return c.breaker.Do(func() error {
		var failure apiError
		req := c.resty.R().SetContext(ctx).SetError(&failure)
		if result != nil {
			req.SetResult(result)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}

		switch {
		case resp.StatusCode() == http.StatusNotFound:
			return ErrNotFound
		case resp.IsError():
			c.log.Debug("Host error", zap.Int("status", resp.StatusCode()), zap.String("error", failure.Error))
			return fmt.Errorf("%w: %s %s: %d %s", ErrHostStatus, method, path, resp.StatusCode(), failure.Error)
		}
		return nil
	})
}

// leveled adapts zap to retryablehttp's leveled logger.
type leveled struct {
	s *zap.SugaredLogger
}

func (l leveled) Error(msg string, kv ...interface{}) { l.s.Errorw(msg, kv...) }
func (l leveled) Info(msg string, kv ...interface{})  { l.s.Infow(msg, kv...) }
func (l leveled) Debug(msg string, kv ...interface{}) { l.s.Debugw(msg, kv...) }
func (l leveled) Warn(msg string, kv ...interface{})  { l.s.Warnw(msg, kv...) }
