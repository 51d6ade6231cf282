package worker

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/GriffinCanCode/jsworker/internal/bootstrap"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

// RemoteSpawner runs contexts on a worker host. URL is the host's
// websocket spawn endpoint, e.g. ws://localhost:8000/spawn. When Breaker is
// set, dials fail fast while the host keeps failing.
type RemoteSpawner struct {
	URL     string
	Header  http.Header
	Dialer  *websocket.Dialer
	Breaker *resilience.Breaker
}

func (s *RemoteSpawner) Spawn(ctx context.Context, id, source string, store *scripts.Store) (Handle, error) {
	conn, err := s.dial(ctx)
	if err != nil {
		return nil, err
	}

	req, err := sonic.ConfigStd.Marshal(transport.SpawnRequest{ID: id, Source: source, Scripts: store.Snapshot()})
	if err != nil {
		conn.Close()
		return nil, err
	}

	port := transport.NewWebSocketPort(conn)
	if err := port.Post(req); err != nil {
		port.Close()
		return nil, fmt.Errorf("send spawn request: %w", err)
	}

	h := &remoteHandle{WebSocketPort: port}
	go func() {
		select {
		case <-ctx.Done():
			h.Terminate()
		case <-port.Done():
		}
	}()
	return h, nil
}

func (s *RemoteSpawner) dial(ctx context.Context) (*websocket.Conn, error) {
	dialer := s.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := s.Header.Clone()
	if header == nil {
		header = http.Header{}
	}
	tracing.Inject(ctx, header)

	dial := func() (*websocket.Conn, error) {
		conn, resp, err := dialer.DialContext(ctx, s.URL, header)
		if err != nil {
			if resp != nil {
				return nil, fmt.Errorf("dial worker host %s: %w (status %d)", s.URL, err, resp.StatusCode)
			}
			return nil, fmt.Errorf("dial worker host %s: %w", s.URL, err)
		}
		return conn, nil
	}

	if s.Breaker == nil {
		return dial()
	}
	return resilience.Execute(s.Breaker, dial)
}

type remoteHandle struct {
	*transport.WebSocketPort
	terminated atomic.Bool
}

func (h *remoteHandle) Terminate() {
	if h.terminated.Swap(true) {
		return
	}
	_ = h.CloseWith(websocket.CloseNormalClosure, "terminated")
}

// Err maps the host's close frame to an error.
func (h *remoteHandle) Err() error {
	if h.terminated.Load() {
		return bootstrap.ErrTerminated
	}

	err := h.WebSocketPort.Err()
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == websocket.CloseNormalClosure {
			return nil
		}
		return fmt.Errorf("%w: %s", ErrRemoteFailed, closeErr.Text)
	}
	return err
}
