package host

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/bootstrap"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/shared/id"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

const spawnReadTimeout = 10 * time.Second

var (
	ErrCapacity    = errors.New("worker host is at capacity")
	ErrDuplicateID = errors.New("worker id already running")
	ErrClosed      = errors.New("worker host is shutting down")
)

// Config holds host limits.
type Config struct {
	MaxWorkers       int
	MaxMessageBytes  int64
	MaxCallStackSize int
	BootTimeout      time.Duration
}

// Info describes a running context.
type Info struct {
	ID      string    `json:"id"`
	Started time.Time `json:"started"`
	Remote  string    `json:"remote"`
	State   string    `json:"state"`
	// Source is a short hash of the worker's code.
	Source string `json:"source"`
}

type running struct {
	info    Info
	port    *transport.WebSocketPort
	context *bootstrap.Context
}

// Host tracks the contexts it runs.
type Host struct {
	cfg      Config
	log      *zap.Logger
	metrics  *monitoring.Metrics
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.RWMutex
	workers map[string]*running
	closed  bool
}

// New creates a host.
func New(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) *Host {
	ctx, cancel := context.WithCancel(context.Background())
	return &Host{
		cfg:     cfg,
		log:     logging.OrNop(logger).Named("host"),
		metrics: metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // CORS middleware guards browser origins
			},
		},
		ctx:     ctx,
		cancel:  cancel,
		workers: make(map[string]*running),
	}
}

// Count returns the number of running contexts.
func (h *Host) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.workers)
}

// Full reports whether the host is at capacity.
func (h *Host) Full() bool {
	return h.cfg.MaxWorkers > 0 && h.Count() >= h.cfg.MaxWorkers
}

// List returns running contexts ordered by start time.
func (h *Host) List() []Info {
	h.mu.RLock()
	infos := make([]Info, 0, len(h.workers))
	for _, w := range h.workers {
		info := w.info
		info.State = w.context.State().String()
		infos = append(infos, info)
	}
	h.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Started.Equal(infos[j].Started) {
			return infos[i].ID < infos[j].ID
		}
		return infos[i].Started.Before(infos[j].Started)
	})
	return infos
}

// Terminate stops the context with the given id.
func (h *Host) Terminate(workerID string) bool {
	h.mu.RLock()
	w, ok := h.workers[workerID]
	h.mu.RUnlock()
	if !ok {
		return false
	}

	h.log.Info("Terminating worker", zap.String("worker_id", workerID))
	_ = w.port.CloseWith(websocket.CloseGoingAway, bootstrap.ErrTerminated.Error())
	w.context.Terminate()
	return true
}

// Close terminates every context and waits for them to stop.
func (h *Host) Close() {
	h.mu.Lock()
	h.closed = true
	ids := make([]string, 0, len(h.workers))
	for workerID := range h.workers {
		ids = append(ids, workerID)
	}
	h.mu.Unlock()

	for _, workerID := range ids {
		h.Terminate(workerID)
	}
	h.cancel()
	h.wg.Wait()
}

// Serve runs one spawned context on conn until it stops. The trace and span
// in ctx, if any, are tagged with the worker and used for its log lines.
func (h *Host) Serve(ctx context.Context, conn *websocket.Conn) {
	log := h.log.With(tracing.Fields(ctx)...)

	if h.cfg.MaxMessageBytes > 0 {
		conn.SetReadLimit(h.cfg.MaxMessageBytes)
	}

	req, err := readSpawnRequest(conn)
	if err != nil {
		log.Warn("Invalid spawn request", zap.Error(err))
		reject(conn, websocket.CloseUnsupportedData, err)
		return
	}

	store, err := scripts.FromSnapshot(req.Scripts)
	if err != nil {
		reject(conn, websocket.CloseUnsupportedData, err)
		return
	}

	port := transport.NewWebSocketPort(conn)
	c, err := bootstrap.New(port, bootstrap.Config{
		ID:               req.ID,
		Source:           req.Source,
		Scripts:          store,
		MaxCallStackSize: h.cfg.MaxCallStackSize,
		BootTimeout:      h.cfg.BootTimeout,
		Logger:           log,
		Metrics:          h.metrics,
		OnStop: func(err error) {
			code, reason := closeStatus(err)
			_ = port.CloseWith(code, reason)
		},
	})
	if err != nil {
		_ = port.CloseWith(websocket.CloseUnsupportedData, err.Error())
		return
	}

	w := &running{
		info: Info{
			ID:      req.ID,
			Started: time.Now(),
			Remote:  conn.RemoteAddr().String(),
			Source:  sourceHash(req),
		},
		port:    port,
		context: c,
	}
	if err := h.add(w); err != nil {
		_ = port.CloseWith(websocket.CloseTryAgainLater, err.Error())
		return
	}
	defer h.remove(req.ID)

	span := tracing.SpanFrom(ctx)
	span.SetTag("worker_id", req.ID)

	h.metrics.WorkerStarted("remote")
	log.Info("Worker spawned",
		zap.String("worker_id", req.ID),
		zap.String("remote", w.info.Remote),
		zap.String("source", w.info.Source),
	)

	err = c.Run(h.ctx)
	h.metrics.WorkerStopped("remote", err)
	if code, _ := closeStatus(err); code == websocket.CloseInternalServerErr {
		span.SetError(err)
	}
	log.Info("Worker stopped", zap.String("worker_id", req.ID), zap.Error(err))
}

func (h *Host) add(w *running) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.closed:
		return ErrClosed
	case h.cfg.MaxWorkers > 0 && len(h.workers) >= h.cfg.MaxWorkers:
		return ErrCapacity
	}
	if _, exists := h.workers[w.info.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateID, w.info.ID)
	}

	h.workers[w.info.ID] = w
	h.wg.Add(1)
	return nil
}

func (h *Host) remove(workerID string) {
	h.mu.Lock()
	delete(h.workers, workerID)
	h.mu.Unlock()
	h.wg.Done()
}

func readSpawnRequest(conn *websocket.Conn) (*transport.SpawnRequest, error) {
	conn.SetReadDeadline(time.Now().Add(spawnReadTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, fmt.Errorf("read spawn request: %w", err)
	}

	var req transport.SpawnRequest
	if err := sonic.ConfigStd.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("decode spawn request: %w", err)
	}
	if req.ID == "" {
		req.ID = id.NewWorkerID().String()
	}
	if err := validateSpawnRequest(&req); err != nil {
		return nil, err
	}
	return &req, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func reject(conn *websocket.Conn, code int, err error) {
	port := transport.NewWebSocketPort(conn)
	_ = port.CloseWith(code, err.Error())
}

// closeStatus maps the reason a context stopped to a close frame.
func closeStatus(err error) (int, string) {
	switch {
	case err == nil:
		return websocket.CloseNormalClosure, ""
	case errors.Is(err, bootstrap.ErrTerminated), errors.Is(err, context.Canceled):
		return websocket.CloseGoingAway, err.Error()
	default:
		return websocket.CloseInternalServerErr, err.Error()
	}
}
