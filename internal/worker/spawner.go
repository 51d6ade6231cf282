package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/bootstrap"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

// Spawner starts an isolated context running source. Option scripts
// referenced by the init frame are resolved through store.
type Spawner interface {
	Spawn(ctx context.Context, id, source string, store *scripts.Store) (Handle, error)
}

// Handle is the creator's end of a spawned context.
type Handle interface {
	transport.Port
	// Terminate stops the context.
	Terminate()
	// Done is closed once the context has stopped.
	Done() <-chan struct{}
	// Err reports why the context stopped. It is nil for a normal close.
	Err() error
}

// LocalSpawner runs contexts in process, each on its own goroutine.
type LocalSpawner struct {
	MaxCallStackSize int
	BootTimeout      time.Duration
	Logger           *zap.Logger
	Metrics          *monitoring.Metrics
}

func (s *LocalSpawner) Spawn(ctx context.Context, id, source string, store *scripts.Store) (Handle, error) {
	creator, contextEnd := transport.Pipe()

	c, err := bootstrap.New(contextEnd, bootstrap.Config{
		ID:               id,
		Source:           source,
		Scripts:          store,
		MaxCallStackSize: s.MaxCallStackSize,
		BootTimeout:      s.BootTimeout,
		Logger:           s.Logger,
		Metrics:          s.Metrics,
	})
	if err != nil {
		creator.Close()
		contextEnd.Close()
		return nil, err
	}

	h := &localHandle{Port: creator, context: c, done: make(chan struct{})}
	s.Metrics.WorkerStarted("local")

	go func() {
		err := c.Run(ctx)
		s.Metrics.WorkerStopped("local", err)

		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	}()
	return h, nil
}

type localHandle struct {
	transport.Port
	context *bootstrap.Context
	done    chan struct{}

	mu  sync.Mutex
	err error
}

func (h *localHandle) Terminate() {
	h.context.Terminate()
}

func (h *localHandle) Done() <-chan struct{} {
	return h.done
}

func (h *localHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}
