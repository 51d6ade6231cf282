package bootstrap

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/imports"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/protocol"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

// State of a context.
type State int32

const (
	StateUninitialized State = iota
	StateReady
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Config configures a Context.
type Config struct {
	ID string
	// Source is the worker blob built by Blob.
	Source string
	// Scripts loads option scripts referenced by the init frame.
	Scripts scripts.Loader

	MaxCallStackSize int
	// BootTimeout bounds blob evaluation and init handling. Zero disables it.
	BootTimeout time.Duration

	// OnStop is called once with the error Run returns, before the port
	// is closed.
	OnStop func(err error)

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

type task func() error

type timer struct {
	t    *time.Timer
	fn   goja.Callable
	args []goja.Value
}

type pendingCall struct {
	name   string
	settle func(result, reason goja.Value)
}

// Context is one isolated execution of a worker. All fields below the
// runtime are owned by the goroutine calling Run.
type Context struct {
	id      string
	cfg     Config
	port    transport.Port
	log     *zap.Logger
	metrics *monitoring.Metrics

	vm        *goja.Runtime
	program   *goja.Program
	parse     goja.Callable
	stringify goja.Callable

	env      *goja.Object
	options  *goja.Object
	shim     *imports.Shim
	handlers *protocol.HandlerTable[goja.Callable]
	entry    goja.Callable

	tasks     *transport.Queue[task]
	timers    map[int64]*timer
	nextTimer int64
	calls     map[string]pendingCall
	pending   []*protocol.Envelope
	debug     bool

	state      atomic.Int32
	terminated atomic.Bool
	runOnce    sync.Once
}

// New prepares a context that talks through port. The blob is compiled but
// not evaluated until Run.
func New(port transport.Port, cfg Config) (*Context, error) {
	program, err := goja.Compile(cfg.ID, cfg.Source, false)
	if err != nil {
		return nil, &ScriptError{Phase: "compile worker blob", Err: err}
	}

	vm := goja.New()
	if cfg.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(cfg.MaxCallStackSize)
	}

	c := &Context{
		id:       cfg.ID,
		cfg:      cfg,
		port:     port,
		log:      logging.OrNop(cfg.Logger).With(zap.String("worker_id", cfg.ID)),
		metrics:  cfg.Metrics,
		vm:       vm,
		program:  program,
		handlers: protocol.NewHandlerTable[goja.Callable](),
		tasks:    transport.NewQueue[task](),
		timers:   make(map[int64]*timer),
		calls:    make(map[string]pendingCall),
	}

	if err := c.setupGlobals(); err != nil {
		return nil, err
	}
	if err := c.setupEnv(); err != nil {
		return nil, err
	}
	return c, nil
}

// ID returns the worker id.
func (c *Context) ID() string {
	return c.id
}

// State returns the current state.
func (c *Context) State() State {
	return State(c.state.Load())
}

// Terminate interrupts running JavaScript and closes the port. Run returns
// ErrTerminated.
func (c *Context) Terminate() {
	if c.terminated.Swap(true) {
		return
	}
	c.vm.Interrupt(ErrTerminated)
	_ = c.port.Close()
}

// Run boots the context and serves frames until the port closes, ctx is
// done, the context is terminated or a fatal error occurs. A closed port is
// a normal end and returns nil. Run may only be called once.
func (c *Context) Run(ctx context.Context) error {
	err := ErrAlreadyRan
	c.runOnce.Do(func() {
		err = c.run(ctx)
	})
	return err
}

func (c *Context) run(ctx context.Context) (err error) {
	defer func() { c.shutdown(err) }()

	stop := context.AfterFunc(ctx, func() { c.vm.Interrupt(ctx.Err()) })
	defer stop()

	defer func() {
		if c.terminated.Load() {
			err = ErrTerminated
		}
		if err != nil {
			c.log.Warn("Context stopped", zap.Error(err))
		} else {
			c.log.Debug("Context stopped")
		}
	}()

	if err := c.withDeadline(c.boot); err != nil {
		return err
	}
	c.log.Debug("Context booted")

	for {
		if err := c.runTasks(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-c.port.Receive():
			if !ok {
				return nil
			}
			if err := c.handleFrame(frame); err != nil {
				return err
			}
		case <-c.tasks.Signal():
		}
	}
}

// boot evaluates the blob and keeps the entry point for init.
func (c *Context) boot() error {
	v, err := c.vm.RunProgram(c.program)
	if err != nil {
		return c.bootError("evaluate worker blob", err)
	}

	factory, ok := goja.AssertFunction(v)
	if !ok {
		return &ScriptError{Phase: "evaluate worker blob", Err: errors.New("blob is not a function")}
	}

	entry, err := factory(goja.Undefined(), c.env)
	if importErr := c.shim.Err(); importErr != nil {
		return importErr
	}
	if err != nil {
		return c.bootError("evaluate worker blob", err)
	}

	c.entry, ok = goja.AssertFunction(entry)
	if !ok {
		return &ScriptError{Phase: "evaluate worker blob", Err: errors.New("blob returned no entry point")}
	}
	return nil
}

func (c *Context) bootError(phase string, err error) error {
	if cause, ok := interrupted(err); ok {
		return cause
	}
	return &ScriptError{Phase: phase, Err: err}
}

// withDeadline runs fn under the boot timeout.
func (c *Context) withDeadline(fn func() error) error {
	if c.cfg.BootTimeout <= 0 {
		return fn()
	}

	t := time.AfterFunc(c.cfg.BootTimeout, func() { c.vm.Interrupt(ErrBootTimeout) })
	err := fn()
	if !t.Stop() && err == nil {
		return ErrBootTimeout
	}
	return err
}

// schedule queues fn for a later turn of the event loop.
func (c *Context) schedule(fn func() error) {
	c.tasks.Push(fn)
}

func (c *Context) runTasks() error {
	for _, t := range c.tasks.Drain() {
		if err := c.settle("", t()); err != nil {
			return err
		}
	}
	return nil
}

// settle classifies an error thrown by application JavaScript. Interrupts
// are fatal and returned; anything else is logged, reported to the creator
// and swallowed.
func (c *Context) settle(kind string, err error) error {
	if err == nil {
		return nil
	}
	if cause, ok := interrupted(err); ok {
		return cause
	}

	c.metrics.HandlerError(monitoring.SideContext)
	c.log.Error("Uncaught exception", zap.String("type", kind), zap.Error(err))
	c.report(kind, message(err))
	return nil
}

func (c *Context) report(kind, msg string) {
	raw, err := protocol.Encode(protocol.KindError, protocol.HandlerFailure{Kind: kind, Message: msg}, c.debug)
	if err != nil {
		c.log.Error("Failed to encode error report", zap.Error(err))
		return
	}
	c.post(raw)
}

func (c *Context) post(raw []byte) {
	if err := c.port.Post(raw); err != nil {
		c.log.Debug("Dropping outbound frame", zap.Error(err))
		return
	}
	c.metrics.MessageSent(monitoring.SideContext)
}

func (c *Context) shutdown(err error) {
	c.state.Store(int32(StateStopped))
	if c.cfg.OnStop != nil {
		c.cfg.OnStop(err)
	}
	c.tasks.Close()
	for id, tm := range c.timers {
		tm.t.Stop()
		delete(c.timers, id)
	}
	_ = c.port.Close()
}
