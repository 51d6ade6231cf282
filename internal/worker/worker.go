package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/bootstrap"
	"github.com/GriffinCanCode/jsworker/internal/imports"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/logging"
	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/protocol"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/serializer"
	"github.com/GriffinCanCode/jsworker/internal/shared/id"
	"github.com/GriffinCanCode/jsworker/internal/transport"
)

// Handler receives the decoded payload of a message.
type Handler func(payload any)

// Option configures Create.
type Option func(*settings)

type settings struct {
	spawner Spawner
	table   imports.Table
	logger  *zap.Logger
	metrics *monitoring.Metrics
	debug    bool
	onError  func(error)
	handlers []handlerEntry
}

type handlerEntry struct {
	kind string
	h    Handler
}

// WithSpawner selects where the context runs. The default runs it in
// process.
func WithSpawner(s Spawner) Option {
	return func(o *settings) { o.spawner = s }
}

// WithModules provides the bundler module table the import map resolves
// against. Without it import maps are ignored.
func WithModules(t imports.Table) Option {
	return func(o *settings) { o.table = t }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *settings) { o.logger = l }
}

// WithMetrics records creator-side metrics.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(o *settings) { o.metrics = m }
}

// WithDebug logs every message on both sides.
func WithDebug(debug bool) Option {
	return func(o *settings) { o.debug = debug }
}

// WithHandler is RegisterMsgHandler applied before the context starts, so
// messages the worker main sends during init are never missed.
func WithHandler(kind string, h Handler) Option {
	return func(o *settings) { o.handlers = append(o.handlers, handlerEntry{kind: kind, h: h}) }
}

// WithErrorHandler is OnError applied before the context starts.
func WithErrorHandler(fn func(error)) Option {
	return func(o *settings) { o.onError = fn }
}

// maxHeld bounds the messages held for kinds without a handler while the
// context starts.
const maxHeld = 1024

// heldMessage arrived before ready with no handler registered for its kind.
type heldMessage struct {
	kind    string
	payload any
}

// Worker controls one isolated context.
type Worker struct {
	id       string
	handle   Handle
	handlers *protocol.HandlerTable[Handler]
	store    *scripts.Store
	refs     []string
	caps     map[string]Func
	log      *zap.Logger
	metrics  *monitoring.Metrics
	debug    atomic.Bool

	errMu   sync.RWMutex
	onError func(error)

	ctx    context.Context
	cancel context.CancelFunc

	ready     chan struct{}
	readyOnce sync.Once
	done      chan struct{}
	err       error

	// held is owned by listen; registered wakes it to replay held kinds.
	held       []heldMessage
	holding    atomic.Bool
	registered *transport.Queue[string]
}

// Create spawns a context running main with the given options and imports
// and delivers the init message. It returns without waiting for the context
// to become ready; messages sent before that are buffered by the context.
// Cancelling ctx stops the worker.
func Create(ctx context.Context, main string, opts Options, importMap imports.ImportMap, options ...Option) (*Worker, error) {
	s := &settings{}
	for _, opt := range options {
		opt(s)
	}

	if err := serializer.CheckFunction(main); err != nil {
		return nil, err
	}

	src, err := imports.NewResolver(s.table).Source(importMap)
	if err != nil {
		return nil, fmt.Errorf("resolve imports: %w", err)
	}

	wid := id.NewWorkerID().String()
	blob := bootstrap.Blob(main, src)
	if _, err := goja.Compile(wid, blob, false); err != nil {
		return nil, &serializer.SyntaxError{Name: "worker blob", Err: err}
	}

	store := scripts.NewStore()
	prep, err := prepareOptions(opts, store)
	if err != nil {
		return nil, err
	}

	spawner := s.spawner
	if spawner == nil {
		spawner = &LocalSpawner{Logger: s.logger, Metrics: s.metrics}
	}

	handle, err := spawner.Spawn(ctx, wid, blob, store)
	if err != nil {
		return nil, fmt.Errorf("spawn worker: %w", err)
	}

	wctx, cancel := context.WithCancel(ctx)
	w := &Worker{
		id:       wid,
		handle:   handle,
		handlers: protocol.NewHandlerTable[Handler](),
		store:    store,
		refs:     prep.refs,
		caps:     prep.capabilities,
		log:      logging.OrNop(s.logger).With(zap.String("worker_id", wid)),
		metrics:  s.metrics,
		onError:  s.onError,
		ctx:      wctx,
		cancel:   cancel,
		ready:    make(chan struct{}),
		done:     make(chan struct{}),

		registered: transport.NewQueue[string](),
	}
	w.debug.Store(s.debug)
	for _, e := range s.handlers {
		w.RegisterMsgHandler(e.kind, e.h)
	}

	raw, err := protocol.Marshal(&protocol.Envelope{Type: protocol.KindInit, Debug: s.debug, Options: prep.entries})
	if err != nil {
		handle.Terminate()
		cancel()
		return nil, err
	}
	w.post(raw)

	go w.listen()
	return w, nil
}

// ID returns the worker id.
func (w *Worker) ID() string {
	return w.id
}

// RegisterMsgHandler handles messages of kind. The first handler registered
// for a kind wins until it is dropped. Messages of kind that the worker sent
// before it became ready and that found no handler are delivered first.
func (w *Worker) RegisterMsgHandler(kind string, h Handler) *Worker {
	if protocol.IsReserved(kind) {
		w.report(fmt.Errorf("%w: %q", ErrReservedKind, kind))
		return w
	}
	if !w.handlers.Register(kind, h) {
		w.log.Debug("Handler already registered", zap.String("type", kind))
		return w
	}
	if w.holding.Load() {
		w.registered.Push(kind)
	}
	return w
}

// DropMsgHandler removes the handler for kind.
func (w *Worker) DropMsgHandler(kind string) *Worker {
	w.handlers.Drop(kind)
	return w
}

// Send posts a message to the context. Encoding failures are reported to the
// error handler.
func (w *Worker) Send(kind string, payload any) *Worker {
	if protocol.IsReserved(kind) {
		w.report(fmt.Errorf("%w: %q", ErrReservedKind, kind))
		return w
	}

	debug := w.debug.Load()
	raw, err := protocol.Encode(kind, payload, debug)
	if err != nil {
		w.report(fmt.Errorf("encode %q: %w", kind, err))
		return w
	}

	if debug {
		w.log.Info("Sending message", zap.String("type", kind))
	}
	w.post(raw)
	return w
}

// OnError sets the function receiving asynchronous errors: encode failures,
// handler panics and exceptions reported by the context.
func (w *Worker) OnError(fn func(error)) *Worker {
	w.errMu.Lock()
	w.onError = fn
	w.errMu.Unlock()
	return w
}

// SetDebug toggles message logging on both sides.
func (w *Worker) SetDebug(debug bool) *Worker {
	w.debug.Store(debug)
	return w
}

// Ready is closed once the context has processed init.
func (w *Worker) Ready() <-chan struct{} {
	return w.ready
}

// Done is closed once the context has stopped and every message from it was
// handled.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err reports why the context stopped. It is nil before Done is closed.
func (w *Worker) Err() error {
	select {
	case <-w.done:
		return w.err
	default:
		return nil
	}
}

// Wait blocks until the worker stops or ctx is done.
func (w *Worker) Wait(ctx context.Context) error {
	select {
	case <-w.done:
		return w.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate stops the context.
func (w *Worker) Terminate() {
	w.handle.Terminate()
}

func (w *Worker) post(raw []byte) {
	if err := w.handle.Post(raw); err != nil {
		w.report(fmt.Errorf("post to worker: %w", err))
		return
	}
	w.metrics.MessageSent(monitoring.SideCreator)
}

func (w *Worker) report(err error) {
	w.log.Error("Worker error", zap.Error(err))

	w.errMu.RLock()
	fn := w.onError
	w.errMu.RUnlock()

	if fn != nil {
		fn(err)
	}
}

// listen dispatches frames from the context until it stops.
func (w *Worker) listen() {
	defer close(w.done)
	defer w.cancel()
	defer w.teardown()

	frames := w.handle.Receive()
	for {
		select {
		case raw, ok := <-frames:
			if !ok {
				<-w.handle.Done()
				w.err = w.handle.Err()
				return
			}
			if err := w.handleFrame(raw); err != nil {
				w.metrics.DecodeError(monitoring.SideCreator)
				w.report(err)
				w.handle.Terminate()
				for range frames {
				}
				<-w.handle.Done()
				w.err = err
				return
			}
		case <-w.registered.Signal():
			for _, kind := range w.registered.Drain() {
				w.replay(kind)
			}
		}
	}
}

// teardown drops what the stopped context no longer needs.
func (w *Worker) teardown() {
	w.registered.Close()
	w.holding.Store(false)
	for range w.held {
		w.metrics.MessageDropped(monitoring.SideCreator)
	}
	w.held = nil

	for _, ref := range w.refs {
		w.store.Revoke(ref)
	}
}

func (w *Worker) isReady() bool {
	select {
	case <-w.ready:
		return true
	default:
		return false
	}
}

// hold keeps a message that arrived before ready with no handler.
func (w *Worker) hold(kind string, payload any) bool {
	if w.isReady() || len(w.held) >= maxHeld {
		return false
	}
	w.held = append(w.held, heldMessage{kind: kind, payload: payload})
	w.holding.Store(true)

	// A handler registered before holding was set did not signal.
	w.replay(kind)
	return true
}

// replay delivers held messages of kind, in arrival order, once a handler
// for kind exists.
func (w *Worker) replay(kind string) {
	if len(w.held) == 0 {
		return
	}
	h, ok := w.handlers.Lookup(kind)
	if !ok {
		return
	}

	var due []heldMessage
	kept := w.held[:0]
	for _, m := range w.held {
		if m.kind == kind {
			due = append(due, m)
		} else {
			kept = append(kept, m)
		}
	}
	w.held = kept
	w.holding.Store(len(kept) > 0)

	for _, m := range due {
		w.invoke(m.kind, h, m.payload)
	}
}

// handleFrame routes one frame. The returned error is fatal.
func (w *Worker) handleFrame(raw []byte) error {
	env, err := protocol.Decode(raw)
	if err != nil {
		return err
	}
	w.metrics.MessageReceived(monitoring.SideCreator)

	switch env.Type {
	case protocol.KindReady:
		w.readyOnce.Do(func() { close(w.ready) })
		return nil
	case protocol.KindCall:
		var req protocol.CallRequest
		if err := env.Bind(&req); err != nil {
			return err
		}
		go w.serve(req)
		return nil
	case protocol.KindError:
		var failure protocol.HandlerFailure
		if err := env.Bind(&failure); err != nil {
			return err
		}
		w.report(&HandlerError{Kind: failure.Kind, Message: failure.Message})
		return nil
	}
	if protocol.IsReserved(env.Type) {
		return nil
	}

	if w.debug.Load() || env.Debug {
		w.log.Info("Received message", zap.String("type", env.Type), zap.String("payload", env.PayloadText()))
	}

	payload, err := env.Value()
	if err != nil {
		return err
	}

	handler, ok := w.handlers.Lookup(env.Type)
	if !ok {
		if !w.hold(env.Type, payload) {
			w.metrics.MessageDropped(monitoring.SideCreator)
		}
		return nil
	}
	w.replay(env.Type)
	w.invoke(env.Type, handler, payload)
	return nil
}

func (w *Worker) invoke(kind string, h Handler, payload any) {
	defer func() {
		if r := recover(); r != nil {
			w.metrics.HandlerError(monitoring.SideCreator)
			w.report(fmt.Errorf("handler %q panicked: %v", kind, r))
		}
	}()
	h(payload)
}

// serve runs a capability call and replies with its result.
func (w *Worker) serve(req protocol.CallRequest) {
	timer := monitoring.NewTimer(w.metrics, req.Name)
	res := protocol.CallResult{ID: req.ID}

	result, err := w.call(req)
	if err != nil {
		res.Error = err.Error()
		timer.Stop("error")
	} else {
		res.Result = result
		timer.Stop("success")
	}

	raw, err := protocol.Encode(protocol.KindReturn, res, w.debug.Load())
	if err != nil {
		raw, _ = protocol.Encode(protocol.KindReturn, protocol.CallResult{
			ID:    req.ID,
			Error: fmt.Sprintf("encode result: %v", err),
		}, w.debug.Load())
	}
	w.post(raw)
}

func (w *Worker) call(req protocol.CallRequest) (result any, err error) {
	fn, ok := w.caps[req.Name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownCapability, req.Name)
	}

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("capability %q panicked: %v", req.Name, r)
		}
	}()

	return fn(w.ctx, req.Args)
}
