package bootstrap

import (
	"errors"
	"fmt"
	"sort"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/jsworker/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/jsworker/internal/protocol"
)

// handleFrame routes one inbound frame. The returned error is fatal.
func (c *Context) handleFrame(raw []byte) error {
	env, err := protocol.Decode(raw)
	if err != nil {
		c.metrics.DecodeError(monitoring.SideContext)
		return err
	}
	c.metrics.MessageReceived(monitoring.SideContext)

	switch env.Type {
	case protocol.KindInit:
		if c.State() == StateReady {
			c.log.Warn("Ignoring duplicate init")
			return nil
		}
		if err := c.withDeadline(func() error { return c.init(env) }); err != nil {
			return err
		}
		return c.replay()
	case protocol.KindReturn:
		return c.handleReturn(env)
	}

	if protocol.IsReserved(env.Type) {
		c.log.Debug("Ignoring reserved message", zap.String("type", env.Type))
		return nil
	}

	if c.State() != StateReady {
		c.pending = append(c.pending, env)
		return nil
	}
	return c.dispatch(env)
}

// init applies the option set, runs the worker main and announces
// readiness.
func (c *Context) init(env *protocol.Envelope) error {
	c.debug = env.Debug

	names := make([]string, 0, len(env.Options))
	for name := range env.Options {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := c.bindOption(name, env.Options[name]); err != nil {
			return err
		}
	}

	if _, err := c.entry(goja.Undefined()); err != nil {
		return c.bootError("run worker main", err)
	}

	c.state.Store(int32(StateReady))
	c.log.Debug("Context ready", zap.Int("options", len(names)), zap.Int("buffered", len(c.pending)))

	raw, err := protocol.Encode(protocol.KindReady, nil, c.debug)
	if err != nil {
		return err
	}
	c.post(raw)
	return nil
}

// replay dispatches messages that arrived before init, in arrival order.
func (c *Context) replay() error {
	pending := c.pending
	c.pending = nil
	for _, msg := range pending {
		if err := c.dispatch(msg); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) bindOption(name string, opt protocol.OptionEntry) error {
	switch {
	case opt.Script != "":
		return c.loadScript(name, opt.Script)
	case opt.Capability != "":
		return c.options.Set(name, c.capability(opt.Capability))
	default:
		v, err := c.importValue(opt.Value)
		if err != nil {
			return &ScriptError{Phase: "copy option " + name, Err: err}
		}
		return c.options.Set(name, v)
	}
}

// loadScript runs an option script against the options object.
func (c *Context) loadScript(name, ref string) error {
	phase := "load option " + name
	if c.cfg.Scripts == nil {
		return &ScriptError{Phase: phase, Err: ErrNoScripts}
	}

	src, err := c.cfg.Scripts.Load(ref)
	if err != nil {
		return &ScriptError{Phase: phase, Err: err}
	}

	v, err := c.vm.RunScript(ref, src)
	if err != nil {
		return c.bootError(phase, err)
	}

	load, ok := goja.AssertFunction(v)
	if !ok {
		return &ScriptError{Phase: phase, Err: fmt.Errorf("script %s is not an option loader", ref)}
	}
	if _, err := load(goja.Undefined(), c.options); err != nil {
		return c.bootError(phase, err)
	}
	return nil
}

// dispatch decodes the payload and invokes the handler for its type.
func (c *Context) dispatch(env *protocol.Envelope) error {
	c.debug = env.Debug
	if c.debug {
		c.log.Info("Received message", zap.String("type", env.Type), zap.String("payload", env.PayloadText()))
	}

	payload, err := c.payload(env)
	if err != nil {
		c.metrics.DecodeError(monitoring.SideContext)
		return err
	}

	handler, ok := c.handlers.Lookup(env.Type)
	if !ok {
		c.metrics.MessageDropped(monitoring.SideContext)
		c.log.Debug("No handler for message", zap.String("type", env.Type))
		return nil
	}

	_, err = handler(goja.Undefined(), payload)
	return c.settle(env.Type, err)
}

// payload decodes the payload text. A missing or null payload becomes an
// empty object.
func (c *Context) payload(env *protocol.Envelope) (goja.Value, error) {
	if env.Payload == nil {
		return c.vm.NewObject(), nil
	}

	v, err := c.decode(*env.Payload)
	if err != nil {
		if cause, ok := interrupted(err); ok {
			return nil, cause
		}
		return nil, &protocol.DecodeError{Kind: env.Type, Err: errors.New(message(err))}
	}
	if goja.IsNull(v) {
		return c.vm.NewObject(), nil
	}
	return v, nil
}

// handleReturn settles the promise of a capability call.
func (c *Context) handleReturn(env *protocol.Envelope) error {
	var res protocol.CallResult
	if err := env.Bind(&res); err != nil {
		c.metrics.DecodeError(monitoring.SideContext)
		return err
	}

	call, ok := c.calls[res.ID]
	if !ok {
		c.log.Warn("Return for unknown call", zap.String("call_id", res.ID))
		return nil
	}
	delete(c.calls, res.ID)

	if res.Error != "" {
		call.settle(nil, c.vm.NewGoError(fmt.Errorf("capability %s: %s", call.name, res.Error)))
	} else {
		v, err := c.importValue(res.Result)
		if err != nil {
			call.settle(nil, c.vm.NewGoError(err))
		} else {
			call.settle(v, nil)
		}
	}

	// Promise reactions run when the runtime leaves a script.
	_, err := c.vm.RunProgram(flushJobs)
	return c.settle(protocol.KindReturn, err)
}

var flushJobs = goja.MustCompile("flush", "", false)
