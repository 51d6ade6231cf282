package bootstrap

import (
	"errors"
	"strings"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/GriffinCanCode/jsworker/internal/imports"
	"github.com/GriffinCanCode/jsworker/internal/protocol"
	"github.com/GriffinCanCode/jsworker/internal/shared/id"
)

// setupGlobals installs the host globals: JSON helpers, console and timers.
func (c *Context) setupGlobals() error {
	json := c.vm.Get("JSON").ToObject(c.vm)

	var ok bool
	if c.parse, ok = goja.AssertFunction(json.Get("parse")); !ok {
		return errors.New("runtime has no JSON.parse")
	}
	if c.stringify, ok = goja.AssertFunction(json.Get("stringify")); !ok {
		return errors.New("runtime has no JSON.stringify")
	}

	console := c.vm.NewObject()
	levels := map[string]zapcore.Level{
		"log":   zapcore.InfoLevel,
		"info":  zapcore.InfoLevel,
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
	}
	for name, level := range levels {
		if err := console.Set(name, c.makeLogFunc(level, "console")); err != nil {
			return err
		}
	}

	for name, fn := range map[string]any{
		"console":      console,
		"setTimeout":   c.setTimeout,
		"clearTimeout": c.clearTimeout,
	} {
		if err := c.vm.Set(name, fn); err != nil {
			return err
		}
	}
	return nil
}

// setupEnv builds the environment object handed to the worker main.
func (c *Context) setupEnv() error {
	c.options = c.vm.NewObject()
	c.shim = imports.NewShim(c.vm, c.schedule)
	c.env = c.vm.NewObject()

	for name, v := range map[string]any{
		"id":                 c.id,
		"options":            c.options,
		"imports":            c.shim.Exports(),
		"__imports":          c.shim.Object(),
		"registerMsgHandler": c.registerMsgHandler,
		"dropMsgHandler":     c.dropMsgHandler,
		"send":               c.send,
		"log":                c.makeLogFunc(zapcore.InfoLevel, "worker"),
	} {
		if err := c.env.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) registerMsgHandler(call goja.FunctionCall) goja.Value {
	kind := call.Argument(0).String()
	if kind == "" || protocol.IsReserved(kind) {
		panic(c.vm.NewTypeError("cannot register a handler for message type %q", kind))
	}

	fn, ok := goja.AssertFunction(call.Argument(1))
	if !ok {
		panic(c.vm.NewTypeError("handler for %q is not a function", kind))
	}

	if !c.handlers.Register(kind, fn) {
		c.log.Debug("Handler already registered", zap.String("type", kind))
	}
	return goja.Undefined()
}

func (c *Context) dropMsgHandler(call goja.FunctionCall) goja.Value {
	c.handlers.Drop(call.Argument(0).String())
	return goja.Undefined()
}

// send posts {type, payload} to the creator. send(type, payload) is
// accepted as well.
func (c *Context) send(call goja.FunctionCall) goja.Value {
	var kind string
	var payload goja.Value

	if first := call.Argument(0); isString(first) {
		kind, payload = first.String(), call.Argument(1)
	} else {
		msg := first.ToObject(c.vm)
		if v := msg.Get("type"); v != nil && !goja.IsUndefined(v) {
			kind = v.String()
		} else if v := msg.Get("kind"); v != nil && !goja.IsUndefined(v) {
			kind = v.String()
		}
		payload = msg.Get("payload")
	}

	if kind == "" {
		panic(c.vm.NewTypeError("message type is required"))
	}
	if protocol.IsReserved(kind) {
		panic(c.vm.NewTypeError("message type %q is reserved", kind))
	}

	env := &protocol.Envelope{Type: kind, Debug: c.debug}
	if payload != nil && !goja.IsUndefined(payload) {
		text, err := c.encode(payload)
		if err != nil {
			panic(c.vm.NewTypeError("payload of %q is not serializable: %s", kind, message(err)))
		}
		env.Payload = &text
	}

	raw, err := protocol.Marshal(env)
	if err != nil {
		panic(c.vm.NewGoError(err))
	}

	if c.debug {
		c.log.Info("Sending message", zap.String("type", kind))
	}
	c.post(raw)
	return goja.Undefined()
}

// encode serializes v with the runtime's JSON.stringify.
func (c *Context) encode(v goja.Value) (string, error) {
	out, err := c.stringify(goja.Undefined(), v)
	if err != nil {
		return "", err
	}
	if goja.IsUndefined(out) {
		return "", errors.New("value has no JSON representation")
	}
	return out.String(), nil
}

// decode parses JSON text with the runtime's JSON.parse.
func (c *Context) decode(text string) (goja.Value, error) {
	return c.parse(goja.Undefined(), c.vm.ToValue(text))
}

// importValue copies a Go value into the runtime through JSON.
func (c *Context) importValue(v any) (goja.Value, error) {
	text, err := protocol.Stringify(v)
	if err != nil {
		return nil, err
	}
	return c.decode(text)
}

func (c *Context) makeLogFunc(level zapcore.Level, source string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, 0, len(call.Arguments))
		for _, arg := range call.Arguments {
			parts = append(parts, c.format(arg))
		}

		if ce := c.log.Check(level, strings.Join(parts, " ")); ce != nil {
			ce.Write(zap.String("source", source))
		}
		return goja.Undefined()
	}
}

func (c *Context) format(v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFunc := goja.AssertFunction(obj); !isFunc {
			if text, err := c.encode(obj); err == nil {
				return text
			}
		}
	}
	return v.String()
}

func (c *Context) setTimeout(call goja.FunctionCall) goja.Value {
	fn, ok := goja.AssertFunction(call.Argument(0))
	if !ok {
		panic(c.vm.NewTypeError("setTimeout callback is not a function"))
	}

	delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
	if delay < 0 {
		delay = 0
	}

	var args []goja.Value
	if len(call.Arguments) > 2 {
		args = append(args, call.Arguments[2:]...)
	}

	c.nextTimer++
	tid := c.nextTimer
	tm := &timer{fn: fn, args: args}
	c.timers[tid] = tm
	tm.t = time.AfterFunc(delay, func() {
		c.tasks.Push(func() error { return c.fireTimer(tid) })
	})
	return c.vm.ToValue(tid)
}

func (c *Context) clearTimeout(call goja.FunctionCall) goja.Value {
	tid := call.Argument(0).ToInteger()
	if tm, ok := c.timers[tid]; ok {
		tm.t.Stop()
		delete(c.timers, tid)
	}
	return goja.Undefined()
}

func (c *Context) fireTimer(tid int64) error {
	tm, ok := c.timers[tid]
	if !ok {
		return nil
	}
	delete(c.timers, tid)

	_, err := tm.fn(goja.Undefined(), tm.args...)
	return err
}

// capability returns a proxy that forwards calls to the creator's named
// capability and resolves with its result.
func (c *Context) capability(name string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			args[i] = arg.Export()
		}

		promise, resolve, reject := c.vm.NewPromise()
		callID := id.NewCallID().String()

		raw, err := protocol.Encode(protocol.KindCall, protocol.CallRequest{ID: callID, Name: name, Args: args}, c.debug)
		if err != nil {
			reject(c.vm.NewTypeError("arguments of %q are not serializable: %v", name, err))
			return c.vm.ToValue(promise)
		}

		c.calls[callID] = pendingCall{
			name: name,
			settle: func(result, reason goja.Value) {
				if reason != nil {
					reject(reason)
					return
				}
				resolve(result)
			},
		}
		c.post(raw)
		return c.vm.ToValue(promise)
	}
}

func isString(v goja.Value) bool {
	if v == nil {
		return false
	}
	_, ok := v.Export().(string)
	return ok
}
