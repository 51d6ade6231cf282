package imports

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dop251/goja"
)

var ErrUndeclaredImport = errors.New("import was not declared")

// Scheduler runs task on a later turn of the context's event loop.
type Scheduler func(task func() error)

// Shim is the context side of the import prelude. It is bound into the VM
// as __imports and owns the imports object seen by the worker.
type Shim struct {
	vm       *goja.Runtime
	schedule Scheduler

	mu       sync.Mutex
	modules  map[string]string    // logical name -> module id
	names    map[string]string    // module id -> logical name
	provided map[string]goja.Value // module id -> exports
	exports  *goja.Object
	err      error
}

// NewShim creates a shim for vm. Deferred bindings are handed to schedule.
func NewShim(vm *goja.Runtime, schedule Scheduler) *Shim {
	return &Shim{
		vm:       vm,
		schedule: schedule,
		modules:  make(map[string]string),
		names:    make(map[string]string),
		provided: make(map[string]goja.Value),
		exports:  vm.NewObject(),
	}
}

// Exports is the imports object keyed by logical name.
func (s *Shim) Exports() *goja.Object {
	return s.exports
}

// Err returns the first resolution failure.
func (s *Shim) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Object builds the __imports binding.
func (s *Shim) Object() *goja.Object {
	obj := s.vm.NewObject()
	_ = obj.Set("declare", s.declare)
	_ = obj.Set("provide", s.provide)
	_ = obj.Set("resolver", s.resolver)
	return obj
}

func (s *Shim) declare(name, module string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.modules[name] = module
	if _, taken := s.names[module]; !taken {
		s.names[module] = name
	}
}

func (s *Shim) provide(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	exports := call.Argument(1)

	s.mu.Lock()
	module, ok := s.modules[name]
	if ok {
		s.provided[module] = exports
	}
	s.mu.Unlock()

	if !ok {
		panic(s.vm.NewGoError(s.fail(fmt.Errorf("%w: %q", ErrUndeclaredImport, name))))
	}
	if err := s.exports.Set(name, exports); err != nil {
		panic(s.vm.NewGoError(err))
	}
	return goja.Undefined()
}

// resolver returns the require function handed to the factory of the
// import called requester.
func (s *Shim) resolver(requester string) goja.Value {
	require := s.vm.ToValue(func(call goja.FunctionCall) goja.Value {
		return s.require(requester, call.Argument(0).String())
	}).ToObject(s.vm)

	_ = require.Set("d", s.define)
	_ = require.Set("r", s.markModule)
	return require
}

func (s *Shim) require(requester, module string) goja.Value {
	s.mu.Lock()
	exports, ok := s.provided[module]
	name := s.names[module]
	s.mu.Unlock()

	if ok {
		return exports
	}
	panic(s.vm.NewGoError(s.fail(&ImportError{Module: module, Name: name, Requester: requester})))
}

// define assigns target[member] = getter() on a later turn so partially
// initialized circular exports can settle first. The two argument form
// takes an object of getters.
func (s *Shim) define(call goja.FunctionCall) goja.Value {
	target := call.Argument(0).ToObject(s.vm)

	if len(call.Arguments) == 2 {
		getters := call.Argument(1).ToObject(s.vm)
		for _, member := range getters.Keys() {
			s.deferAssign(target, member, getters.Get(member))
		}
		return goja.Undefined()
	}

	s.deferAssign(target, call.Argument(1).String(), call.Argument(2))
	return goja.Undefined()
}

func (s *Shim) deferAssign(target *goja.Object, member string, getter goja.Value) {
	get, ok := goja.AssertFunction(getter)
	if !ok {
		panic(s.vm.NewTypeError("binding getter for %q is not a function", member))
	}

	s.schedule(func() error {
		v, err := get(goja.Undefined())
		if err != nil {
			return err
		}
		return target.Set(member, v)
	})
}

func (s *Shim) markModule(call goja.FunctionCall) goja.Value {
	target := call.Argument(0).ToObject(s.vm)
	_ = target.Set("__esModule", true)
	return goja.Undefined()
}

func (s *Shim) fail(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err == nil {
		s.err = err
	}
	return err
}
