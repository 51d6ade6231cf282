package worker

import (
	"context"
	"fmt"
	"reflect"
	"sort"

	"github.com/GriffinCanCode/jsworker/internal/protocol"
	"github.com/GriffinCanCode/jsworker/internal/scripts"
	"github.com/GriffinCanCode/jsworker/internal/serializer"
)

// JS is JavaScript function source passed as an option.
type JS string

// Func is a capability served by the creator. Args are the JSON decoded
// call arguments; the result is sent back as JSON.
type Func func(ctx context.Context, args []any) (any, error)

// Options is the option set of a worker: JS, Func or JSON values by name.
type Options map[string]any

// prepared is an option set ready for the init frame.
type prepared struct {
	entries      map[string]protocol.OptionEntry
	capabilities map[string]Func
	refs         []string
}

// prepareOptions registers every JS option as a script in store, keeps Func
// options as capabilities and checks that plain values encode.
func prepareOptions(opts Options, store *scripts.Store) (*prepared, error) {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	p := &prepared{
		entries:      make(map[string]protocol.OptionEntry, len(opts)),
		capabilities: make(map[string]Func),
	}

	for _, name := range names {
		switch v := opts[name].(type) {
		case JS:
			script, err := serializer.OptionScript(name, string(v), names)
			if err != nil {
				return nil, &OptionError{Name: name, Err: err}
			}
			ref := store.Register(script)
			p.entries[name] = protocol.OptionEntry{Script: ref}
			p.refs = append(p.refs, ref)

		case Func:
			p.capabilities[name] = v
			p.entries[name] = protocol.OptionEntry{Capability: name}

		case func(context.Context, []any) (any, error):
			p.capabilities[name] = v
			p.entries[name] = protocol.OptionEntry{Capability: name}

		default:
			if v != nil && reflect.TypeOf(v).Kind() == reflect.Func {
				return nil, &OptionError{Name: name, Err: fmt.Errorf("%w: %T", ErrUnsupportedOption, v)}
			}
			if _, err := protocol.Stringify(v); err != nil {
				return nil, &OptionError{Name: name, Err: err}
			}
			p.entries[name] = protocol.OptionEntry{Value: v}
		}
	}
	return p, nil
}
