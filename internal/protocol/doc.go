// Package protocol defines the message protocol spoken between a creator and
// an isolated worker context.
//
// Every frame crossing the boundary is a JSON envelope:
//
//	{"type": "ping", "payload": "{\"from\":\"mainthread\"}", "debug": false}
//
// The payload is itself a stringified structured value, decoded on arrival.
// The init frame additionally carries the option set:
//
//	{"type": "init", "options": {
//	    "limit":  {"value": 10},
//	    "square": {"script": "blob:01J..."},
//	    "fetch":  {"capability": "fetch"}
//	}}
//
// Reserved kinds:
//   - init: first frame delivered to a context, exactly once
//   - __ready: context finished init and runs application handlers
//   - __call / __return: capability request and its result
//   - __error: an application handler inside the context threw
//
// Messages of any other kind are routed through a HandlerTable. A kind with
// no registered handler is dropped silently on the receiving side.
package protocol
