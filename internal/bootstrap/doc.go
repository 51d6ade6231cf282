/*
Package bootstrap runs the context side of a worker.

A Context owns one goja runtime and one goroutine. Everything the context
sees arrives as frames on a transport.Port and is handled on an event loop:
inbound frames, timer callbacks and deferred import bindings all run there,
one at a time.

# Lifecycle

The worker blob is evaluated when Run starts. It rebuilds the bundled imports
and checks that the worker main is a function; an import ordering error stops
the context here, before any application code ran.

The context then waits for the init frame. Function options are loaded from
the script store into the options object, capability options become
promise-returning proxies and plain values are copied. The worker main runs,
the context becomes ready, announces __ready and replays every message that
arrived before init, in arrival order.

When ready, each frame's payload is decoded and handed to the handler
registered for its type. Frames without a handler are dropped. A payload
that does not decode stops the context with a *protocol.DecodeError. A
handler that throws is logged and reported to the creator as __error.

# Environment

The worker main is called with a single env object (also bound as this)
holding options, imports, registerMsgHandler, dropMsgHandler, send and log.
The blob binds them as locals, so they are never globals of the runtime.
console and setTimeout/clearTimeout are installed as host globals.
*/
package bootstrap
