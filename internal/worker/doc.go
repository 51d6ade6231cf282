/*
Package worker is the creator side of the worker protocol.

Create turns a JavaScript main function, an option set and an import map
into a running isolated context and returns a *Worker that controls it:

	w, err := worker.Create(ctx, `function () {
		registerMsgHandler("ping", function (p) {
			send({type: "pong", payload: {from: "worker", original: p}});
		});
	}`, worker.Options{
		"square": worker.JS("x => x * x"),
		"fetch":  worker.Func(fetchCapability),
		"limit":  10,
	}, nil)

	w.RegisterMsgHandler("pong", func(p any) { ... }).
		Send("ping", map[string]any{"from": "mainthread"})

Options come in three forms. JS values are function source: calls between
JS options are rewritten to go through the shared options object and each
one is shipped as a separate script. Func values stay in the creator; the
context gets a proxy that calls them over the channel and returns a Promise.
Anything else is copied as JSON.

Contexts run in process by default (LocalSpawner). A RemoteSpawner runs them
on a worker host over a websocket instead.
*/
package worker
