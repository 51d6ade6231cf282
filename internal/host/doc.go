// Package host runs isolated contexts on behalf of remote creators.
//
// A creator dials the spawn endpoint, sends a transport.SpawnRequest as the
// first websocket message and then exchanges raw protocol frames with the
// context. When the context stops the host closes the connection with a
// close frame: normal closure when the creator hung up, an error code and
// the error text otherwise.
//
// Routes:
//   - GET /health: host status and capacity
//   - GET /workers: running contexts
//   - DELETE /workers/:id: terminate a context
//   - GET /spawn: websocket spawn endpoint
package host
