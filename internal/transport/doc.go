// Package transport carries raw protocol frames between a creator and a
// context.
//
// A Port is one end of a single ordered channel: frames posted on one end
// arrive at the other end in the order they were posted. Post never waits
// for the receiver. Two implementations exist:
//   - Pipe: process-local, backed by unbounded queues
//   - WebSocketPort: a gorilla/websocket connection to a remote host
package transport
