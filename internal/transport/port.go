package transport

import "errors"

var ErrClosed = errors.New("port is closed")

// Port is one end of an ordered, bidirectional frame channel.
type Port interface {
	// Post delivers data to the other end without waiting for it to be read.
	Post(data []byte) error
	// Receive yields frames from the other end. It is closed once the
	// channel is shut down and every frame already sent has been delivered.
	Receive() <-chan []byte
	// Close shuts down both directions.
	Close() error
}

// SpawnRequest is the first frame a remote creator sends to a host.
type SpawnRequest struct {
	ID      string            `json:"id"`
	Source  string            `json:"source"`
	Scripts map[string]string `json:"scripts,omitempty"`
}
