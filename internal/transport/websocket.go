package transport

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait     = 10 * time.Second
	maxCloseText  = 123
	closeDeadline = time.Second
)

// WebSocketPort adapts a websocket connection to a Port. Every frame is sent
// as one text message.
type WebSocketPort struct {
	conn *websocket.Conn
	out  chan []byte
	done chan struct{}

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}

	errMu sync.Mutex
	err   error
}

// NewWebSocketPort starts reading from conn.
func NewWebSocketPort(conn *websocket.Conn) *WebSocketPort {
	p := &WebSocketPort{
		conn:   conn,
		out:    make(chan []byte),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go p.read()
	return p
}

func (p *WebSocketPort) Post(data []byte) error {
	select {
	case <-p.closed:
		return ErrClosed
	default:
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *WebSocketPort) Receive() <-chan []byte {
	return p.out
}

// Close closes the connection without a close frame.
func (p *WebSocketPort) Close() error {
	var err error
	p.once.Do(func() {
		close(p.closed)
		err = p.conn.Close()
	})
	return err
}

// CloseWith sends a close frame carrying code and reason, then closes.
func (p *WebSocketPort) CloseWith(code int, reason string) error {
	if len(reason) > maxCloseText {
		reason = reason[:maxCloseText]
	}

	p.writeMu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	writeErr := p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeDeadline))
	p.writeMu.Unlock()

	if err := p.Close(); err != nil && writeErr == nil {
		return err
	}
	if errors.Is(writeErr, websocket.ErrCloseSent) {
		return nil
	}
	return writeErr
}

// Done is closed when the read side has stopped.
func (p *WebSocketPort) Done() <-chan struct{} {
	return p.done
}

// Err returns the error that stopped the read side, nil while running. A
// close frame from the peer is returned as *websocket.CloseError.
func (p *WebSocketPort) Err() error {
	p.errMu.Lock()
	defer p.errMu.Unlock()
	return p.err
}

func (p *WebSocketPort) read() {
	defer close(p.done)
	defer close(p.out)

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			p.errMu.Lock()
			p.err = err
			p.errMu.Unlock()
			return
		}
		if kind != websocket.TextMessage && kind != websocket.BinaryMessage {
			continue
		}

		select {
		case p.out <- data:
		case <-p.closed:
			return
		}
	}
}
