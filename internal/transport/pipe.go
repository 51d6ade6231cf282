package transport

import "sync"

type pipeEnd struct {
	inbox *Queue[[]byte]
	out   chan []byte
	peer  *pipeEnd
	done  chan struct{}
	once  sync.Once
}

// Pipe returns two connected in-process ports.
func Pipe() (Port, Port) {
	a := newPipeEnd()
	b := newPipeEnd()
	a.peer, b.peer = b, a

	go a.pump()
	go b.pump()
	return a, b
}

func newPipeEnd() *pipeEnd {
	return &pipeEnd{
		inbox: NewQueue[[]byte](),
		out:   make(chan []byte),
		done:  make(chan struct{}),
	}
}

func (p *pipeEnd) Post(data []byte) error {
	select {
	case <-p.done:
		return ErrClosed
	default:
	}

	frame := append([]byte(nil), data...)
	if !p.peer.inbox.Push(frame) {
		return ErrClosed
	}
	return nil
}

func (p *pipeEnd) Receive() <-chan []byte {
	return p.out
}

// Close stops local delivery immediately. The peer still receives frames
// that were posted before the close.
func (p *pipeEnd) Close() error {
	p.once.Do(func() {
		close(p.done)
		p.inbox.Close()
		p.peer.inbox.Close()
	})
	return nil
}

func (p *pipeEnd) pump() {
	defer close(p.out)

	for {
		select {
		case <-p.inbox.Signal():
		case <-p.done:
			return
		}

		for _, frame := range p.inbox.Drain() {
			select {
			case p.out <- frame:
			case <-p.done:
				return
			}
		}

		if p.inbox.Closed() && p.inbox.Len() == 0 {
			return
		}
	}
}
