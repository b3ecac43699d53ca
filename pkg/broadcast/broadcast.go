package broadcast

import "sync"

// Broadcaster fans every sent value out to all current listeners.
// A listener whose buffer is full misses the value rather than
// holding up the sender.
type Broadcaster struct {
	mu        sync.Mutex
	buf       int
	listeners map[*Listener]struct{}
	closed    bool
}

type Listener struct {
	Ch chan interface{}
	b  *Broadcaster
}

func New(buf int) *Broadcaster {
	return &Broadcaster{buf: buf, listeners: map[*Listener]struct{}{}}
}

func (b *Broadcaster) Listen() *Listener {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := &Listener{Ch: make(chan interface{}, b.buf), b: b}
	if b.closed {
		close(l.Ch)
		return l
	}
	b.listeners[l] = struct{}{}
	return l
}

func (b *Broadcaster) Send(v interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for l := range b.listeners {
		select {
		case l.Ch <- v:
		default:
		}
	}
}

// Close closes every listener's channel, later listeners start closed.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for l := range b.listeners {
		close(l.Ch)
		delete(b.listeners, l)
	}
}

// Discard removes the listener and closes its channel.
func (l *Listener) Discard() {
	l.b.mu.Lock()
	defer l.b.mu.Unlock()
	if _, ok := l.b.listeners[l]; ok {
		delete(l.b.listeners, l)
		close(l.Ch)
	}
}
