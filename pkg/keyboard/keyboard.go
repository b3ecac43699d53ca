package keyboard

import (
	"bufio"
	"io"
	"os"
	"sync"

	"github.com/tauraamui/snapwatch/pkg/broadcast"
	"github.com/tauraamui/snapwatch/pkg/log"
	"github.com/tauraamui/snapwatch/pkg/video/videobackend"
	"golang.org/x/term"
)

const (
	keyBuffer = 16
	ctrlC     = 0x03
)

// Source reads single key presses from a terminal (or any reader)
// and broadcasts them to every listening window.
type Source struct {
	in        io.Reader
	b         *broadcast.Broadcaster
	mu        sync.Mutex
	restore   func() error
	startOnce sync.Once
}

func NewSource(in io.Reader) *Source {
	return &Source{in: in, b: broadcast.New(keyBuffer)}
}

// Start switches a terminal input into raw mode so keys arrive without
// enter, then begins reading in the background.
func (s *Source) Start() error {
	var err error
	s.startOnce.Do(func() {
		if f, ok := s.in.(*os.File); ok && isTerminal(int(f.Fd())) {
			fd := int(f.Fd())
			var state *term.State
			state, err = term.MakeRaw(fd)
			if err != nil {
				return
			}
			s.mu.Lock()
			s.restore = func() error { return term.Restore(fd, state) }
			s.mu.Unlock()
		}
		go s.read()
	})
	return err
}

var isTerminal = func(fd int) bool {
	return term.IsTerminal(fd)
}

func (s *Source) read() {
	defer s.b.Close()
	r := bufio.NewReader(s.in)
	for {
		key, _, err := r.ReadRune()
		if err != nil {
			if err != io.EOF {
				log.Error("Unable to read key press: %v", err)
			}
			return
		}
		// raw mode swallows the terminal's own interrupt
		if key == ctrlC {
			interrupt()
			continue
		}
		s.b.Send(key)
	}
}

var interrupt = func() {
	p, err := os.FindProcess(os.Getpid())
	if err != nil {
		return
	}
	p.Signal(os.Interrupt)
}

func (s *Source) Listen() videobackend.KeyListener {
	l := &listener{l: s.b.Listen(), keys: make(chan rune, keyBuffer), done: make(chan struct{})}
	go l.pump()
	return l
}

// Close restores the terminal state, it does not stop a blocked read.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restore == nil {
		return nil
	}
	err := s.restore()
	s.restore = nil
	return err
}

type listener struct {
	l         *broadcast.Listener
	keys      chan rune
	done      chan struct{}
	closeOnce sync.Once
}

func (l *listener) pump() {
	defer close(l.keys)
	for {
		select {
		case v, ok := <-l.l.Ch:
			if !ok {
				return
			}
			key, ok := v.(rune)
			if !ok {
				continue
			}
			select {
			case l.keys <- key:
			default:
			}
		case <-l.done:
			return
		}
	}
}

func (l *listener) Keys() <-chan rune {
	return l.keys
}

func (l *listener) Close() {
	l.closeOnce.Do(func() {
		close(l.done)
		l.l.Discard()
	})
}
