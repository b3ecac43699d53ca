package keyboard

import (
	"io"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/matryer/is"
)

func collectKeys(t *testing.T, keys <-chan rune) []rune {
	t.Helper()
	got := []rune{}
	timeout := time.After(3 * time.Second)
	for {
		select {
		case k, ok := <-keys:
			if !ok {
				return got
			}
			got = append(got, k)
		case <-timeout:
			t.Fatal("test timeout 3s limit exceeded")
			return got
		}
	}
}

func TestSourceBroadcastsKeysToEveryListener(t *testing.T) {
	is := is.New(t)
	src := NewSource(strings.NewReader("xq"))
	live, detection := src.Listen(), src.Listen()
	defer live.Close()
	defer detection.Close()

	is.NoErr(src.Start())
	is.Equal(collectKeys(t, live.Keys()), []rune{'x', 'q'})
	is.Equal(collectKeys(t, detection.Keys()), []rune{'x', 'q'})
	is.NoErr(src.Close())
}

func TestSourceRaisesInterruptOnCtrlC(t *testing.T) {
	is := is.New(t)
	var interrupted int32
	interruptRef := interrupt
	interrupt = func() { atomic.AddInt32(&interrupted, 1) }
	defer func() { interrupt = interruptRef }()

	src := NewSource(strings.NewReader("a\x03b"))
	l := src.Listen()
	defer l.Close()

	is.NoErr(src.Start())
	is.Equal(collectKeys(t, l.Keys()), []rune{'a', 'b'})
	is.Equal(atomic.LoadInt32(&interrupted), int32(1))
}

func TestClosedListenerChannelCloses(t *testing.T) {
	is := is.New(t)
	r, w := io.Pipe()
	defer w.Close()

	src := NewSource(r)
	is.NoErr(src.Start())
	l := src.Listen()
	l.Close()
	l.Close()

	is.Equal(len(collectKeys(t, l.Keys())), 0)
}
