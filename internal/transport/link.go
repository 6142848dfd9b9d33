// Package transport buffers the serial byte stream in both directions and
// frames it into messages for the control loop.
package transport

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"micromouse/internal/msgs"
	"micromouse/internal/ring"
)

// DefaultFlushTimeout is how long, in ms, the receive buffer may go without
// a complete message before it is discarded
const DefaultFlushTimeout uint32 = 1000

// ErrFlushed is returned by Receive when undecodable bytes were discarded
var ErrFlushed = errors.New("receive buffer flushed")

// Config sizes a Link
type Config struct {
	RxCapacity   int
	TxCapacity   int
	FlushTimeout uint32
}

// Status is a snapshot of the link counters
type Status struct {
	RxLen    int
	TxLen    int
	Dropped  uint64
	Flushes  uint64
	Received uint64
	Sent     uint64
	Fault    bool
}

// Link owns the receive and transmit buffers. The control loop calls Receive
// and Send; the serial goroutines call Feed and Drain.
type Link struct {
	mu     sync.Mutex
	rx     *ring.Buffer[byte]
	tx     *ring.Buffer[byte]
	peek   []byte
	logger *zap.Logger

	flushTimeout uint32
	lastMessage  uint32
	fault        bool

	dropped  uint64
	flushes  uint64
	received uint64
	sent     uint64

	ready chan struct{}
}

// New creates a link. Zero capacities and timeout take defaults.
func New(config Config, logger *zap.Logger) *Link {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.RxCapacity <= 0 {
		config.RxCapacity = 256
	}
	if config.TxCapacity <= 0 {
		config.TxCapacity = 256
	}
	if config.FlushTimeout == 0 {
		config.FlushTimeout = DefaultFlushTimeout
	}
	return &Link{
		rx:           ring.New[byte](config.RxCapacity),
		tx:           ring.New[byte](config.TxCapacity),
		peek:         make([]byte, config.RxCapacity),
		logger:       logger,
		flushTimeout: config.FlushTimeout,
		ready:        make(chan struct{}, 1),
	}
}

// Receive decodes the next message from the receive buffer. Bytes are only
// consumed by a successful decode. If nothing has decoded for the flush
// timeout the buffer is cleared and, when it held bytes, ErrFlushed is
// returned. Otherwise the decode error is returned as is: usually
// msgs.ErrNeedMoreBytes.
func (l *Link) Receive(now uint32) (msgs.Message, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.rx.PeekInto(l.peek)
	m, used, err := msgs.Decode(l.peek[:n])
	if err == nil {
		l.rx.Discard(used)
		l.lastMessage = now
		l.fault = false
		l.received++
		return m, nil
	}

	var unknown *msgs.UnknownTagError
	if errors.As(err, &unknown) {
		l.fault = true
	}

	if now-l.lastMessage < l.flushTimeout {
		return nil, err
	}

	l.lastMessage = now
	if n == 0 {
		return nil, err
	}

	l.rx.Clear()
	l.flushes++
	l.logger.Warn("receive buffer flushed", zap.Int("bytes", n), zap.Error(err))
	return nil, errors.Wrapf(ErrFlushed, "%d bytes: %v", n, err)
}

// Send queues the encoded message for transmission. Nothing is queued when
// the whole message does not fit.
func (l *Link) Send(m msgs.Message) error {
	b, err := msgs.Encode(m)
	if err != nil {
		return err
	}

	l.mu.Lock()
	err = l.tx.PushAll(b...)
	if err == nil {
		l.sent++
	}
	l.mu.Unlock()

	if err != nil {
		return errors.Wrapf(err, "send %s", m.Tag())
	}

	select {
	case l.ready <- struct{}{}:
	default:
	}
	return nil
}

// Feed appends received bytes, dropping whatever does not fit. It returns
// the number of bytes kept.
func (l *Link) Feed(p []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := min(len(p), l.rx.Free())
	_ = l.rx.PushAll(p[:kept]...)
	if dropped := len(p) - kept; dropped > 0 {
		l.dropped += uint64(dropped)
	}
	return kept
}

// Drain moves pending transmit bytes into p and returns how many it moved
func (l *Link) Drain(p []byte) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	n := l.tx.PeekInto(p)
	l.tx.Discard(n)
	return n
}

func (l *Link) RxLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rx.Len()
}

func (l *Link) TxLen() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tx.Len()
}

// Status returns the current counters
func (l *Link) Status() Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Status{
		RxLen:    l.rx.Len(),
		TxLen:    l.tx.Len(),
		Dropped:  l.dropped,
		Flushes:  l.flushes,
		Received: l.received,
		Sent:     l.sent,
		Fault:    l.fault,
	}
}

// Pump copies bytes between port and the link until ctx is cancelled or the
// port fails. Closing the port unblocks a pending read.
func (l *Link) Pump(ctx context.Context, port io.ReadWriter) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return l.readLoop(ctx, port) })
	g.Go(func() error { return l.writeLoop(ctx, port) })
	return g.Wait()
}

func (l *Link) readLoop(ctx context.Context, r io.Reader) error {
	buf := make([]byte, 64)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if kept := l.Feed(buf[:n]); kept < n {
				l.logger.Debug("receive buffer overrun", zap.Int("dropped", n-kept))
			}
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return errors.Wrap(err, "serial read")
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (l *Link) writeLoop(ctx context.Context, w io.Writer) error {
	buf := make([]byte, 64)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-l.ready:
		}

		for {
			n := l.Drain(buf)
			if n == 0 {
				break
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return errors.Wrap(err, "serial write")
			}
		}
	}
}
