package transport

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"micromouse/internal/msgs"
	"micromouse/internal/ring"
)

func encode(t *testing.T, m msgs.Message) []byte {
	t.Helper()
	b, err := msgs.Encode(m)
	require.NoError(t, err)
	return b
}

// TestLink_Receive_Complete tests decoding a whole message
func TestLink_Receive_Complete(t *testing.T) {
	// Arrange
	l := New(Config{}, nil)
	want := msgs.Pair{ID: msgs.AddLinear, Velocity: 500, Distance: 180}
	l.Feed(encode(t, want))

	// Act
	got, err := l.Receive(10)

	// Assert
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.Equal(t, 0, l.RxLen())
	assert.Equal(t, uint64(1), l.Status().Received)
}

// TestLink_Receive_ByteAtATime tests that partial input is kept until complete
func TestLink_Receive_ByteAtATime(t *testing.T) {
	l := New(Config{}, nil)
	want := msgs.Scalar{ID: msgs.LinearP, Value: 1.5}
	b := encode(t, want)

	for i, c := range b[:len(b)-1] {
		l.Feed([]byte{c})
		_, err := l.Receive(uint32(10 * (i + 1)))
		assert.True(t, errors.Is(err, msgs.ErrNeedMoreBytes))
		assert.Equal(t, i+1, l.RxLen())
	}

	l.Feed(b[len(b)-1:])
	got, err := l.Receive(100)

	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// TestLink_Receive_UnknownTagFlushed tests that garbage is flushed after the timeout
func TestLink_Receive_UnknownTagFlushed(t *testing.T) {
	// Arrange
	l := New(Config{FlushTimeout: 1000}, nil)
	_, err := l.Receive(0)
	require.True(t, errors.Is(err, msgs.ErrNeedMoreBytes))
	l.Feed([]byte{0xEE, 0x01, 0x02})

	// Act
	_, err = l.Receive(500)

	// Assert
	var unknown *msgs.UnknownTagError
	assert.True(t, errors.As(err, &unknown))
	assert.True(t, l.Status().Fault)
	assert.Equal(t, 3, l.RxLen())

	// Act - past the timeout
	_, err = l.Receive(1000)

	// Assert
	assert.True(t, errors.Is(err, ErrFlushed))
	assert.Equal(t, 0, l.RxLen())
	assert.Equal(t, uint64(1), l.Status().Flushes)
}

// TestLink_Receive_StalePartialFlushed tests that a truncated message does not
// block the link forever
func TestLink_Receive_StalePartialFlushed(t *testing.T) {
	l := New(Config{FlushTimeout: 1000}, nil)
	_, _ = l.Receive(0)
	l.Feed(encode(t, msgs.Scalar{ID: msgs.Time, Value: 1})[:3])

	_, err := l.Receive(999)
	assert.True(t, errors.Is(err, msgs.ErrNeedMoreBytes))

	_, err = l.Receive(1000)
	assert.True(t, errors.Is(err, ErrFlushed))

	want := msgs.Distance{ID: msgs.FrontDistance, MM: 42}
	l.Feed(encode(t, want))
	got, err := l.Receive(1010)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, l.Status().Fault)
}

// TestLink_Receive_EmptyNeverFlushes tests that an idle link reports no flush
func TestLink_Receive_EmptyNeverFlushes(t *testing.T) {
	l := New(Config{FlushTimeout: 100}, nil)

	for now := uint32(0); now < 1000; now += 10 {
		_, err := l.Receive(now)
		assert.True(t, errors.Is(err, msgs.ErrNeedMoreBytes))
	}

	assert.Equal(t, uint64(0), l.Status().Flushes)
}

// TestLink_Send_AllOrNothing tests that a message is never half queued
func TestLink_Send_AllOrNothing(t *testing.T) {
	// Arrange
	l := New(Config{TxCapacity: 8}, nil)
	require.NoError(t, l.Send(msgs.Scalar{ID: msgs.Time, Value: 1}))

	// Act
	err := l.Send(msgs.Scalar{ID: msgs.Time, Value: 2})

	// Assert
	assert.True(t, errors.Is(err, ring.ErrFull))
	assert.Equal(t, 5, l.TxLen())
	assert.NoError(t, l.Send(msgs.Distance{ID: msgs.LeftDistance, MM: 1}))
	assert.Equal(t, 7, l.TxLen())
}

// TestLink_Send_InvalidMessage tests that encode errors are returned
func TestLink_Send_InvalidMessage(t *testing.T) {
	l := New(Config{}, nil)

	err := l.Send(msgs.Scalar{ID: msgs.LeftDistance, Value: 1})

	assert.Error(t, err)
	assert.Equal(t, 0, l.TxLen())
}

// TestLink_Feed_Overflow tests dropping bytes past capacity
func TestLink_Feed_Overflow(t *testing.T) {
	l := New(Config{RxCapacity: 4}, nil)

	kept := l.Feed([]byte{1, 2, 3, 4, 5, 6})

	assert.Equal(t, 4, kept)
	assert.Equal(t, 4, l.RxLen())
	assert.Equal(t, uint64(2), l.Status().Dropped)
}

// TestLink_Drain tests emptying the transmit buffer in order
func TestLink_Drain(t *testing.T) {
	l := New(Config{}, nil)
	first := msgs.Scalar{ID: msgs.LeftPos, Value: 3}
	second := msgs.Distance{ID: msgs.RightDistance, MM: 9}
	require.NoError(t, l.Send(first))
	require.NoError(t, l.Send(second))

	buf := make([]byte, 64)
	n := l.Drain(buf)

	assert.Equal(t, append(encode(t, first), encode(t, second)...), buf[:n])
	assert.Equal(t, 0, l.TxLen())
}

type chanPort struct {
	in  chan []byte
	mu  sync.Mutex
	out bytes.Buffer
}

func (p *chanPort) Read(b []byte) (int, error) {
	data, ok := <-p.in
	if !ok {
		return 0, io.EOF
	}
	return copy(b, data), nil
}

func (p *chanPort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out.Write(b)
}

func (p *chanPort) written() []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]byte(nil), p.out.Bytes()...)
}

// TestLink_Pump tests moving bytes between the port and the buffers
func TestLink_Pump(t *testing.T) {
	// Arrange
	l := New(Config{}, nil)
	port := &chanPort{in: make(chan []byte)}
	done := make(chan error, 1)
	go func() { done <- l.Pump(context.Background(), port) }()

	outbound := msgs.Scalar{ID: msgs.Battery, Value: 2800}
	inbound := msgs.Pair{ID: msgs.AddAngular, Velocity: 100, Distance: 90}

	// Act
	require.NoError(t, l.Send(outbound))
	port.in <- encode(t, inbound)

	// Assert
	assert.Eventually(t, func() bool {
		return bytes.Equal(port.written(), encode(t, outbound))
	}, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return l.RxLen() == 9 }, time.Second, 5*time.Millisecond)

	got, err := l.Receive(10)
	require.NoError(t, err)
	assert.Equal(t, inbound, got)

	// Act - port closes
	close(port.in)

	// Assert
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, io.EOF))
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}

// TestLink_Pump_Cancel tests stopping on context cancellation
func TestLink_Pump_Cancel(t *testing.T) {
	l := New(Config{}, nil)
	port := &chanPort{in: make(chan []byte)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Pump(ctx, port) }()

	cancel()
	close(port.in)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("pump did not stop")
	}
}
