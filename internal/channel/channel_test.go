package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuffered_FIFOOrder(t *testing.T) {
	ch := NewBuffered[string](4)

	assert.True(t, ch.Put("a"))
	assert.True(t, ch.Put("b"))
	assert.Equal(t, 2, ch.Len())

	ctx := context.Background()
	v, err := ch.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", v)

	v, err = ch.Take(ctx)
	require.NoError(t, err)
	assert.Equal(t, "b", v)
}

func TestBuffered_DropsNewestWhenFull(t *testing.T) {
	ch := NewBuffered[int](2)

	assert.True(t, ch.Put(1))
	assert.True(t, ch.Put(2))
	assert.False(t, ch.Put(3))

	v, err := ch.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestSingle_NewestWins(t *testing.T) {
	ch := NewSingle[int]()

	assert.True(t, ch.Put(1))
	assert.False(t, ch.Put(2), "second put displaces the first")
	assert.Equal(t, 1, ch.Len())

	v, err := ch.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 0, ch.Len())
}

func TestTake_BlocksUntilPut(t *testing.T) {
	tests := []struct {
		name   string
		policy Policy
	}{
		{"fifo", FIFO},
		{"latest", Latest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := New[string](tt.policy, 0)

			go func() {
				time.Sleep(10 * time.Millisecond)
				ch.Put("Done")
			}()

			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()

			v, err := ch.Take(ctx)
			require.NoError(t, err)
			assert.Equal(t, "Done", v)
		})
	}
}

func TestTake_ContextDeadline(t *testing.T) {
	ch := New[string](FIFO, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := ch.Take(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDrain(t *testing.T) {
	fifo := NewBuffered[int](8)
	for i := 0; i < 5; i++ {
		fifo.Put(i)
	}
	assert.Equal(t, 5, fifo.Drain())
	assert.Equal(t, 0, fifo.Len())

	single := NewSingle[int]()
	assert.Equal(t, 0, single.Drain())
	single.Put(7)
	assert.Equal(t, 1, single.Drain())
}

func TestClose(t *testing.T) {
	ch := New[int](FIFO, 2)
	ch.Put(1)
	ch.Close()
	ch.Close()

	assert.False(t, ch.Put(2), "put after close is discarded")

	v, err := ch.Take(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	_, err = ch.Take(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	single := New[int](Latest, 0)
	single.Close()
	assert.False(t, single.Put(1))
	_, err = single.Take(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "fifo", FIFO.String())
	assert.Equal(t, "latest", Latest.String())
	assert.Equal(t, "unknown", Policy(9).String())
}
