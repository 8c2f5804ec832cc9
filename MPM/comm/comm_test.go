package comm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runRanks calls fn once per rank concurrently and collects the errors
func runRanks(t *testing.T, ranks []Communicator, fn func(ctx context.Context, c Communicator) error) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	var (
		wg   sync.WaitGroup
		errs = make([]error, len(ranks))
	)
	for r, c := range ranks {
		wg.Add(1)
		go func(r int, c Communicator) {
			defer wg.Done()
			errs[r] = fn(ctx, c)
		}(r, c)
	}
	wg.Wait()
	for r, err := range errs {
		assert.NoError(t, err, "rank %d", r)
	}
}

func TestMailBox(t *testing.T) {
	mb := NewMailBox[int]()
	ctx := context.Background()
	require.NoError(t, mb.PostMessage(1, 5, 10))
	require.NoError(t, mb.PostMessage(1, 5, 11))
	require.NoError(t, mb.PostMessage(2, 5, 20))
	assert.Equal(t, 3, mb.Pending())

	msg, err := mb.ReceiveMessage(ctx, 2, 5)
	require.NoError(t, err)
	assert.Equal(t, 20, msg)
	msg, _ = mb.ReceiveMessage(ctx, 1, 5)
	assert.Equal(t, 10, msg)
	msg, _ = mb.ReceiveMessage(ctx, 1, 5)
	assert.Equal(t, 11, msg)

	{ // Blocked receive wakes on post
		done := make(chan int)
		go func() {
			m, _ := mb.ReceiveMessage(ctx, 3, 1)
			done <- m
		}()
		time.Sleep(10 * time.Millisecond)
		require.NoError(t, mb.PostMessage(3, 1, 99))
		assert.Equal(t, 99, <-done)
	}
	{ // Cancellation
		cctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()
		_, err = mb.ReceiveMessage(cctx, 0, 0)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}
	mb.Close()
	_, err = mb.ReceiveMessage(ctx, 0, 0)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, mb.PostMessage(0, 0, 1), ErrClosed)
}

func testCollectives(t *testing.T, ranks []Communicator) {
	n := len(ranks)
	runRanks(t, ranks, func(ctx context.Context, c Communicator) (err error) {
		// Every rank sends to every other rank before receiving anything
		for dst := 0; dst < n; dst++ {
			if dst != c.Rank() {
				if err = SendUint64(ctx, c, dst, TagMigrateCount, uint64(100*c.Rank()+dst)); err != nil {
					return
				}
			}
		}
		for src := 0; src < n; src++ {
			if src != c.Rank() {
				var v uint64
				if v, err = RecvUint64(ctx, c, src, TagMigrateCount); err != nil {
					return
				}
				assert.Equal(t, uint64(100*src+c.Rank()), v)
			}
		}
		buf := []float64{float64(c.Rank() + 1), 1, 0.5}
		if err = AllReduceSum(ctx, c, buf); err != nil {
			return
		}
		assert.Equal(t, []float64{float64(n * (n + 1) / 2), float64(n), 0.5 * float64(n)}, buf)

		var vals []uint64
		if vals, err = AllGatherUint64(ctx, c, uint64(c.Rank()*c.Rank())); err != nil {
			return
		}
		for r, v := range vals {
			assert.Equal(t, uint64(r*r), v)
		}
		return Barrier(ctx, c)
	})
}

func TestLocalWorld(t *testing.T) {
	for _, n := range []int{1, 2, 5} {
		ranks := NewLocalWorld(n)
		assert.Equal(t, n, ranks[0].Size())
		testCollectives(t, ranks)
		for _, c := range ranks {
			assert.NoError(t, c.Close())
		}
	}
	{ // Bad ranks and closed mailboxes
		c := Single()
		ctx := context.Background()
		assert.Error(t, c.Send(ctx, 1, TagHalo, nil))
		_, err := c.Recv(ctx, -1, TagHalo)
		assert.Error(t, err)
		require.NoError(t, c.Send(ctx, 0, TagHalo, []byte{1, 2}))
		data, err := c.Recv(ctx, 0, TagHalo)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2}, data)
		require.NoError(t, c.Close())
		_, err = c.Recv(ctx, 0, TagHalo)
		assert.ErrorIs(t, err, ErrClosed)
	}
}

func TestFloatCodec(t *testing.T) {
	in := []float64{0, -1.5, 1.e300, 5.e-324}
	out, err := DecodeFloat64s(EncodeFloat64s(in))
	require.NoError(t, err)
	assert.Equal(t, in, out)
	_, err = DecodeFloat64s([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestGRPCWorld(t *testing.T) {
	ranks, err := NewGRPCWorld(3, nil)
	require.NoError(t, err)
	defer func() {
		for _, c := range ranks {
			_ = c.Close()
		}
	}()
	testCollectives(t, ranks)
	{ // Large payload and self send
		ctx := context.Background()
		big := make([]byte, 8<<20)
		big[len(big)-1] = 7
		require.NoError(t, ranks[0].Send(ctx, 2, TagMigrateRecords, big))
		got, err := ranks[2].Recv(ctx, 0, TagMigrateRecords)
		require.NoError(t, err)
		assert.Equal(t, len(big), len(got))
		assert.Equal(t, byte(7), got[len(got)-1])

		require.NoError(t, ranks[1].Send(ctx, 1, TagUser, []byte("self")))
		got, err = ranks[1].Recv(ctx, 1, TagUser)
		require.NoError(t, err)
		assert.Equal(t, "self", string(got))
	}
}
