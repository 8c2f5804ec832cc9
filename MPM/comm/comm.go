package comm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

var ErrClosed = errors.New("communicator closed")

// Communicator moves byte messages between ranks. Send returns once the message is
// buffered at the destination and never waits for the matching Recv, so a rank can post
// all of its sends before it blocks in any receive. Messages between a pair of ranks
// with the same tag arrive in the order they were sent.
type Communicator interface {
	Rank() int
	Size() int
	Send(ctx context.Context, dst, tag int, payload []byte) error
	Recv(ctx context.Context, src, tag int) ([]byte, error)
	Close() error
}

// Message tags used by the mesh layer. Collectives use tags above tagCollective.
const (
	TagHalo = iota + 1
	TagMigrateCount
	TagMigrateRecords
	TagStrayCount
	TagStrayRecords
	TagUser = 100

	tagCollective = 1 << 20
	tagReduce     = tagCollective + 1
	tagBroadcast  = tagCollective + 2
	tagBarrier    = tagCollective + 3
	tagGather     = tagCollective + 4
)

func SendUint64(ctx context.Context, c Communicator, dst, tag int, val uint64) error {
	return c.Send(ctx, dst, tag, binary.LittleEndian.AppendUint64(nil, val))
}

func RecvUint64(ctx context.Context, c Communicator, src, tag int) (val uint64, err error) {
	var data []byte
	if data, err = c.Recv(ctx, src, tag); err != nil {
		return
	}
	if len(data) != 8 {
		return 0, fmt.Errorf("rank %d: expected an 8 byte count from rank %d, got %d bytes", c.Rank(), src, len(data))
	}
	return binary.LittleEndian.Uint64(data), nil
}

func EncodeFloat64s(buf []float64) (data []byte) {
	data = make([]byte, 0, 8*len(buf))
	for _, v := range buf {
		data = binary.LittleEndian.AppendUint64(data, math.Float64bits(v))
	}
	return
}

func DecodeFloat64s(data []byte) (buf []float64, err error) {
	if len(data)%8 != 0 {
		return nil, fmt.Errorf("float payload of %d bytes", len(data))
	}
	buf = make([]float64, len(data)/8)
	for k := range buf {
		buf[k] = math.Float64frombits(binary.LittleEndian.Uint64(data[8*k:]))
	}
	return
}

// AllReduceSum replaces buf on every rank with the element wise sum over all ranks.
// Partial buffers are summed on rank 0 in rank order, so every rank gets bit identical
// results and repeated runs reproduce them.
func AllReduceSum(ctx context.Context, c Communicator, buf []float64) (err error) {
	if c.Size() == 1 {
		return
	}
	if c.Rank() != 0 {
		if err = c.Send(ctx, 0, tagReduce, EncodeFloat64s(buf)); err != nil {
			return
		}
		var data []byte
		if data, err = c.Recv(ctx, 0, tagBroadcast); err != nil {
			return
		}
		var sum []float64
		if sum, err = DecodeFloat64s(data); err != nil {
			return
		}
		if len(sum) != len(buf) {
			return fmt.Errorf("rank %d: reduced buffer has %d values, want %d", c.Rank(), len(sum), len(buf))
		}
		copy(buf, sum)
		return
	}
	for src := 1; src < c.Size(); src++ {
		var (
			data    []byte
			partial []float64
		)
		if data, err = c.Recv(ctx, src, tagReduce); err != nil {
			return
		}
		if partial, err = DecodeFloat64s(data); err != nil {
			return
		}
		if len(partial) != len(buf) {
			return fmt.Errorf("rank 0: partial buffer from rank %d has %d values, want %d", src, len(partial), len(buf))
		}
		floats.Add(buf, partial)
	}
	data := EncodeFloat64s(buf)
	for dst := 1; dst < c.Size(); dst++ {
		if err = c.Send(ctx, dst, tagBroadcast, data); err != nil {
			return
		}
	}
	return
}

// AllGatherUint64 returns the value contributed by every rank, indexed by rank
func AllGatherUint64(ctx context.Context, c Communicator, val uint64) (vals []uint64, err error) {
	vals = make([]uint64, c.Size())
	vals[c.Rank()] = val
	for dst := 0; dst < c.Size(); dst++ {
		if dst != c.Rank() {
			if err = SendUint64(ctx, c, dst, tagGather, val); err != nil {
				return
			}
		}
	}
	for src := 0; src < c.Size(); src++ {
		if src != c.Rank() {
			if vals[src], err = RecvUint64(ctx, c, src, tagGather); err != nil {
				return
			}
		}
	}
	return
}

// Barrier returns once every rank has entered it
func Barrier(ctx context.Context, c Communicator) (err error) {
	for dst := 0; dst < c.Size(); dst++ {
		if dst != c.Rank() {
			if err = c.Send(ctx, dst, tagBarrier, nil); err != nil {
				return
			}
		}
	}
	for src := 0; src < c.Size(); src++ {
		if src != c.Rank() {
			if _, err = c.Recv(ctx, src, tagBarrier); err != nil {
				return
			}
		}
	}
	return
}
