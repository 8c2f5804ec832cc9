package comm

import (
	"context"
	"fmt"
)

type localWorld struct {
	boxes []*MailBox[[]byte]
}

// localComm is one rank of a set of ranks living in the same process
type localComm struct {
	rank  int
	world *localWorld
}

// NewLocalWorld returns n connected in-process ranks, one per goroutine
func NewLocalWorld(n int) (ranks []Communicator) {
	w := &localWorld{boxes: make([]*MailBox[[]byte], n)}
	for r := range w.boxes {
		w.boxes[r] = NewMailBox[[]byte]()
	}
	ranks = make([]Communicator, n)
	for r := range ranks {
		ranks[r] = &localComm{rank: r, world: w}
	}
	return
}

// Single is the communicator of a run without decomposition
func Single() Communicator { return NewLocalWorld(1)[0] }

func (lc *localComm) Rank() int { return lc.rank }
func (lc *localComm) Size() int { return len(lc.world.boxes) }

func (lc *localComm) Send(ctx context.Context, dst, tag int, payload []byte) (err error) {
	if dst < 0 || dst >= lc.Size() {
		return fmt.Errorf("rank %d: send to rank %d out of range [0,%d)", lc.rank, dst, lc.Size())
	}
	if err = ctx.Err(); err != nil {
		return
	}
	msg := make([]byte, len(payload))
	copy(msg, payload)
	if err = lc.world.boxes[dst].PostMessage(lc.rank, tag, msg); err != nil {
		err = fmt.Errorf("rank %d: send to rank %d tag %d: %w", lc.rank, dst, tag, err)
	}
	return
}

func (lc *localComm) Recv(ctx context.Context, src, tag int) (payload []byte, err error) {
	if src < 0 || src >= lc.Size() {
		return nil, fmt.Errorf("rank %d: receive from rank %d out of range [0,%d)", lc.rank, src, lc.Size())
	}
	if payload, err = lc.world.boxes[lc.rank].ReceiveMessage(ctx, src, tag); err != nil {
		err = fmt.Errorf("rank %d: receive from rank %d tag %d: %w", lc.rank, src, tag, err)
	}
	return
}

func (lc *localComm) Close() error {
	lc.world.boxes[lc.rank].Close()
	return nil
}
