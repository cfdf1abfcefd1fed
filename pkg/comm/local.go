package comm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// A rank can run at most one round ahead of any peer, so two slots per
// ordered pair of ranks keep sends from ever blocking.
const mailboxDepth = 2

type localGroup struct {
	size int
	// boxes[src][dst] carries payloads from src to dst.
	boxes [][]chan []byte
}

type localComm struct {
	group *localGroup
	rank  int
}

// NewLocalGroup returns n communicators that exchange payloads in memory.
// Each one is meant to be driven by its own goroutine.
func NewLocalGroup(n int) []Communicator {
	g := &localGroup{size: n, boxes: make([][]chan []byte, n)}
	for src := range g.boxes {
		g.boxes[src] = make([]chan []byte, n)
		for dst := range g.boxes[src] {
			g.boxes[src][dst] = make(chan []byte, mailboxDepth)
		}
	}
	comms := make([]Communicator, n)
	for r := range comms {
		comms[r] = &localComm{group: g, rank: r}
	}
	return comms
}

func (c *localComm) Rank() int { return c.rank }
func (c *localComm) Size() int { return c.group.size }

func (c *localComm) AllToAll(ctx context.Context, send [][]byte) ([][]byte, error) {
	if err := checkSend(c, send); err != nil {
		return nil, err
	}
	for dst, buf := range send {
		select {
		case c.group.boxes[c.rank][dst] <- append([]byte(nil), buf...):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	recv := make([][]byte, c.group.size)
	for src := range recv {
		select {
		case recv[src] = <-c.group.boxes[src][c.rank]:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return recv, nil
}

// RankFunc is the body run by each rank of a local group.
type RankFunc func(ctx context.Context, c Communicator) error

// RunLocal runs fn on n in-memory ranks and waits for all of them. The first
// error cancels the shared context so ranks blocked in a collective return.
func RunLocal(ctx context.Context, n int, fn RankFunc) error {
	if n < 1 {
		return fmt.Errorf("comm: need at least one rank, got %d", n)
	}
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range NewLocalGroup(n) {
		c := c
		g.Go(func() error {
			if err := fn(ctx, c); err != nil {
				return fmt.Errorf("rank %d: %w", c.Rank(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
