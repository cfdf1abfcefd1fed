// Package comm defines the message-passing abstraction the engine runs on.
// A Communicator is handed to every component that takes part in a
// collective step, so the rank layout is explicit and scoped to one
// evaluation instead of living in process globals.
//
// Every collective must be entered by all ranks in the same order. There is
// no liveness detection: a rank that skips a step leaves the others blocked
// until their context is cancelled.
package comm

import (
	"context"
	"errors"
	"fmt"
)

// ErrSizeMismatch is returned when a collective receives a send vector
// whose length differs from the communicator size.
var ErrSizeMismatch = errors.New("comm: send vector does not match communicator size")

// Communicator exchanges byte payloads between a fixed set of ranks.
type Communicator interface {
	// Rank returns this process' index in [0, Size).
	Rank() int
	// Size returns the number of ranks.
	Size() int
	// AllToAll sends send[p] to rank p and returns the payload each rank sent
	// here, indexed by source rank. It blocks until every rank has entered
	// the same round. Payloads must not be modified after the call.
	AllToAll(ctx context.Context, send [][]byte) ([][]byte, error)
}

func checkSend(c Communicator, send [][]byte) error {
	if len(send) != c.Size() {
		return fmt.Errorf("%w: got %d buffers for %d ranks", ErrSizeMismatch, len(send), c.Size())
	}
	return nil
}

type self struct{}

// Self returns a single-rank communicator. Collectives on it return the
// local contribution.
func Self() Communicator { return self{} }

func (self) Rank() int { return 0 }
func (self) Size() int { return 1 }

func (s self) AllToAll(ctx context.Context, send [][]byte) ([][]byte, error) {
	if err := checkSend(s, send); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return [][]byte{append([]byte(nil), send[0]...)}, nil
}
