// Package redistribute moves variable-size byte messages between every pair
// of ranks. Each rank announces the size of what it sends to every peer
// before the payloads themselves travel, so receivers can check what
// arrives against what was promised.
package redistribute

import (
	"context"
	"errors"
	"fmt"

	"crossmesh/pkg/codec"
	"crossmesh/pkg/comm"
)

// ErrCountMismatch is returned when a received payload differs in length
// from the count its sender announced.
var ErrCountMismatch = errors.New("redistribute: payload length differs from announced count")

// Exchange sends send[j] to rank j and returns recv where recv[i] is what
// rank i sent to this rank. A nil or empty entry sends nothing. Exchange is
// a collective call.
func Exchange(ctx context.Context, c comm.Communicator, send [][]byte) ([][]byte, error) {
	size := c.Size()
	if len(send) != size {
		return nil, fmt.Errorf("%w: %d messages for %d ranks", comm.ErrSizeMismatch, len(send), size)
	}

	counts := make([][]byte, size)
	for j, msg := range send {
		w := codec.NewWriter(8)
		w.PutInt(len(msg))
		counts[j] = w.Bytes()
	}
	announced, err := c.AllToAll(ctx, counts)
	if err != nil {
		return nil, fmt.Errorf("exchanging message sizes: %w", err)
	}
	expect := make([]int, size)
	for i, b := range announced {
		r := codec.NewReader(b)
		expect[i] = r.Int()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decoding size from rank %d: %w", i, err)
		}
	}

	recv, err := c.AllToAll(ctx, send)
	if err != nil {
		return nil, fmt.Errorf("exchanging payloads: %w", err)
	}
	for i, msg := range recv {
		if len(msg) != expect[i] {
			return nil, fmt.Errorf("%w: rank %d announced %d bytes, sent %d",
				ErrCountMismatch, i, expect[i], len(msg))
		}
		if len(msg) == 0 {
			recv[i] = nil
		}
	}
	return recv, nil
}

// Total returns the summed length of msgs.
func Total(msgs [][]byte) int {
	n := 0
	for _, m := range msgs {
		n += len(m)
	}
	return n
}
