package redistribute

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crossmesh/pkg/comm"
)

func TestExchangeSelf(t *testing.T) {
	recv, err := Exchange(context.Background(), comm.Self(), [][]byte{[]byte("own")})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("own")}, recv)
}

func TestExchangeWrongCount(t *testing.T) {
	_, err := Exchange(context.Background(), comm.Self(), nil)
	assert.True(t, errors.Is(err, comm.ErrSizeMismatch))
}

func TestExchangeSparse(t *testing.T) {
	const n = 4
	err := comm.RunLocal(context.Background(), n, func(ctx context.Context, c comm.Communicator) error {
		send := make([][]byte, n)
		// Only send to the next rank, with a payload whose size depends on
		// the sender.
		next := (c.Rank() + 1) % n
		send[next] = bytes.Repeat([]byte{byte(c.Rank())}, c.Rank()+1)

		recv, err := Exchange(ctx, c, send)
		if err != nil {
			return err
		}
		prev := (c.Rank() + n - 1) % n
		for src, msg := range recv {
			if src != prev {
				if msg != nil {
					return fmt.Errorf("rank %d: unexpected message from %d", c.Rank(), src)
				}
				continue
			}
			if !bytes.Equal(msg, bytes.Repeat([]byte{byte(prev)}, prev+1)) {
				return fmt.Errorf("rank %d: bad payload from %d: %v", c.Rank(), src, msg)
			}
		}
		if Total(recv) != prev+1 {
			return fmt.Errorf("rank %d: total %d", c.Rank(), Total(recv))
		}
		return nil
	})
	require.NoError(t, err)
}
