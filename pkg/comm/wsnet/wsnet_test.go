package wsnet

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"crossmesh/pkg/comm"
)

func TestFrameRoundTrip(t *testing.T) {
	b := encodeFrame(3, [][]byte{[]byte("a"), nil, []byte("ccc")})
	round, payloads, err := decodeFrame(b, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, round)
	assert.Equal(t, "a", string(payloads[0]))
	assert.Empty(t, payloads[1])
	assert.Equal(t, "ccc", string(payloads[2]))

	_, _, err = decodeFrame(b, 2)
	assert.ErrorIs(t, err, comm.ErrSizeMismatch)
}

func TestHubRelaysRounds(t *testing.T) {
	const n = 3
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	hub := NewHub(n, nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ranks"

	hubDone := make(chan error, 1)
	go func() { hubDone <- hub.Run(ctx) }()

	g, gctx := errgroup.WithContext(ctx)
	for r := 0; r < n; r++ {
		r := r
		g.Go(func() error {
			c, err := Dial(gctx, url, r, n)
			if err != nil {
				return err
			}
			defer c.Close()
			for round := 0; round < 3; round++ {
				total, err := comm.SumInt(gctx, c, r+round)
				if err != nil {
					return err
				}
				if want := 3 + n*round; total != want {
					return fmt.Errorf("round %d: expected %d, got %d", round, want, total)
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	select {
	case err := <-hubDone:
		assert.NoError(t, err)
	case <-ctx.Done():
		t.Fatal("hub did not stop after ranks closed")
	}
}
