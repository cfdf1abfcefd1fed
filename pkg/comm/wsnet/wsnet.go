// Package wsnet runs a Communicator across processes. Every rank holds one
// websocket to a hub; in each round the hub collects one frame per rank,
// regroups the payloads by destination and writes each rank its column.
package wsnet

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"crossmesh/pkg/codec"
	"crossmesh/pkg/comm"
)

const frameTag codec.Tag = 0x57

// ErrRound is returned when a frame belongs to a different round than the
// one in progress.
var ErrRound = errors.New("wsnet: round mismatch")

func encodeFrame(round int, payloads [][]byte) []byte {
	size := 16
	for _, p := range payloads {
		size += 8 + len(p)
	}
	w := codec.NewWriter(size)
	w.PutTag(frameTag)
	w.PutInt(round)
	w.PutInt(len(payloads))
	for _, p := range payloads {
		w.PutBytes(p)
	}
	return w.Bytes()
}

func decodeFrame(b []byte, want int) (int, [][]byte, error) {
	r := codec.NewReader(b)
	r.Expect(frameTag)
	round := r.Int()
	n := r.Len(8)
	payloads := make([][]byte, n)
	for i := range payloads {
		payloads[i] = append([]byte(nil), r.Bytes()...)
	}
	if err := r.Err(); err != nil {
		return 0, nil, fmt.Errorf("decoding frame: %w", err)
	}
	if n != want {
		return 0, nil, fmt.Errorf("%w: frame carries %d payloads for %d ranks", comm.ErrSizeMismatch, n, want)
	}
	return round, payloads, nil
}

// Hub relays all-to-all rounds between a fixed number of ranks.
type Hub struct {
	size     int
	upgrader websocket.Upgrader
	log      *logrus.Entry

	mu     sync.Mutex
	conns  []*websocket.Conn
	joined int
	ready  chan struct{}
}

// NewHub returns a hub expecting size ranks.
func NewHub(size int, log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Hub{
		size:  size,
		log:   log.WithField("component", "hub"),
		conns: make([]*websocket.Conn, size),
		ready: make(chan struct{}),
	}
}

// ServeHTTP upgrades a rank's connection. The rank and size are passed as
// query parameters.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rank, err := strconv.Atoi(r.URL.Query().Get("rank"))
	if err != nil || rank < 0 || rank >= h.size {
		http.Error(w, "invalid rank", http.StatusBadRequest)
		return
	}
	if size, err := strconv.Atoi(r.URL.Query().Get("size")); err != nil || size != h.size {
		http.Error(w, fmt.Sprintf("hub serves %d ranks", h.size), http.StatusBadRequest)
		return
	}

	h.mu.Lock()
	taken := h.conns[rank] != nil
	h.mu.Unlock()
	if taken {
		http.Error(w, "rank already joined", http.StatusConflict)
		return
	}

	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("upgrade failed")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.conns[rank] != nil {
		ws.Close()
		return
	}
	h.conns[rank] = ws
	h.joined++
	h.log.WithField("rank", rank).Infof("rank joined (%d/%d)", h.joined, h.size)
	if h.joined == h.size {
		close(h.ready)
	}
}

// Run waits for every rank to join and relays rounds until a rank closes
// its connection or ctx is cancelled.
func (h *Hub) Run(ctx context.Context) error {
	select {
	case <-h.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer h.closeAll()

	stop := context.AfterFunc(ctx, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for _, ws := range h.conns {
			ws.SetReadDeadline(time.Now())
		}
	})
	defer stop()

	for round := 0; ; round++ {
		cols := make([][][]byte, h.size)
		for src, ws := range h.conns {
			_, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					h.log.WithField("rounds", round).Info("rank closed, hub stopping")
					return nil
				}
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return fmt.Errorf("reading rank %d: %w", src, err)
			}
			got, payloads, err := decodeFrame(msg, h.size)
			if err != nil {
				return fmt.Errorf("rank %d: %w", src, err)
			}
			if got != round {
				return fmt.Errorf("%w: rank %d sent round %d during round %d", ErrRound, src, got, round)
			}
			cols[src] = payloads
		}
		for dst, ws := range h.conns {
			in := make([][]byte, h.size)
			for src := range cols {
				in[src] = cols[src][dst]
			}
			if err := ws.WriteMessage(websocket.BinaryMessage, encodeFrame(round, in)); err != nil {
				return fmt.Errorf("writing rank %d: %w", dst, err)
			}
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ws := range h.conns {
		if ws != nil {
			ws.Close()
		}
	}
}

// Conn is one rank's link to a hub. It implements comm.Communicator.
type Conn struct {
	ws    *websocket.Conn
	rank  int
	size  int
	round int
}

var _ comm.Communicator = (*Conn)(nil)

// Dial joins the hub at url (for example ws://host:7400/ranks) as rank of
// size.
func Dial(ctx context.Context, url string, rank, size int) (*Conn, error) {
	full := fmt.Sprintf("%s?rank=%d&size=%d", url, rank, size)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, full, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing hub %s: %w", url, err)
	}
	return &Conn{ws: ws, rank: rank, size: size}, nil
}

func (c *Conn) Rank() int { return c.rank }
func (c *Conn) Size() int { return c.size }

func (c *Conn) AllToAll(ctx context.Context, send [][]byte) ([][]byte, error) {
	if len(send) != c.size {
		return nil, fmt.Errorf("%w: got %d buffers for %d ranks", comm.ErrSizeMismatch, len(send), c.size)
	}
	stop := context.AfterFunc(ctx, func() {
		c.ws.SetReadDeadline(time.Now())
		c.ws.SetWriteDeadline(time.Now())
	})
	defer stop()

	if err := c.ws.WriteMessage(websocket.BinaryMessage, encodeFrame(c.round, send)); err != nil {
		return nil, c.wrap(ctx, "sending round", err)
	}
	_, msg, err := c.ws.ReadMessage()
	if err != nil {
		return nil, c.wrap(ctx, "receiving round", err)
	}
	round, recv, err := decodeFrame(msg, c.size)
	if err != nil {
		return nil, err
	}
	if round != c.round {
		return nil, fmt.Errorf("%w: hub answered round %d, expected %d", ErrRound, round, c.round)
	}
	c.round++
	return recv, nil
}

func (c *Conn) wrap(ctx context.Context, what string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return fmt.Errorf("%s %d: %w", what, c.round, err)
}

// Close tells the hub this rank is leaving.
func (c *Conn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}
