package samples

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r3"

	"crossmesh/internal/models"
	"crossmesh/pkg/codec"
	"crossmesh/pkg/comm"
	"crossmesh/pkg/geom"
	"crossmesh/pkg/redistribute"
)

const (
	pointsTag codec.Tag = 0x50
	valuesTag codec.Tag = 0x56
)

// NoOwner is what a Partition returns for a point outside every box.
const NoOwner = -1

// Partition assigns points and grid regions to ranks.
type Partition interface {
	// OwnerOf returns the rank owning p, or NoOwner.
	OwnerOf(p r3.Vec) int
	// Boundaries returns the ranks whose boxes overlap b, with those boxes.
	Boundaries(b geom.Box) ([]int, []geom.Box)
}

// piece is the part of a grid headed to one rank.
type piece struct {
	rank int
	ext  models.IndexExtents
}

func ownerOf(part Partition, p r3.Vec, self int) int {
	if r := part.OwnerOf(p); r != NoOwner {
		return r
	}
	return self
}

// gridPieces clips g against every overlapping partition box. A grid that
// reaches no box stays whole on self. Relocate and Unrelocate must derive
// the same pieces in the same order.
func gridPieces(g Grid, part Partition, self, size int) []piece {
	var out []piece
	ranks, boxes := part.Boundaries(g.Bounds())
	for i, r := range ranks {
		if r < 0 || r >= size {
			continue
		}
		if ext, ok := Subgrid(g, boxes[i]); ok {
			out = append(out, piece{rank: r, ext: ext})
		}
	}
	if len(out) == 0 {
		out = append(out, piece{rank: self, ext: models.IndexExtents{
			0, len(g.X) - 1, 0, len(g.Y) - 1, 0, len(g.Z) - 1,
		}})
	}
	return out
}

// Relocate sends every point to the rank owning it and every grid, clipped,
// to each rank whose box holds some of its points. The Set then holds what
// the other ranks sent and must be finalized before use. Points no rank
// owns stay here. Relocate is a collective call.
func (s *Set) Relocate(ctx context.Context, c comm.Communicator, part Partition) error {
	if s.state == Relocated {
		return ErrAlreadyRelocated
	}
	size, self := c.Size(), c.Rank()

	pts := make([][]r3.Vec, size)
	for _, l := range s.lists {
		for _, p := range l {
			r := ownerOf(part, p, self)
			pts[r] = append(pts[r], p)
		}
	}
	grids := make([][]Grid, size)
	for _, g := range s.grids {
		for _, pc := range gridPieces(g, part, self, size) {
			grids[pc.rank] = append(grids[pc.rank], g.Sub(pc.ext))
		}
	}

	send := make([][]byte, size)
	for r := range send {
		w := codec.NewWriter(16 + 24*len(pts[r]))
		w.PutTag(pointsTag)
		w.PutInt(len(pts[r]))
		for _, p := range pts[r] {
			w.PutFloat64(p.X)
			w.PutFloat64(p.Y)
			w.PutFloat64(p.Z)
		}
		w.PutInt(len(grids[r]))
		for _, g := range grids[r] {
			w.PutFloat64s(g.X)
			w.PutFloat64s(g.Y)
			w.PutFloat64s(g.Z)
		}
		send[r] = w.Bytes()
	}

	recv, err := redistribute.Exchange(ctx, c, send)
	if err != nil {
		return fmt.Errorf("relocating sample points: %w", err)
	}

	next := &relocation{lists: s.lists, grids: s.grids}
	var lists [][]r3.Vec
	var newGrids []Grid
	for src, b := range recv {
		r := codec.NewReader(b)
		r.Expect(pointsTag)
		n := r.Len(24)
		if n > 0 {
			l := make([]r3.Vec, n)
			for i := range l {
				l[i] = r3.Vec{X: r.Float64(), Y: r.Float64(), Z: r.Float64()}
			}
			lists = append(lists, l)
			next.listFrom = append(next.listFrom, src)
		}
		ng := r.Len(3 * 8)
		for i := 0; i < ng && r.Err() == nil; i++ {
			g := Grid{X: r.Float64s(), Y: r.Float64s(), Z: r.Float64s()}
			if r.Err() == nil && (len(g.X) == 0 || len(g.Y) == 0 || len(g.Z) == 0) {
				return fmt.Errorf("decoding samples from rank %d: empty grid axis", src)
			}
			newGrids = append(newGrids, g)
			next.gridFrom = append(next.gridFrom, src)
		}
		if err := r.Err(); err != nil {
			return fmt.Errorf("decoding samples from rank %d: %w", src, err)
		}
		if !r.Done() {
			return fmt.Errorf("decoding samples from rank %d: %d trailing bytes", src, r.Remaining())
		}
	}

	s.lists, s.grids = lists, newGrids
	s.reloc = next
	s.state = Relocated
	s.stale = true

	s.log.WithFields(logrus.Fields{
		"lists": len(lists),
		"grids": len(newGrids),
	}).Debug("sample points relocated")
	return nil
}

// Unrelocate sends every evaluated value back to the rank its point came
// from and restores the points held before Relocate. The Set is finalized
// again and its values are in the original point order. A grid point
// evaluated on several ranks keeps the first value found. Unrelocate is a
// collective call.
func (s *Set) Unrelocate(ctx context.Context, c comm.Communicator, part Partition) error {
	if s.state != Relocated {
		return ErrNotRelocated
	}
	if s.stale {
		return ErrNotFinalized
	}
	size, self := c.Size(), c.Rank()

	writers := make([]*codec.Writer, size)
	for r := range writers {
		writers[r] = codec.NewWriter(16)
		writers[r].PutTag(valuesTag)
	}
	ds := 0
	for i, l := range s.lists {
		w := writers[s.reloc.listFrom[i]]
		for j := range l {
			for _, v := range s.Value(ds, j) {
				w.PutFloat64(v)
			}
		}
		ds++
	}
	for i, g := range s.grids {
		w := writers[s.reloc.gridFrom[i]]
		for j := 0; j < g.NumPoints(); j++ {
			for _, v := range s.Value(ds, j) {
				w.PutFloat64(v)
			}
		}
		ds++
	}
	send := make([][]byte, size)
	for r, w := range writers {
		send[r] = w.Bytes()
	}

	recv, err := redistribute.Exchange(ctx, c, send)
	if err != nil {
		return fmt.Errorf("returning sample values: %w", err)
	}

	s.lists, s.grids = s.reloc.lists, s.reloc.grids
	s.reloc = nil
	s.state = Local
	s.Finalize()

	readers := make([]*codec.Reader, size)
	for r, b := range recv {
		readers[r] = codec.NewReader(b)
		readers[r].Expect(valuesTag)
	}
	val := make([]float64, s.comps)
	read := func(r *codec.Reader) []float64 {
		for k := range val {
			val[k] = r.Float64()
		}
		return val
	}

	p := 0
	for _, l := range s.lists {
		for _, pt := range l {
			s.SetValue(p, read(readers[ownerOf(part, pt, self)]))
			p++
		}
	}
	for gi, g := range s.grids {
		base := s.start[len(s.lists)+gi]
		nx, ny := len(g.X), len(g.Y)
		written := make([]bool, g.NumPoints())
		for _, pc := range gridPieces(g, part, self, size) {
			r := readers[pc.rank]
			for z := pc.ext[4]; z <= pc.ext[5]; z++ {
				for y := pc.ext[2]; y <= pc.ext[3]; y++ {
					for x := pc.ext[0]; x <= pc.ext[1]; x++ {
						local := x + nx*(y+ny*z)
						v := read(r)
						if written[local] {
							continue
						}
						s.SetValue(base+local, v)
						written[local] = v[0] != Missing
					}
				}
			}
		}
	}

	for src, r := range readers {
		if err := r.Err(); err != nil {
			return fmt.Errorf("decoding values from rank %d: %w", src, err)
		}
		if !r.Done() {
			return fmt.Errorf("decoding values from rank %d: %d trailing bytes", src, r.Remaining())
		}
	}

	s.log.WithField("points", s.total).Debug("sample values returned")
	return nil
}
