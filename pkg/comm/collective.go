package comm

import (
	"context"
	"fmt"
	"math"

	"crossmesh/pkg/codec"
)

// AllGather sends payload to every rank and returns every rank's payload in
// rank order.
func AllGather(ctx context.Context, c Communicator, payload []byte) ([][]byte, error) {
	send := make([][]byte, c.Size())
	for i := range send {
		send[i] = payload
	}
	return c.AllToAll(ctx, send)
}

func gatherFloats(ctx context.Context, c Communicator, in []float64) ([][]float64, error) {
	w := codec.NewWriter(8 * (len(in) + 1))
	w.PutFloat64s(in)
	recv, err := AllGather(ctx, c, w.Bytes())
	if err != nil {
		return nil, err
	}
	out := make([][]float64, len(recv))
	for src, buf := range recv {
		r := codec.NewReader(buf)
		out[src] = r.Float64s()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decoding contribution of rank %d: %w", src, err)
		}
		if len(out[src]) != len(in) {
			return nil, fmt.Errorf("%w: rank %d contributed %d values, expected %d",
				ErrSizeMismatch, src, len(out[src]), len(in))
		}
	}
	return out, nil
}

// SumFloats returns the element-wise sum of in across all ranks. Terms are
// added in rank order so every rank obtains identical bits.
func SumFloats(ctx context.Context, c Communicator, in []float64) ([]float64, error) {
	parts, err := gatherFloats(ctx, c, in)
	if err != nil {
		return nil, err
	}
	sum := make([]float64, len(in))
	for _, p := range parts {
		for i, v := range p {
			sum[i] += v
		}
	}
	return sum, nil
}

// SumInts returns the element-wise sum of in across all ranks.
func SumInts(ctx context.Context, c Communicator, in []int) ([]int, error) {
	w := codec.NewWriter(8 * (len(in) + 1))
	w.PutInts(in)
	recv, err := AllGather(ctx, c, w.Bytes())
	if err != nil {
		return nil, err
	}
	sum := make([]int, len(in))
	for src, buf := range recv {
		r := codec.NewReader(buf)
		vs := r.Ints()
		if err := r.Err(); err != nil {
			return nil, fmt.Errorf("decoding contribution of rank %d: %w", src, err)
		}
		if len(vs) != len(in) {
			return nil, fmt.Errorf("%w: rank %d contributed %d values, expected %d",
				ErrSizeMismatch, src, len(vs), len(in))
		}
		for i, v := range vs {
			sum[i] += v
		}
	}
	return sum, nil
}

// SumInt returns the sum of v across all ranks.
func SumInt(ctx context.Context, c Communicator, v int) (int, error) {
	s, err := SumInts(ctx, c, []int{v})
	if err != nil {
		return 0, err
	}
	return s[0], nil
}

// MaxInt returns the maximum of v across all ranks.
func MaxInt(ctx context.Context, c Communicator, v int) (int, error) {
	parts, err := gatherFloats(ctx, c, []float64{float64(v)})
	if err != nil {
		return 0, err
	}
	m := math.Inf(-1)
	for _, p := range parts {
		m = math.Max(m, p[0])
	}
	return int(m), nil
}

// UnifyMinMax reduces interleaved extents [min0,max0,min1,max1,...] across
// ranks, taking the minimum of even entries and the maximum of odd ones.
func UnifyMinMax(ctx context.Context, c Communicator, ext []float64) ([]float64, error) {
	parts, err := gatherFloats(ctx, c, ext)
	if err != nil {
		return nil, err
	}
	out := append([]float64(nil), ext...)
	for _, p := range parts {
		for i, v := range p {
			if i%2 == 0 {
				out[i] = math.Min(out[i], v)
			} else {
				out[i] = math.Max(out[i], v)
			}
		}
	}
	return out, nil
}
