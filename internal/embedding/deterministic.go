package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// Deterministic is a hash-based embedder for tests and offline runs. Equal
// texts map to equal unit vectors, and texts sharing tokens land closer
// together than unrelated ones.
type Deterministic struct {
	dims int
}

// NewDeterministic creates a deterministic embedder. dims <= 0 picks 128.
func NewDeterministic(dims int) *Deterministic {
	if dims <= 0 {
		dims = 128
	}
	return &Deterministic{dims: dims}
}

// Embed hashes each token into a bucket and normalizes the counts, a
// bag-of-words projection that keeps token overlap visible in cosine space.
func (d *Deterministic) Embed(ctx context.Context, text string) (Vector, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vec := make(Vector, d.dims)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		vec[h.Sum64()%uint64(d.dims)] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec, nil
}

func (d *Deterministic) Dims() int { return d.dims }
