package features

import "fmt"

// EmbeddingPolicy says how an embedding combines with the handcrafted values.
type EmbeddingPolicy string

const (
	// PolicyNone ignores the embedding.
	PolicyNone EmbeddingPolicy = "none"
	// PolicyAppend concatenates the reduced embedding after the handcrafted values.
	PolicyAppend EmbeddingPolicy = "append"
	// PolicyReplace uses the reduced embedding as the whole vector.
	PolicyReplace EmbeddingPolicy = "replace"
)

// ParsePolicy validates s. The empty string means PolicyNone.
func ParsePolicy(s string) (EmbeddingPolicy, error) {
	switch p := EmbeddingPolicy(s); p {
	case "":
		return PolicyNone, nil
	case PolicyNone, PolicyAppend, PolicyReplace:
		return p, nil
	default:
		return "", fmt.Errorf("invalid embedding policy %q (want none, append or replace)", s)
	}
}

// Dims returns the vector length the policy produces for an embedding of n values.
func (p EmbeddingPolicy) Dims(n int) int {
	r := min(n, ReducedEmbeddingDims)
	switch p {
	case PolicyAppend:
		return HandcraftedDims + r
	case PolicyReplace:
		return r
	default:
		return HandcraftedDims
	}
}

// Reduce keeps the first ReducedEmbeddingDims values of emb. Shorter input is
// returned unchanged. The result never aliases emb.
func Reduce(emb []float64) []float64 {
	n := min(len(emb), ReducedEmbeddingDims)
	out := make([]float64, n)
	copy(out, emb[:n])
	return out
}

// Improved builds the improved-tier vector from code and an optional
// embedding under policy. Replace with fewer than HandcraftedDims values is
// a dimension mismatch.
func Improved(code string, emb []float64, policy EmbeddingPolicy) (Vector, error) {
	switch policy {
	case PolicyAppend:
		v := All(code)
		v.Values = append(v.Values, Reduce(emb)...)
		return v, nil
	case PolicyReplace:
		r := Reduce(emb)
		if len(r) < HandcraftedDims {
			return Vector{}, fmt.Errorf("%w: replace policy needs %d embedding values, got %d", ErrDimensionMismatch, HandcraftedDims, len(r))
		}
		return Vector{Shape: ShapeImproved, Values: r}, nil
	default:
		return All(code), nil
	}
}
