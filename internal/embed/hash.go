package embed

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const hashDim = 256

// HashProvider is a deterministic bag-of-tokens embedder. It needs no
// model and is used by tests and as a last-resort degradation target; its
// vectors capture token overlap, nothing more.
type HashProvider struct{}

func (HashProvider) Load(context.Context) error { return nil }

func (HashProvider) Ready() bool { return true }

func (HashProvider) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, hashDim)
	for _, tok := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		vec[h.Sum32()%hashDim] += 1
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
