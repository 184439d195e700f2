// Package search ranks memory nodes by embedding similarity.
//
// The Ranker interface isolates the ranking strategy from the store and
// graph contracts, so a future indexed or approximate backend can replace
// the brute-force scan without touching callers. Scores move through two
// representations:
//
//   - raw cosine similarity in [-1, 1], used for ordering and thresholds
//   - a presentation score in [0, 1] via Score, reported to callers
package search

import (
	"context"
	"errors"
	"sort"

	"github.com/agentmind/mindgraph/pkg/storage"
	"github.com/agentmind/mindgraph/pkg/vector"
)

// ErrDimensionMismatch is returned when the query vector length differs from
// a candidate embedding length.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Match pairs a node with its raw cosine similarity to the query.
type Match struct {
	Node   *storage.Node
	Cosine float64 // raw cosine in [-1, 1]
}

// Options controls a ranking pass.
type Options struct {
	// Tags keeps only nodes whose tag set intersects this filter
	// (match-any). Empty means no filtering.
	Tags []string

	// TopK caps the number of matches. Zero or negative means no cap.
	TopK int

	// MinCosine drops candidates below this raw cosine value. Set to -1
	// to accept everything.
	MinCosine float64
}

// Ranker orders candidate nodes by similarity to a query embedding.
type Ranker interface {
	Rank(ctx context.Context, query []float32, candidates []*storage.Node, opts Options) ([]Match, error)
}

// BruteForce is a linear-scan Ranker: it computes the cosine similarity of
// the query against every candidate. Acceptable at the scale of an agent's
// memory store; swap in an indexed Ranker if the node count outgrows it.
type BruteForce struct{}

// NewBruteForce creates a brute-force ranker.
func NewBruteForce() *BruteForce {
	return &BruteForce{}
}

// Rank scores all candidates and returns matches sorted by descending raw
// cosine similarity. Ties are broken by ascending node id so results are
// deterministic regardless of candidate order. The context is checked during
// the scan so large stores stay cancellable.
func (b *BruteForce) Rank(ctx context.Context, query []float32, candidates []*storage.Node, opts Options) ([]Match, error) {
	matches := make([]Match, 0, len(candidates))

	for _, node := range candidates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		if len(node.Embedding) != len(query) {
			return nil, ErrDimensionMismatch
		}
		if !matchesTags(node.Tags, opts.Tags) {
			continue
		}

		cos := vector.CosineSimilarity(query, node.Embedding)
		if cos < opts.MinCosine {
			continue
		}
		matches = append(matches, Match{Node: node, Cosine: cos})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Cosine != matches[j].Cosine {
			return matches[i].Cosine > matches[j].Cosine
		}
		return matches[i].Node.ID < matches[j].Node.ID
	})

	if opts.TopK > 0 && len(matches) > opts.TopK {
		matches = matches[:opts.TopK]
	}
	return matches, nil
}

// Score rescales a raw cosine similarity to the [0, 1] presentation range
// reported to callers: (cos+1)/2. Out-of-range inputs (float drift) are
// clamped.
func Score(cos float64) float64 {
	score := (cos + 1) / 2
	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// matchesTags reports whether nodeTags intersects filter. An empty filter
// matches everything.
func matchesTags(nodeTags, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, want := range filter {
		for _, have := range nodeTags {
			if want == have {
				return true
			}
		}
	}
	return false
}
