package search

import (
	"encoding/json"
	"sort"
	"sync"
)

// Candidate is one scored plaintext hypothesis. Scores compare only within
// the run that produced them.
type Candidate struct {
	Key        Key
	Plaintext  string
	Score      float64
	Note       string
	Degenerate bool
}

func (c Candidate) MarshalJSON() ([]byte, error) {
	key := ""
	if c.Key != nil {
		key = c.Key.String()
	}
	return json.Marshal(struct {
		Key        string  `json:"key"`
		Plaintext  string  `json:"plaintext"`
		Score      float64 `json:"score"`
		Note       string  `json:"note,omitempty"`
		Degenerate bool    `json:"degenerate,omitempty"`
	}{key, c.Plaintext, c.Score, c.Note, c.Degenerate})
}

// better reports whether a ranks ahead of b.
func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return compareKeys(a.Key, b.Key) < 0
}

// Rank orders candidates by descending score, breaking ties by the smaller
// key, and keeps the first k. k <= 0 keeps all. The input is not modified.
func Rank(candidates []Candidate, k int) []Candidate {
	out := append([]Candidate(nil), candidates...)
	sort.SliceStable(out, func(i, j int) bool { return better(out[i], out[j]) })
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	if out == nil {
		out = []Candidate{}
	}
	return out
}

// Ranker collects candidates from concurrent producers. Because the order
// is total, the final ranking does not depend on arrival order.
type Ranker struct {
	mu         sync.Mutex
	k          int
	candidates []Candidate
}

func NewRanker(k int) *Ranker {
	return &Ranker{k: k}
}

func (r *Ranker) Add(c Candidate) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.candidates = append(r.candidates, c)
	// Trim now and then so exhaustive runs stay bounded in memory.
	if r.k > 0 && len(r.candidates) >= 4*r.k+64 {
		r.candidates = Rank(r.candidates, r.k)
	}
}

// Merge adds every candidate of other.
func (r *Ranker) Merge(other []Candidate) {
	for _, c := range other {
		r.Add(c)
	}
}

func (r *Ranker) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.candidates)
}

// Top returns the current top k.
func (r *Ranker) Top() []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Rank(r.candidates, r.k)
}
