package search

// KeySpace is a finite, restartable sequence of keys. Implementations are
// not safe for concurrent use.
type KeySpace interface {
	Next() (Key, bool)
	Reset()
	Size() int
}

// rangeSpace yields make(i) for i in [lo, hi].
type rangeSpace struct {
	lo, hi int
	cur    int
	make   func(int) Key
}

func newRangeSpace(lo, hi int, mk func(int) Key) *rangeSpace {
	return &rangeSpace{lo: lo, hi: hi, cur: lo, make: mk}
}

func (s *rangeSpace) Next() (Key, bool) {
	if s.cur > s.hi {
		return nil, false
	}
	k := s.make(s.cur)
	s.cur++
	return k, true
}

func (s *rangeSpace) Reset() { s.cur = s.lo }

func (s *rangeSpace) Size() int {
	if s.hi < s.lo {
		return 0
	}
	return s.hi - s.lo + 1
}

// listSpace walks a precomputed list.
type listSpace struct {
	keys []Key
	pos  int
}

func newListSpace(keys []Key) *listSpace { return &listSpace{keys: keys} }

func (s *listSpace) Next() (Key, bool) {
	if s.pos >= len(s.keys) {
		return nil, false
	}
	k := s.keys[s.pos]
	s.pos++
	return k, true
}

func (s *listSpace) Reset() { s.pos = 0 }

func (s *listSpace) Size() int { return len(s.keys) }

// Keys drains a fresh pass over space.
func Keys(space KeySpace) []Key {
	space.Reset()
	var out []Key
	for {
		k, ok := space.Next()
		if !ok {
			break
		}
		out = append(out, k)
	}
	space.Reset()
	return out
}
