package domain

import (
	"container/list"
	"encoding/binary"
	"encoding/json"
)

// SkippedKeys caches derived-but-unused message keys so late messages can
// still be decrypted. The cache is bounded at construction: inserting beyond
// the bound evicts the oldest entry first, in O(1). Each key is consumed at
// most once.
//
// Entries are indexed by (header key, counter) because the wire header is
// encrypted: the receiver identifies the chain a late message belongs to by
// which cached header key opens it.
type SkippedKeys struct {
	max int
	ll  *list.List
	idx map[string]*list.Element
}

type skippedEntry struct {
	HK []byte `json:"hk"`
	N  uint32 `json:"n"`
	MK []byte `json:"mk"`
}

// NewSkippedKeys returns an empty cache holding at most max entries.
func NewSkippedKeys(max int) *SkippedKeys {
	return &SkippedKeys{
		max: max,
		ll:  list.New(),
		idx: make(map[string]*list.Element),
	}
}

func skippedIndexKey(hk []byte, n uint32) string {
	b := make([]byte, len(hk)+4)
	copy(b, hk)
	binary.BigEndian.PutUint32(b[len(hk):], n)
	return string(b)
}

// Put stores a message key for (hk, n), evicting the oldest entry if the
// cache is full. Re-inserting an existing pair overwrites in place.
func (s *SkippedKeys) Put(hk []byte, n uint32, mk []byte) {
	k := skippedIndexKey(hk, n)
	if el, ok := s.idx[k]; ok {
		el.Value.(*skippedEntry).MK = append([]byte(nil), mk...)
		return
	}
	if s.ll.Len() >= s.max {
		oldest := s.ll.Front()
		if oldest != nil {
			e := oldest.Value.(*skippedEntry)
			delete(s.idx, skippedIndexKey(e.HK, e.N))
			s.ll.Remove(oldest)
		}
	}
	e := &skippedEntry{
		HK: append([]byte(nil), hk...),
		N:  n,
		MK: append([]byte(nil), mk...),
	}
	s.idx[k] = s.ll.PushBack(e)
}

// Take removes and returns the message key for (hk, n), if cached.
func (s *SkippedKeys) Take(hk []byte, n uint32) ([]byte, bool) {
	k := skippedIndexKey(hk, n)
	el, ok := s.idx[k]
	if !ok {
		return nil, false
	}
	e := el.Value.(*skippedEntry)
	delete(s.idx, k)
	s.ll.Remove(el)
	return e.MK, true
}

// HeaderKeys returns the distinct header keys present, oldest chain first.
// Decryption probes these against an undecryptable header.
func (s *SkippedKeys) HeaderKeys() [][]byte {
	var out [][]byte
	seen := make(map[string]bool)
	for el := s.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*skippedEntry)
		if !seen[string(e.HK)] {
			seen[string(e.HK)] = true
			out = append(out, e.HK)
		}
	}
	return out
}

// Len reports the number of cached keys.
func (s *SkippedKeys) Len() int { return s.ll.Len() }

// Max reports the cache bound.
func (s *SkippedKeys) Max() int { return s.max }

// Clone deep-copies the cache, preserving entry order.
func (s *SkippedKeys) Clone() *SkippedKeys {
	out := NewSkippedKeys(s.max)
	for el := s.ll.Front(); el != nil; el = el.Next() {
		e := el.Value.(*skippedEntry)
		out.Put(e.HK, e.N, e.MK)
	}
	return out
}

type skippedJSON struct {
	Max     int            `json:"max"`
	Entries []skippedEntry `json:"entries"`
}

// MarshalJSON serialises entries oldest-first so order survives a round trip.
func (s *SkippedKeys) MarshalJSON() ([]byte, error) {
	aux := skippedJSON{Max: s.max}
	for el := s.ll.Front(); el != nil; el = el.Next() {
		aux.Entries = append(aux.Entries, *el.Value.(*skippedEntry))
	}
	return json.Marshal(aux)
}

// UnmarshalJSON mirrors MarshalJSON.
func (s *SkippedKeys) UnmarshalJSON(data []byte) error {
	var aux skippedJSON
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = *NewSkippedKeys(aux.Max)
	for _, e := range aux.Entries {
		s.Put(e.HK, e.N, e.MK)
	}
	return nil
}
