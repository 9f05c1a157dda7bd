package services

import "github.com/tbourn/veil-backend/internal/nickname"

// Pairing is one proposed match with the nicknames for its slots.
type Pairing struct {
	A, B         string
	NickA, NickB string
}

// PairResult is the outcome of Pair.
type PairResult struct {
	Pairs    []Pairing
	Unpaired []string
}

// Pair walks candidates in the given order and pairs neighbours: the 1st with
// the 2nd, the 3rd with the 4th and so on. An odd leftover ends up in
// Unpaired. Empty ids and repeats are dropped first, so an id is never paired
// with itself or placed in two pairs.
//
// Candidates must already be ordered by a stable key; Pair does not sort.
func Pair(candidates []string, date string) PairResult {
	seen := make(map[string]struct{}, len(candidates))
	ids := make([]string, 0, len(candidates))
	for _, id := range candidates {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}

	res := PairResult{Pairs: make([]Pairing, 0, len(ids)/2)}
	for i := 0; i+1 < len(ids); i += 2 {
		a, b := ids[i], ids[i+1]
		res.Pairs = append(res.Pairs, Pairing{
			A:     a,
			B:     b,
			NickA: nickname.For(a, date),
			NickB: nickname.For(b, date),
		})
	}
	if len(ids)%2 == 1 {
		res.Unpaired = []string{ids[len(ids)-1]}
	}
	return res
}
