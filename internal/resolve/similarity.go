// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package resolve

import "strings"

// Normalize canonicalizes a title for comparison: lowercase, whitespace
// runs collapsed to single spaces, ends trimmed. Empty input yields "".
// Idempotent.
func Normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Similarity scores two titles in [0, 1] using the Ratcliff/Obershelp
// sequence ratio over the normalized strings: 2*M/T where M is the total
// length of the longest matching blocks found recursively and T the
// combined length. Long contiguous matches dominate, which suits
// conference titles that differ mostly in formatting and punctuation.
// Returns 0 when either input normalizes to empty. Symmetric in practice.
func Similarity(a, b string) float64 {
	na, nb := Normalize(a), Normalize(b)
	if na == "" || nb == "" {
		return 0
	}
	ra, rb := []rune(na), []rune(nb)
	matched := matchedRunes(ra, rb)
	return 2 * float64(matched) / float64(len(ra)+len(rb))
}

type block struct {
	a, b, size int
}

// matchedRunes sums the sizes of all matching blocks between a and b.
// Blocks are found by repeatedly taking the longest common run and
// recursing into the pieces to its left and right.
func matchedRunes(a, b []rune) int {
	b2j := make(map[rune][]int, len(b))
	for j, r := range b {
		b2j[r] = append(b2j[r], j)
	}

	type span struct {
		alo, ahi, blo, bhi int
	}
	stack := []span{{0, len(a), 0, len(b)}}

	total := 0
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		m := longestMatch(a, s.alo, s.ahi, s.blo, s.bhi, b2j)
		if m.size == 0 {
			continue
		}
		total += m.size
		stack = append(stack,
			span{s.alo, m.a, s.blo, m.b},
			span{m.a + m.size, s.ahi, m.b + m.size, s.bhi},
		)
	}
	return total
}

// longestMatch finds the longest run of runes common to a[alo:ahi] and
// b[blo:bhi]. Of equally long runs, the one starting earliest in a (then
// earliest in b) wins, keeping the result deterministic.
func longestMatch(a []rune, alo, ahi, blo, bhi int, b2j map[rune][]int) block {
	best := block{a: alo, b: blo}
	j2len := make(map[int]int)
	for i := alo; i < ahi; i++ {
		next := make(map[int]int)
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			next[j] = k
			if k > best.size {
				best = block{a: i - k + 1, b: j - k + 1, size: k}
			}
		}
		j2len = next
	}
	return best
}
