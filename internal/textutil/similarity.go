package textutil

// Similarity returns the Ratcliff/Obershelp ratio of a and b in [0,1]:
// twice the number of matched runes divided by the total rune count.
// Matching blocks are found by recursively taking the longest common
// substring and recursing on both sides of it. Two empty strings are identical.
func Similarity(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1
	}
	return 2 * float64(matchedRunes(ra, rb)) / float64(total)
}

type span struct {
	alo, ahi, blo, bhi int
}

func matchedRunes(a, b []rune) int {
	matched := 0
	stack := []span{{0, len(a), 0, len(b)}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		i, j, k := longestMatch(a, b, s)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			stack = append(stack, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			stack = append(stack, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest common run inside s. Ties go to the run
// starting earliest in a, then earliest in b.
func longestMatch(a, b []rune, s span) (int, int, int) {
	bestI, bestJ, bestK := s.alo, s.blo, 0
	width := s.bhi - s.blo + 1
	prev := make([]int, width)
	cur := make([]int, width)
	for i := s.alo; i < s.ahi; i++ {
		for j := s.blo; j < s.bhi; j++ {
			x := j - s.blo + 1
			if a[i] != b[j] {
				cur[x] = 0
				continue
			}
			cur[x] = prev[x-1] + 1
			if cur[x] > bestK {
				bestK = cur[x]
				bestI = i - bestK + 1
				bestJ = j - bestK + 1
			}
		}
		prev, cur = cur, prev
	}
	return bestI, bestJ, bestK
}
