package reconcile

// Pair é uma linha observada e o esperado que ela consumiu
type Pair[E any] struct {
	Row      Row
	Expected E
}

// Greedy casa cada linha com o primeiro esperado ainda livre cuja chave bate.
// Um esperado nunca é usado por duas linhas.
func Greedy[E any](rows []Row, pool []E, match func(Row, E) bool) (pairs []Pair[E], unmatched []Row, leftover []E) {
	remaining := make([]E, len(pool))
	copy(remaining, pool)

	for _, row := range rows {
		found := -1
		for i, e := range remaining {
			if match(row, e) {
				found = i
				break
			}
		}
		if found < 0 {
			unmatched = append(unmatched, row)
			continue
		}
		pairs = append(pairs, Pair[E]{Row: row, Expected: remaining[found]})
		remaining = append(remaining[:found], remaining[found+1:]...)
	}
	return pairs, unmatched, remaining
}
