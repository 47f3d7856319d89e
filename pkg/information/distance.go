package information

// damerauLevenshtein returns the optimal string alignment distance between a
// and b: insertions, deletions, substitutions and adjacent transpositions.
func damerauLevenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)

	if len(ra) == 0 {
		return len(rb)
	}

	if len(rb) == 0 {
		return len(ra)
	}

	matrix := make([][]int, len(ra)+1)
	for i := range matrix {
		matrix[i] = make([]int, len(rb)+1)
		matrix[i][0] = i
	}

	for j := range matrix[0] {
		matrix[0][j] = j
	}

	for i := 1; i <= len(ra); i++ {
		for j := 1; j <= len(rb); j++ {
			cost := 0
			if ra[i-1] != rb[j-1] {
				cost = 1
			}

			matrix[i][j] = min(
				matrix[i-1][j]+1,      // deletion
				matrix[i][j-1]+1,      // insertion
				matrix[i-1][j-1]+cost, // substitution
			)

			if i > 1 && j > 1 && ra[i-1] == rb[j-2] && ra[i-2] == rb[j-1] {
				matrix[i][j] = min(matrix[i][j], matrix[i-2][j-2]+1) // transposition
			}
		}
	}

	return matrix[len(ra)][len(rb)]
}

// closest returns the candidate nearest to value within maxDistance. An exact
// match returns false since there is nothing to suggest.
func closest(value string, candidates []string, maxDistance int) (string, bool) {
	best, bestDistance := "", maxDistance+1

	for _, candidate := range candidates {
		distance := damerauLevenshtein(value, candidate)
		if distance == 0 {
			return "", false
		}

		if distance < bestDistance {
			best, bestDistance = candidate, distance
		}
	}

	return best, best != ""
}
