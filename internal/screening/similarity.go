// Package screening implements duplicate and similar-record detection for
// patient intake. It scores incoming submissions against a bounded window of
// recently created records and emits typed warnings for the caller to act on.
package screening

// Similarity returns a score in [0, 1] describing how likely a and b denote
// the same token despite typos, transpositions, or truncation. Equal strings
// score exactly 1.0; if exactly one string is empty the score is 0.0.
// Comparison is case-sensitive; callers lowercase first when they want
// case-insensitive behavior.
//
// The score is the Jaro similarity of the two strings plus the Winkler
// common-prefix bonus, which rewards shared leading characters (names are
// rarely misspelled at the start). Up to four prefix characters count.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	jaro := jaroScore(a, b)
	if jaro == 0 {
		return 0.0
	}

	prefix := 0
	for prefix < len(a) && prefix < len(b) && prefix < 4 {
		if a[prefix] != b[prefix] {
			break
		}
		prefix++
	}

	return jaro + float64(prefix)*0.1*(1.0-jaro)
}

func jaroScore(a, b string) float64 {
	lenA, lenB := len(a), len(b)

	matchDistance := max(lenA, lenB)/2 - 1
	if matchDistance < 0 {
		return 0.0
	}

	matchedA := make([]bool, lenA)
	matchedB := make([]bool, lenB)

	matches := 0
	for i := 0; i < lenA; i++ {
		start := i - matchDistance
		if start < 0 {
			start = 0
		}
		end := i + matchDistance + 1
		if end > lenB {
			end = lenB
		}

		for j := start; j < end; j++ {
			if matchedB[j] || a[i] != b[j] {
				continue
			}
			matchedA[i] = true
			matchedB[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	// Walk the matched characters of both strings in original order and count
	// positions where they disagree; each pair out of relative order
	// contributes two to this count, hence the halving below.
	transpositions := 0
	k := 0
	for i := 0; i < lenA; i++ {
		if !matchedA[i] {
			continue
		}
		for !matchedB[k] {
			k++
		}
		if a[i] != b[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	return (m/float64(lenA) + m/float64(lenB) + (m-float64(transpositions)/2.0)/m) / 3.0
}
