package catalog

import (
	"strings"
)

// Common brand aliases seen in user messages.
var brandVariants = map[string]string{
	"vw":            "volkswagen",
	"volkswagen":    "volkswagen",
	"mercedes":      "mercedes benz",
	"mercedes benz": "mercedes benz",
	"mercedes-benz": "mercedes benz",
	"chev":          "chevrolet",
	"chevrolet":     "chevrolet",
	"landrover":     "land rover",
	"land rover":    "land rover",
}

var accentReplacer = strings.NewReplacer(
	"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n",
)

// NormalizeText lowercases, strips accents, and collapses whitespace.
func NormalizeText(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = accentReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

// NormalizeBrand maps a user-typed brand to its canonical form.
func NormalizeBrand(brand string) string {
	n := NormalizeText(brand)
	if n == "" {
		return ""
	}
	if canonical, ok := brandVariants[n]; ok {
		return canonical
	}
	if match, score := closestMatch(n, keys(brandVariants)); score >= 70 {
		return brandVariants[match]
	}
	return n
}

// FindSimilar returns the candidate most similar to value, or "" when no
// candidate scores at or above threshold (0-100 scale).
func FindSimilar(value string, candidates []string, threshold int) string {
	n := NormalizeText(value)
	if n == "" || len(candidates) == 0 {
		return ""
	}
	for _, c := range candidates {
		if NormalizeText(c) == n {
			return c
		}
	}
	if match, score := closestMatch(n, candidates); score >= threshold {
		return match
	}
	return ""
}

func closestMatch(value string, candidates []string) (string, int) {
	best, bestScore := "", -1
	for _, c := range candidates {
		score := similarity(value, NormalizeText(c))
		if score > bestScore {
			best, bestScore = c, score
		}
	}
	return best, bestScore
}

// similarity is a 0-100 ratio based on edit distance.
func similarity(a, b string) int {
	if a == b {
		return 100
	}
	la, lb := len([]rune(a)), len([]rune(b))
	if la == 0 || lb == 0 {
		return 0
	}
	d := editDistance([]rune(a), []rune(b))
	longer := la
	if lb > longer {
		longer = lb
	}
	return (longer - d) * 100 / longer
}

func editDistance(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min3(curr[j-1]+1, prev[j]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
