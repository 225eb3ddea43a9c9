// internal/dedup/similarity.go
package dedup

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Algorithm selects how two field values are compared.
type Algorithm int

const (
	AlgorithmFuzzy Algorithm = iota
	AlgorithmExact
	AlgorithmPhonetic
	// AlgorithmLevenshtein is the normalized edit-distance fallback used
	// when a request names an algorithm this engine does not know.
	AlgorithmLevenshtein
)

const (
	jaroWinklerBoostThreshold = 0.7
	jaroWinklerPrefixScale    = 0.1
	jaroWinklerMaxPrefix      = 4

	soundexTable = "01230120022455012623010202"
)

func (a Algorithm) String() string {
	switch a {
	case AlgorithmExact:
		return "EXACT"
	case AlgorithmPhonetic:
		return "PHONETIC"
	case AlgorithmLevenshtein:
		return "LEVENSHTEIN"
	default:
		return "FUZZY"
	}
}

func (a Algorithm) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Algorithm) UnmarshalText(text []byte) error {
	*a, _ = ParseAlgorithm(string(text))
	return nil
}

// ParseAlgorithm resolves an algorithm name. An empty name selects FUZZY.
// Unknown names resolve to AlgorithmLevenshtein with ok=false so the caller
// can report the fallback; matching never fails on a bad algorithm name.
func ParseAlgorithm(name string) (alg Algorithm, ok bool) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "", "FUZZY":
		return AlgorithmFuzzy, true
	case "EXACT":
		return AlgorithmExact, true
	case "PHONETIC":
		return AlgorithmPhonetic, true
	case "LEVENSHTEIN":
		return AlgorithmLevenshtein, true
	default:
		return AlgorithmLevenshtein, false
	}
}

// Similarity scores a and b in [0,1] with the given algorithm.
func Similarity(a, b string, alg Algorithm) float64 {
	switch alg {
	case AlgorithmExact:
		return ExactMatch(a, b)
	case AlgorithmFuzzy:
		return JaroWinkler(a, b)
	case AlgorithmPhonetic:
		return SoundexMatch(a, b)
	default:
		return NormalizedLevenshtein(a, b)
	}
}

// ExactMatch returns 1.0 for a case-insensitive match, 0.0 otherwise.
func ExactMatch(a, b string) float64 {
	if strings.EqualFold(a, b) {
		return 1.0
	}
	return 0.0
}

// JaroWinkler returns the Jaro similarity of a and b, boosted for a common
// prefix of up to four characters once the Jaro score reaches 0.7.
func JaroWinkler(a, b string) float64 {
	if a == b {
		return 1.0
	}

	s1, s2 := []rune(a), []rune(b)
	jaro := jaro(s1, s2)
	if jaro < jaroWinklerBoostThreshold {
		return jaro
	}

	prefix := 0
	for i := 0; i < len(s1) && i < len(s2) && i < jaroWinklerMaxPrefix; i++ {
		if s1[i] != s2[i] {
			break
		}
		prefix++
	}

	return jaro + jaroWinklerPrefixScale*float64(prefix)*(1.0-jaro)
}

func jaro(s1, s2 []rune) float64 {
	len1, len2 := len(s1), len(s2)
	if len1 == 0 || len2 == 0 {
		return 0.0
	}

	window := max(len1, len2)/2 - 1
	if window < 0 {
		window = 0
	}

	matched1 := make([]bool, len1)
	matched2 := make([]bool, len2)
	matches := 0

	for i := 0; i < len1; i++ {
		start := max(0, i-window)
		end := min(len2, i+window+1)
		for j := start; j < end; j++ {
			if matched2[j] || s1[i] != s2[j] {
				continue
			}
			matched1[i] = true
			matched2[j] = true
			matches++
			break
		}
	}

	if matches == 0 {
		return 0.0
	}

	transpositions := 0
	k := 0
	for i := 0; i < len1; i++ {
		if !matched1[i] {
			continue
		}
		for !matched2[k] {
			k++
		}
		if s1[i] != s2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	t := float64(transpositions) / 2
	return (m/float64(len1) + m/float64(len2) + (m-t)/m) / 3
}

// Soundex encodes s as a letter followed by three digits. Input is
// uppercased and everything outside A-Z is dropped; blank input encodes
// as "0000".
func Soundex(s string) string {
	letters := make([]byte, 0, len(s))
	for _, r := range strings.ToUpper(s) {
		if r >= 'A' && r <= 'Z' {
			letters = append(letters, byte(r))
		}
	}
	if len(letters) == 0 {
		return "0000"
	}

	code := make([]byte, 1, 4)
	code[0] = letters[0]
	prev := soundexTable[letters[0]-'A']

	for _, c := range letters[1:] {
		if len(code) == 4 {
			break
		}
		digit := soundexTable[c-'A']
		if digit != '0' && digit != prev {
			code = append(code, digit)
		}
		prev = digit
	}

	for len(code) < 4 {
		code = append(code, '0')
	}
	return string(code)
}

// SoundexMatch returns 1.0 when both inputs share a Soundex code.
func SoundexMatch(a, b string) float64 {
	if Soundex(a) == Soundex(b) {
		return 1.0
	}
	return 0.0
}

// NormalizedLevenshtein returns 1 - distance/maxLen, with lengths in runes.
func NormalizedLevenshtein(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1.0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1.0 - float64(distance)/float64(maxLen)
}
