// Package matcher implements the three keyword matching modes: literal
// substring, glob-style wildcard patterns and fuzzy similarity. Matching
// is exact on short inputs; on long inputs the glob and fuzzy paths switch
// to windowed evaluation, trading completeness for a bounded worst case.
package matcher

import (
	"regexp"
	"strings"
)

// Mode selects a matching strategy. Modes are independently toggleable on
// a rule; any positive mode wins.
type Mode int

const (
	ModeSubstring Mode = iota
	ModeGlob
	ModeFuzzy
)

const (
	// DefaultFuzzyThreshold is the similarity ratio required for a fuzzy hit.
	DefaultFuzzyThreshold = 0.9

	// Inputs longer than this (in runes) take the windowed long-input paths.
	longInputRunes = 256

	// Hard cap for the edit-distance kernel. Candidate windows are sized from
	// the phrase so this only guards against degenerate direct calls.
	maxDistanceRunes = 4096
)

// Match reports whether text matches phrase under the given mode, using
// the default fuzzy threshold. Text and phrase are expected to be already
// case-normalized by the caller.
func Match(text, phrase string, mode Mode) bool {
	switch mode {
	case ModeSubstring:
		return strings.Contains(text, phrase)
	case ModeGlob:
		return MatchGlob(text, phrase)
	case ModeFuzzy:
		return MatchFuzzy(text, phrase, DefaultFuzzyThreshold)
	default:
		return false
	}
}

// MatchGlob matches text against a wildcard pattern where '*' is any run
// of characters and '?' is exactly one character. Short inputs get a full
// anchored evaluation. Long inputs special-case prefix-only, suffix-only
// and contains-only patterns, and otherwise scan overlapping windows with
// an unanchored pattern, which can over-match across pathological inputs.
func MatchGlob(text, pattern string) bool {
	if pattern == "" {
		return text == ""
	}

	textRunes := []rune(text)
	if len(textRunes) <= longInputRunes {
		re, err := regexp.Compile("(?s)^" + globToRegexp(pattern) + "$")
		if err != nil {
			return false
		}
		return re.MatchString(text)
	}

	core := strings.Trim(pattern, "*")
	if !strings.ContainsAny(core, "*?") {
		leading := strings.HasPrefix(pattern, "*")
		trailing := strings.HasSuffix(pattern, "*")
		switch {
		case leading && trailing:
			return strings.Contains(text, core)
		case trailing:
			return strings.HasPrefix(text, core)
		case leading:
			return strings.HasSuffix(text, core)
		}
	}

	re, err := regexp.Compile("(?s)" + globToRegexp(core))
	if err != nil {
		return false
	}

	// Window size and overlap scale with the pattern so a match cannot
	// straddle more than one chunk boundary.
	patLen := len([]rune(core))
	chunk := 4 * patLen
	if chunk < 512 {
		chunk = 512
	}
	overlap := patLen
	if overlap < 32 {
		overlap = 32
	}

	for start := 0; start < len(textRunes); start += chunk - overlap {
		end := start + chunk
		if end > len(textRunes) {
			end = len(textRunes)
		}
		if re.MatchString(string(textRunes[start:end])) {
			return true
		}
		if end == len(textRunes) {
			break
		}
	}
	return false
}

// globToRegexp translates a wildcard pattern into an unanchored regexp
// fragment: '*' becomes '.*', '?' becomes '.', everything else is quoted.
func globToRegexp(pattern string) string {
	var b strings.Builder
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	return b.String()
}

// MatchFuzzy reports whether any region of text is similar to phrase at or
// above threshold. Short inputs are scanned exhaustively over substrings
// within ±20% of the phrase length, which is exact. Long inputs use a
// tiered cascade (containment, word/n-gram scan, multi-word alignment,
// windowed scan) that is a documented approximation: naive all-substring
// scanning is quadratic and unacceptable there.
func MatchFuzzy(text, phrase string, threshold float64) bool {
	if phrase == "" {
		return false
	}
	if text == phrase {
		return true
	}

	textRunes := []rune(text)
	phraseRunes := []rune(phrase)

	if len(textRunes) <= longInputRunes {
		return scanSubstrings(textRunes, phraseRunes, threshold)
	}

	// Tier 1: direct containment short-circuit.
	if strings.Contains(text, phrase) {
		return true
	}

	words := strings.Fields(text)

	// Tier 2: single words and small n-grams against the phrase.
	if matchWords(words, phrase, threshold) {
		return true
	}

	// Tier 3: sequence-of-words alignment for multi-word phrases.
	phraseWords := strings.Fields(phrase)
	if len(phraseWords) > 1 && alignWordWindows(words, phraseWords, phrase, threshold) {
		return true
	}

	// Tier 4: windowed scan as last resort.
	return scanWindows(textRunes, phraseRunes, threshold)
}

// Similarity is the normalized edit-distance ratio between two strings,
// 1.0 for identical, 0.0 for maximally distant.
func Similarity(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	maxLen := len(ar)
	if len(br) > maxLen {
		maxLen = len(br)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(ar, br))/float64(maxLen)
}

// scanSubstrings exhaustively compares phrase to every substring of text
// whose length is within ±20% of the phrase length.
func scanSubstrings(text, phrase []rune, threshold float64) bool {
	minLen := len(phrase) * 8 / 10
	if minLen < 1 {
		minLen = 1
	}
	maxLen := len(phrase)*12/10 + 1

	for length := minLen; length <= maxLen; length++ {
		if length > len(text) {
			break
		}
		for start := 0; start+length <= len(text); start++ {
			window := text[start : start+length]
			if similarityRunes(window, phrase) >= threshold {
				return true
			}
		}
	}
	return false
}

// matchWords compares phrase against individual whitespace tokens and
// against 2- and 3-grams of adjacent tokens.
func matchWords(words []string, phrase string, threshold float64) bool {
	phraseRunes := []rune(phrase)
	for _, w := range words {
		if similarityRunes([]rune(w), phraseRunes) >= threshold {
			return true
		}
	}
	for n := 2; n <= 3; n++ {
		for i := 0; i+n <= len(words); i++ {
			gram := strings.Join(words[i:i+n], " ")
			if similarityRunes([]rune(gram), phraseRunes) >= threshold {
				return true
			}
		}
	}
	return false
}

// alignWordWindows slides a window of len(phraseWords) tokens over the
// text and accepts when at most ~30% of aligned words mismatch and the
// joined window clears an adjusted whole-window threshold. The threshold
// tightens for longer phrases and loosens for very short ones.
func alignWordWindows(words, phraseWords []string, phrase string, threshold float64) bool {
	n := len(phraseWords)
	if len(words) < n {
		return false
	}

	adjusted := adjustThreshold(threshold, len([]rune(phrase)))
	maxMismatches := n * 3 / 10
	phraseRunes := []rune(phrase)

	phraseWordRunes := make([][]rune, n)
	for i, pw := range phraseWords {
		phraseWordRunes[i] = []rune(pw)
	}

	for start := 0; start+n <= len(words); start++ {
		mismatches := 0
		for j := 0; j < n; j++ {
			if similarityRunes([]rune(words[start+j]), phraseWordRunes[j]) < threshold {
				mismatches++
				if mismatches > maxMismatches {
					break
				}
			}
		}
		if mismatches > maxMismatches {
			continue
		}
		window := strings.Join(words[start:start+n], " ")
		if similarityRunes([]rune(window), phraseRunes) >= adjusted {
			return true
		}
	}
	return false
}

// adjustThreshold derives the whole-window acceptance ratio from the base
// threshold and the phrase length.
func adjustThreshold(threshold float64, phraseLen int) float64 {
	switch {
	case phraseLen <= 6:
		threshold -= 0.10
	case phraseLen >= 24:
		threshold += 0.03
	}
	if threshold > 0.98 {
		threshold = 0.98
	}
	if threshold < 0.5 {
		threshold = 0.5
	}
	return threshold
}

// scanWindows compares phrase against overlapping fixed-size windows of
// the text, stepping by half the phrase length.
func scanWindows(text, phrase []rune, threshold float64) bool {
	window := len(phrase) * 12 / 10
	if window < 1 {
		window = 1
	}
	step := len(phrase) / 2
	if step < 1 {
		step = 1
	}

	for start := 0; start < len(text); start += step {
		end := start + window
		if end > len(text) {
			end = len(text)
		}
		if similarityRunes(text[start:end], phrase) >= threshold {
			return true
		}
		if end == len(text) {
			break
		}
	}
	return false
}

func similarityRunes(a, b []rune) float64 {
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}

// levenshtein computes edit distance with two rows of O(min(m,n)) memory.
func levenshtein(s1, s2 []rune) int {
	m, n := len(s1), len(s2)
	if m == 0 {
		return n
	}
	if n == 0 {
		return m
	}

	// Degenerate inputs are treated as maximally distant rather than
	// burning quadratic time on them.
	if m > maxDistanceRunes || n > maxDistanceRunes {
		if m > n {
			return m
		}
		return n
	}

	if n > m {
		s1, s2 = s2, s1
		m, n = n, m
	}

	prev := make([]int, n+1)
	curr := make([]int, n+1)
	for j := 0; j <= n; j++ {
		prev[j] = j
	}

	for i := 1; i <= m; i++ {
		curr[0] = i
		c1 := s1[i-1]
		for j := 1; j <= n; j++ {
			cost := 1
			if c1 == s2[j-1] {
				cost = 0
			}
			deletion := prev[j] + 1
			insertion := curr[j-1] + 1
			subst := prev[j-1] + cost
			best := deletion
			if insertion < best {
				best = insertion
			}
			if subst < best {
				best = subst
			}
			curr[j] = best
		}
		prev, curr = curr, prev
	}
	return prev[n]
}
