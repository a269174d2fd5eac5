// Package textnorm provides case folding and Cyrillic/Latin phonetic
// transliteration for the keyword matching engine. All functions are pure
// and total: unmapped characters pass through unchanged.
package textnorm

import (
	"strings"
)

// ruToEn maps Russian letters to their Latin phonetic spelling. The
// mapping is lossy: hard and soft signs drop entirely.
var ruToEn = map[rune]string{
	'а': "a", 'б': "b", 'в': "v", 'г': "g", 'д': "d", 'е': "e", 'ё': "yo",
	'ж': "zh", 'з': "z", 'и': "i", 'й': "y", 'к': "k", 'л': "l", 'м': "m",
	'н': "n", 'о': "o", 'п': "p", 'р': "r", 'с': "s", 'т': "t", 'у': "u",
	'ф': "f", 'х': "h", 'ц': "ts", 'ч': "ch", 'ш': "sh", 'щ': "sch", 'ъ': "",
	'ы': "y", 'ь': "", 'э': "e", 'ю': "yu", 'я': "ya",
}

// enToRuDigraphs must be substituted before single letters, longest first,
// so "sch" does not decay into "s"+"ch".
var enToRuDigraphs = []struct {
	en string
	ru string
}{
	{"sch", "щ"},
	{"ch", "ч"},
	{"sh", "ш"},
	{"zh", "ж"},
	{"ts", "ц"},
	{"yu", "ю"},
	{"ya", "я"},
	{"yo", "ё"},
}

var enToRu = map[rune]string{
	'a': "а", 'b': "б", 'c': "к", 'd': "д", 'e': "е", 'f': "ф", 'g': "г",
	'h': "х", 'i': "и", 'j': "дж", 'k': "к", 'l': "л", 'm': "м", 'n': "н",
	'o': "о", 'p': "п", 'q': "к", 'r': "р", 's': "с", 't': "т", 'u': "у",
	'v': "в", 'w': "в", 'x': "кс", 'y': "й", 'z': "з",
}

// Normalize lowercases text unless the rule is case sensitive.
func Normalize(text string, caseSensitive bool) string {
	if caseSensitive {
		return text
	}
	return strings.ToLower(text)
}

// TransliterateRuToEn converts Russian text to its Latin phonetic form.
func TransliterateRuToEn(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if mapped, ok := ruToEn[r]; ok {
			b.WriteString(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TransliterateEnToRu converts Latin text to a Cyrillic phonetic form.
// Digraphs are substituted first so their letters are not mapped twice.
func TransliterateEnToRu(text string) string {
	text = strings.ToLower(text)
	for _, d := range enToRuDigraphs {
		text = strings.ReplaceAll(text, d.en, d.ru)
	}

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if mapped, ok := enToRu[r]; ok {
			b.WriteString(mapped)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
