// Package persian provides Persian text helpers: localized digits and
// normalization of Arabic code points that commonly leak into OCR output.
package persian

import (
	"strconv"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	persianZero = '۰' // U+06F0
	arabicZero  = '٠' // U+0660
)

// toPersianDigits maps ASCII and Arabic-Indic digits to Extended
// Arabic-Indic (Persian) digits.
var toPersianDigits = runes.Map(func(r rune) rune {
	switch {
	case r >= '0' && r <= '9':
		return persianZero + (r - '0')
	case r >= arabicZero && r <= arabicZero+9:
		return persianZero + (r - arabicZero)
	default:
		return r
	}
})

// toPersianLetters replaces Arabic yeh and kaf with their Persian forms.
var toPersianLetters = runes.Map(func(r rune) rune {
	switch r {
	case 'ي', 'ى': // U+064A, U+0649
		return 'ی'
	case 'ك': // U+0643
		return 'ک'
	default:
		return r
	}
})

// dropTatweel removes the kashida used for justification.
var dropTatweel = runes.Remove(runes.Predicate(func(r rune) bool {
	return r == 'ـ' // U+0640
}))

// Digits converts every digit in s to a Persian digit.
func Digits(s string) string {
	out, _, err := transform.String(toPersianDigits, s)
	if err != nil {
		return s
	}
	return out
}

// Number formats n with Persian digits.
func Number(n int) string {
	return Digits(strconv.Itoa(n))
}

// Normalize prepares text for storage and comparison: NFC composition,
// Persian letter forms, Persian digits and no tatweel.
func Normalize(s string) string {
	t := transform.Chain(norm.NFC, toPersianLetters, toPersianDigits, dropTatweel)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// IsBlank reports whether s holds nothing but whitespace and zero-width
// joiners.
func IsBlank(s string) bool {
	for _, r := range s {
		if !unicode.IsSpace(r) && r != '\u200c' && r != '\u200d' {
			return false
		}
	}
	return true
}
