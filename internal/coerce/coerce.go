// Package coerce converts loosely typed spreadsheet cells into numbers and
// canonical dates. Every conversion is total: bad input degrades to a safe
// default instead of failing.
package coerce

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
	"golang.org/x/text/unicode/norm"
)

var (
	canonicalDate = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dashPrefix    = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	dotPrefix     = regexp.MustCompile(`^(\d{4})\.\s*(\d{1,2})\.\s*(\d{1,2})`)
	slashPrefix   = regexp.MustCompile(`^(\d{4})/(\d{1,2})/(\d{1,2})`)
	monthDay      = regexp.MustCompile(`^(\d{1,2})/(\d{1,2})$`)
	nonNumeric    = regexp.MustCompile(`[^\d.\-]`)
)

// Norm trims a cell and drops carriage returns.
func Norm(cell string) string {
	return strings.TrimSpace(strings.ReplaceAll(cell, "\r", ""))
}

// ToNumber reads "1,234", "  12.5 EA", "-3" and the like. Blank or
// unparseable cells are 0.
func ToNumber(cell string) float64 {
	s := strings.ReplaceAll(cell, ",", "")
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return 0
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return n
}

// IsCanonicalDate reports whether s is shaped YYYY-MM-DD.
func IsCanonicalDate(s string) bool {
	return canonicalDate.MatchString(s)
}

// ToCanonicalDate rewrites the date spellings seen in the feeds as
// YYYY-MM-DD. A bare M/D is placed in currentYear. Anything unrecognized is
// returned trimmed and unchanged, so callers must check IsCanonicalDate.
func ToCanonicalDate(cell string, currentYear int) string {
	s := Norm(cell)
	if s == "" || IsCanonicalDate(s) {
		return s
	}

	for _, re := range []*regexp.Regexp{dashPrefix, dotPrefix, slashPrefix} {
		if m := re.FindStringSubmatch(s); m != nil {
			return join(m[1], m[2], m[3])
		}
	}

	if m := monthDay.FindStringSubmatch(s); m != nil {
		return join(fmt.Sprintf("%04d", currentYear), m[1], m[2])
	}
	return s
}

func join(year, month, day string) string {
	return year + "-" + pad2(month) + "-" + pad2(day)
}

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

// ContainsAny reports whether cell contains one of words. Both sides are NFC
// normalized and compared case-insensitively, so a header exported as
// decomposed Hangul still matches.
func ContainsAny(cell string, words []string) bool {
	if cell == "" {
		return false
	}
	haystack := strings.ToLower(norm.NFC.String(cell))
	for _, w := range words {
		w = strings.ToLower(norm.NFC.String(strings.TrimSpace(w)))
		if w != "" && strings.Contains(haystack, w) {
			return true
		}
	}
	return false
}

// ContainsWord is ContainsAny restricted to whole words: a word matches
// only a run of letters and digits in cell, never part of a longer one.
// "Ship Date" contains "date", "2026-02-03 updated" does not.
func ContainsWord(cell string, words []string) bool {
	tokens := wordTokens(cell)
	if len(tokens) == 0 {
		return false
	}
	for _, w := range words {
		want := wordTokens(w)
		if len(want) == 0 {
			continue
		}
		for i := 0; i+len(want) <= len(tokens); i++ {
			if slices.Equal(tokens[i:i+len(want)], want) {
				return true
			}
		}
	}
	return false
}

func wordTokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(norm.NFC.String(s)), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
}

var koPrinter = message.NewPrinter(language.Korean)

// FormatNumber renders n with ko-KR grouping and no fraction digits.
func FormatNumber(n float64) string {
	return koPrinter.Sprint(number.Decimal(n, number.MaxFractionDigits(0)))
}
