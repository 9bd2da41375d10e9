package service

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

type ITextService interface {
	CleanName(input string) string
	NameKey(input string) string
	RemoveTags(input string) string
	ReduceToLength(input string, length int) string
	SmartReduceToLength(input string, length int) string
	Keywords(parts ...string) string
}

var (
	tagsRe        = regexp.MustCompile(`<[^>]*>`)
	unimportantRe = regexp.MustCompile(`[(),."'|/\-+&]`)
)

// stopWords are dropped from generated keywords.
var stopWords = map[string]struct{}{
	"and": {}, "the": {}, "with": {}, "for": {}, "of": {},
}

// TextService is safe for concurrent use; a cases.Caser is stateful, so one
// is created per call.
type TextService struct{}

func NewTextService() *TextService {
	return &TextService{}
}

// CleanName strips markup and collapses every run of whitespace to one space.
func (ts *TextService) CleanName(input string) string {
	return strings.Join(strings.Fields(ts.RemoveTags(input)), " ")
}

// NameKey is the case- and whitespace-insensitive form used for duplicate detection.
// NFKC folds compatibility characters (full-width letters, ligatures) first.
func (ts *TextService) NameKey(input string) string {
	cleaned := ts.CleanName(norm.NFKC.String(input))
	return cases.Fold().String(cleaned)
}

func (ts *TextService) RemoveTags(input string) string {
	return tagsRe.ReplaceAllString(html.UnescapeString(input), "")
}

func (ts *TextService) ReduceToLength(input string, length int) string {
	var builder strings.Builder
	words := strings.Fields(input)
	totalLength := 0

	for i, word := range words {
		extra := len(word)
		if i > 0 {
			extra++
		}
		if totalLength+extra > length {
			break
		}

		if i > 0 {
			builder.WriteString(" ")
		}
		builder.WriteString(word)
		totalLength += extra
	}

	return builder.String()
}

func (ts *TextService) SmartReduceToLength(input string, length int) string {
	cleaned := input
	if len(cleaned) > length {
		cleaned = ts.RemoveUnimportantSymbols(input)
	}
	return ts.ReduceToLength(cleaned, length)
}

func (ts *TextService) RemoveUnimportantSymbols(input string) string {
	return unimportantRe.ReplaceAllString(input, "")
}

// Keywords builds a comma separated, de-duplicated, lower-case keyword list
// from the given phrases, in first-seen order.
func (ts *TextService) Keywords(parts ...string) string {
	seen := make(map[string]struct{})
	var out []string

	for _, part := range parts {
		words := strings.FieldsFunc(cases.Fold().String(part), func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		for _, w := range words {
			if len([]rune(w)) < 2 {
				continue
			}
			if _, stop := stopWords[w]; stop {
				continue
			}
			if _, dup := seen[w]; dup {
				continue
			}
			seen[w] = struct{}{}
			out = append(out, w)
		}
	}
	return strings.Join(out, ",")
}
