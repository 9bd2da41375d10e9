package converters

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

var ErrNoNumber = errors.New("no number in text")

var (
	// taxWordsRe matches tax suffixes such as "+ VAT", "inc. VAT", "ex VAT".
	taxWordsRe = regexp.MustCompile(`(?i)(\+\s*)?\b(inc(l|luding)?\.?|ex(cl|cluding)?\.?)?\s*(vat|tax)\b`)
	// strikeRe matches a crossed-out previous price: "Was £15.00", "RRP: 9.99".
	strikeRe = regexp.MustCompile(`(?i)\b(was|rrp|before)\b\s*:?\s*[-−]?\s*[£$€¥₽]?\s*\d[\d,]*(\.\d+)?`)
	// moneyRe is an amount next to a currency symbol, with an optional sign
	// on either side of the symbol.
	moneyRe = regexp.MustCompile(`([-−]\s*)?[£$€¥₽]\s*([-−]\s*)?(\d[\d,]*(?:\.\d+)?)`)
	// bareRe is a standalone amount; a sign counts only at a word start.
	bareRe   = regexp.MustCompile(`(^|\s)([-−]\s*)?(\d[\d,]*(?:\.\d+)?)`)
	numberRe = regexp.MustCompile(`\d[\d,]*(\.\d+)?`)
	intRe    = regexp.MustCompile(`\d[\d,]*`)
)

// ParsePrice extracts a money amount from supplier price text such as
// "Your price £1,212.50 + VAT". An amount next to a currency symbol wins over
// other numbers ("Pack of 10 £12.50" is 12.50), crossed-out "was" prices are
// ignored and a leading minus is kept.
func ParsePrice(text string) (decimal.Decimal, error) {
	cleaned := taxWordsRe.ReplaceAllString(text, " ")
	cleaned = strikeRe.ReplaceAllString(cleaned, " ")

	if m := moneyRe.FindStringSubmatch(cleaned); m != nil {
		return amount(m[1] != "" || m[2] != "", m[3])
	}
	if m := bareRe.FindStringSubmatch(cleaned); m != nil {
		return amount(m[2] != "", m[3])
	}
	if match := numberRe.FindString(cleaned); match != "" {
		return amount(false, match)
	}
	return decimal.Zero, ErrNoNumber
}

func amount(negative bool, digits string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.ReplaceAll(digits, ",", ""))
	if err != nil {
		return decimal.Zero, err
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// TaxSuffix returns the tax wording of a price text ("+ VAT", "inc VAT"),
// or an empty string.
func TaxSuffix(text string) string {
	return strings.Join(strings.Fields(taxWordsRe.FindString(text)), " ")
}

// ParseQuantity returns the first integer found in free text such as
// "In stock (1,024 available)".
func ParseQuantity(text string) (int, error) {
	match := intRe.FindString(text)
	if match == "" {
		return 0, ErrNoNumber
	}
	return strconv.Atoi(strings.ReplaceAll(match, ",", ""))
}
