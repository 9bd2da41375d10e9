package converters

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Your price £12.50 + VAT", "12.5"},
		{"£1,212.50 inc VAT", "1212.5"},
		{"€3.99 ex. VAT", "3.99"},
		{"12", "12"},
		{"  7.05 ", "7.05"},
		{"$0.99", "0.99"},
		{"Price: £10,000", "10000"},
		{"Pack of 10 £12.50 + VAT", "12.5"},
		{"Was £15.00 Now £12.50 + VAT", "12.5"},
		{"RRP: 19.99 £12.50", "12.5"},
		{"£12.50 (£15.00 inc VAT)", "12.5"},
		{"-£3.00", "-3"},
		{"£-3.00", "-3"},
		{"−£3.00", "-3"},
		{"-4.20", "-4.2"},
		{"Box of 12", "12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePrice(tt.in)
			require.NoError(t, err)
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestParsePrice_ExactDecimal(t *testing.T) {
	got, err := ParsePrice("Your price £12.50 + VAT")
	require.NoError(t, err)
	assert.Equal(t, "12.50", got.StringFixed(2))
}

func TestParsePrice_NoNumber(t *testing.T) {
	_, err := ParsePrice("Call for price + VAT")
	assert.ErrorIs(t, err, ErrNoNumber)
}

func TestParseQuantity(t *testing.T) {
	n, err := ParseQuantity("In stock (1,024 available)")
	require.NoError(t, err)
	assert.Equal(t, 1024, n)

	_, err = ParseQuantity("In stock")
	assert.ErrorIs(t, err, ErrNoNumber)
}

func TestTaxSuffix(t *testing.T) {
	assert.Equal(t, "+ VAT", TaxSuffix("Your price £12.50 + VAT"))
	assert.Equal(t, "inc VAT", TaxSuffix("£4.99 inc VAT"))
	assert.Equal(t, "", TaxSuffix("£4.99"))
}
