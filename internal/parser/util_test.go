package parser

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  string
		valid bool
	}{
		{"10,000.00", "10000.00", true},
		{"(5,000.00)", "-5000.00", true},
		{"(2,130.664)", "-2130.664", true},
		{"2,50,000.00", "250000.00", true},
		{"23.4671", "23.4671", true},
		{"299985", "299985", true},
		{"-5.00", "-5.00", true},
		{" 0.50 ", "0.50", true},
		{"", "", false},
		{"Purchase", "", false},
		{"12-Jan-2024", "", false},
		{"()", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := ParseNumber(tt.input)
			assert.Equal(t, tt.valid, got.Valid)
			if tt.valid {
				want := decimal.RequireFromString(tt.want)
				assert.True(t, want.Equal(got.Decimal), "got %s, want %s", got.Decimal, want)
			}
		})
	}
}

func TestIsAmountToken(t *testing.T) {
	assert.True(t, isAmountToken("10,740.804"))
	assert.True(t, isAmountToken("(45.455)"))
	assert.False(t, isAmountToken("12"))
	assert.False(t, isAmountToken("STT"))
}

func TestSplitNumericFields(t *testing.T) {
	numbers, desc := splitNumericFields("299985 23.3062 12871.468 Purchase", maxColumns)
	assert.Equal(t, []string{"299985", "23.3062", "12871.468"}, numbers)
	assert.Equal(t, "Purchase", desc)

	numbers, desc = splitNumericFields("Purchase - via Internet 1,000.00 50.00 20.000 30.000", maxColumns)
	assert.Equal(t, []string{"1,000.00", "50.00", "20.000", "30.000"}, numbers)
	assert.Equal(t, "Purchase - via Internet", desc)

	numbers, desc = splitNumericFields("5,000.00 105.00 47.619 *SIP Instalment 12", maxColumns)
	assert.Equal(t, []string{"5,000.00", "105.00", "47.619"}, numbers)
	assert.Equal(t, "*SIP Instalment 12", desc)

	numbers, desc = splitNumericFields("1.00 2.00 3.00 Purchase 4.00 5.00", maxColumns)
	assert.Equal(t, []string{"1.00", "2.00", "3.00", "5.00"}, numbers)
	assert.Equal(t, "Purchase 4.00", desc)
}

func TestMaskPAN(t *testing.T) {
	assert.Equal(t, "XXXXXX234F", maskPAN("ABCDE1234F"))
	assert.Equal(t, "", maskPAN(""))
	assert.Equal(t, "XXX", maskPAN("ABC"))
}

func TestIsBoilerplate(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"Page 3 of 12", true},
		{"Date Transaction Amount (INR) Units NAV (INR) Unit Balance", true},
		{"Consolidated Account Statement", true},
		{"*Switch-Out - To ABSL Small Cap Fund Growth", false},
		{"less STT", false},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, isBoilerplate(tt.line))
		})
	}
}
