package normalize

import (
	"regexp"
	"strconv"
	"strings"

	"inventory-scrapers/internal/inventory"

	"github.com/shopspring/decimal"
)

var fractionGlyphs = strings.NewReplacer(
	"½", " 1/2",
	"¼", " 1/4",
	"¾", " 3/4",
	"⅛", " 1/8",
	"⅜", " 3/8",
	"⅝", " 5/8",
	"⅞", " 7/8",
	"⅓", " 1/3",
	"⅔", " 2/3",
	"⁄", "/",
)

// mixed fraction first so "10 3/4" is not read as "10"
var measurementRegex = regexp.MustCompile(`(?:(\d+)[\s-]+)?(\d+)\s*/\s*(\d+)|(\d+(?:\.\d+)?|\.\d+)`)

var cmPerInch = decimal.RequireFromString("0.393700787")

// ParseMeasurement reads the first whole, decimal or (mixed) fraction number
// in text, rounded half-up to two places. It returns a null decimal when
// text holds no number, and a MeasurementParseError for a zero denominator
// or a fraction that is not proper ("27 / 30" is a size pair, not 0.9).
func ParseMeasurement(text string) (decimal.NullDecimal, error) {
	cleaned := fractionGlyphs.Replace(text)
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	match := measurementRegex.FindStringSubmatch(cleaned)
	if match == nil {
		return decimal.NullDecimal{}, nil
	}

	if match[4] != "" {
		value, err := decimal.NewFromString(match[4])
		if err != nil {
			return decimal.NullDecimal{}, &inventory.MeasurementParseError{Input: text, Reason: err.Error()}
		}
		return decimal.NewNullDecimal(value.Round(2)), nil
	}

	numerator, _ := strconv.ParseInt(match[2], 10, 64)
	denominator, _ := strconv.ParseInt(match[3], 10, 64)
	if denominator == 0 {
		return decimal.NullDecimal{}, &inventory.MeasurementParseError{Input: text, Reason: "zero denominator"}
	}
	if numerator >= denominator {
		return decimal.NullDecimal{}, &inventory.MeasurementParseError{Input: text, Reason: "improper fraction"}
	}
	value := decimal.NewFromInt(numerator).DivRound(decimal.NewFromInt(denominator), 8)
	if match[1] != "" {
		whole, _ := strconv.ParseInt(match[1], 10, 64)
		value = value.Add(decimal.NewFromInt(whole))
	}
	return decimal.NewNullDecimal(value.Round(2)), nil
}

// CmToInches converts centimeters to inches, rounded half-up to two places.
func CmToInches(value decimal.Decimal) decimal.Decimal {
	return value.Mul(cmPerInch).Round(2)
}

var cmRegex = regexp.MustCompile(`(?i)\d\s*cm\b|centimet`)

// ParseLength is ParseMeasurement that converts values written in
// centimeters ("27 cm") to inches.
func ParseLength(text string) (decimal.NullDecimal, error) {
	value, err := ParseMeasurement(text)
	if err != nil || !value.Valid {
		return value, err
	}
	if cmRegex.MatchString(text) {
		return decimal.NewNullDecimal(CmToInches(value.Decimal)), nil
	}
	return value, nil
}
