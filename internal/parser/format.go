package parser

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// grouping is fixed to English so output never depends on the host locale.
var grouping = message.NewPrinter(language.English)

func formatReward(minRaw, maxRaw string) (string, error) {
	minVal, err := decimal.NewFromString(minRaw)
	if err != nil {
		return "", &MalformedFieldError{Field: FieldReward, Value: minRaw, Err: err}
	}
	maxVal := minVal
	if maxRaw != "" {
		if maxVal, err = decimal.NewFromString(maxRaw); err != nil {
			return "", &MalformedFieldError{Field: FieldReward, Value: maxRaw, Err: err}
		}
	}

	if minVal.Equal(maxVal) {
		return "$" + minVal.String(), nil
	}
	return "$" + minVal.String() + "-$" + maxVal.String(), nil
}

func formatWagered(minRaw, maxRaw, daysRaw string) (string, error) {
	minVal, err := parseGrouped(minRaw)
	if err != nil {
		return "", &MalformedFieldError{Field: FieldWagered, Value: minRaw, Err: err}
	}
	maxVal := minVal
	if maxRaw != "" {
		if maxVal, err = parseGrouped(maxRaw); err != nil {
			return "", &MalformedFieldError{Field: FieldWagered, Value: maxRaw, Err: err}
		}
	}
	days, err := strconv.Atoi(daysRaw)
	if err != nil {
		return "", &MalformedFieldError{Field: FieldWagered, Value: daysRaw, Err: err}
	}

	window := " past " + strconv.Itoa(days) + " days"
	if minVal == maxVal {
		return grouping.Sprintf("$%d", minVal) + window, nil
	}
	return grouping.Sprintf("$%d-$%d", minVal, maxVal) + window, nil
}

func formatClaims(minRaw, maxRaw string) (string, error) {
	minVal, err := strconv.Atoi(minRaw)
	if err != nil {
		return "", &MalformedFieldError{Field: FieldClaims, Value: minRaw, Err: err}
	}
	maxVal := minVal
	if maxRaw != "" {
		if maxVal, err = strconv.Atoi(maxRaw); err != nil {
			return "", &MalformedFieldError{Field: FieldClaims, Value: maxRaw, Err: err}
		}
	}

	if minVal == maxVal {
		return strconv.Itoa(minVal), nil
	}
	return strconv.Itoa(minVal) + "-" + strconv.Itoa(maxVal), nil
}

func formatExpiry(hours int) string {
	if hours == 1 {
		return "1 Hour"
	}
	return strconv.Itoa(hours) + " Hours"
}

// parseGrouped parses an integer written with optional comma separators.
func parseGrouped(s string) (int64, error) {
	return strconv.ParseInt(strings.ReplaceAll(s, ",", ""), 10, 64)
}
