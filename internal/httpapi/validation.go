package httpapi

import (
	"regexp"
	"strings"

	"bonus-drops/internal/models"

	"github.com/shopspring/decimal"
)

var (
	timeUnitPattern = regexp.MustCompile(`(?i)hours?|hrs?|days?|weeks?|months?`)
	numberPattern   = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
)

var (
	maxReward      = decimal.NewFromInt(10_000)
	maxWagered     = decimal.NewFromInt(100_000)
	maxClaims      = decimal.NewFromInt(10_000)
	maxExpiryHours = decimal.NewFromInt(8_760)
)

// leadingNumber returns the first number in a free-form amount such as
// "$2-$30", "$1,000" or "24 Hours". It is zero when there is none.
func leadingNumber(s string) decimal.Decimal {
	s = timeUnitPattern.ReplaceAllString(s, " ")
	s = strings.NewReplacer("$", " ", ",", "").Replace(s)

	m := numberPattern.FindString(s)
	if m == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(m)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// expiryHours reads a duration such as "3 Days" in hours. A bare number
// is already hours; a month counts as 30 days.
func expiryHours(s string) decimal.Decimal {
	n := leadingNumber(s)
	lower := strings.ToLower(s)
	switch {
	case strings.Contains(lower, "day"):
		return n.Mul(decimal.NewFromInt(24))
	case strings.Contains(lower, "week"):
		return n.Mul(decimal.NewFromInt(24 * 7))
	case strings.Contains(lower, "month"):
		return n.Mul(decimal.NewFromInt(24 * 30))
	}
	return n
}

func inRange(d, limit decimal.Decimal) bool {
	return d.IsPositive() && d.LessThanOrEqual(limit)
}

func checkReward(s string) string {
	if !inRange(leadingNumber(s), maxReward) {
		return "rewardAmount must be a positive number up to 10,000"
	}
	return ""
}

func checkWagered(s string) string {
	if !inRange(leadingNumber(s), maxWagered) {
		return "wageredRequirement must be a positive number up to 100,000"
	}
	return ""
}

func checkClaims(s string) string {
	if !inRange(leadingNumber(s).Floor(), maxClaims) {
		return "claimsCount must be a positive integer up to 10,000"
	}
	return ""
}

func checkExpiry(s string) string {
	if !inRange(expiryHours(s), maxExpiryHours) {
		return "expiryDuration must be positive and at most 8760 hours"
	}
	return ""
}

// validateUpdate checks the amounts present in u. ExpiresAt is already a
// time once binding succeeds.
func validateUpdate(u models.BonusCodeUpdate) string {
	checks := []struct {
		value *string
		check func(string) string
	}{
		{u.RewardAmount, checkReward},
		{u.WageredRequirement, checkWagered},
		{u.ClaimsCount, checkClaims},
	}
	for _, c := range checks {
		if c.value == nil {
			continue
		}
		if msg := c.check(*c.value); msg != "" {
			return msg
		}
	}
	return ""
}
