package parser

import (
	"regexp"
	"strings"
)

// Field names one line shape of a bonus drop announcement.
type Field int

const (
	FieldTitle Field = iota
	FieldReward
	FieldWagered
	FieldClaims
	FieldExpiry
	FieldCode
)

var fieldNames = [...]string{
	FieldTitle:   "title",
	FieldReward:  "reward",
	FieldWagered: "wagered",
	FieldClaims:  "claims",
	FieldExpiry:  "expiry",
	FieldCode:    "code",
}

func (f Field) String() string {
	if f < 0 || int(f) >= len(fieldNames) {
		return "unknown"
	}
	return fieldNames[f]
}

type lineMatcher struct {
	field   Field
	pattern *regexp.Regexp
}

// matchers is indexed by Field and never mutated after init.
var matchers = [...]lineMatcher{
	FieldTitle:   {FieldTitle, regexp.MustCompile(`(?i)^(Rainbet\s+(?:Vip\s+)?Bonus)\s*$`)},
	FieldReward:  {FieldReward, regexp.MustCompile(`(?i)^Reward:\s*\$?(\d+(?:\.\d+)?)(?:-\$?(\d+(?:\.\d+)?))?$`)},
	FieldWagered: {FieldWagered, regexp.MustCompile(`(?i)^Wagered:\s*\$?([\d,]+)(?:-\$?([\d,]+))?\s+past\s+(\d+)\s+days$`)},
	FieldClaims:  {FieldClaims, regexp.MustCompile(`(?i)^Claims:\s*(\d+)(?:-(\d+))?$`)},
	FieldExpiry:  {FieldExpiry, regexp.MustCompile(`(?i)^Claimable\s+for\s+(\d+)\s+Hours?$`)},
	FieldCode:    {FieldCode, regexp.MustCompile(`(?i)^Code:\s*([A-Za-z0-9]+(?:\s*/\s*[A-Za-z0-9]+)*)$`)},
}

var codeSeparator = regexp.MustCompile(`\s*/\s*`)

// tryMatch returns the capture groups of line (index 0 is the whole line)
// when it has the matcher's shape. Optional groups that did not take part
// in the match are empty strings.
func (m lineMatcher) tryMatch(line string) ([]string, bool) {
	groups := m.pattern.FindStringSubmatch(line)
	if groups == nil {
		return nil, false
	}
	return groups, true
}

// matchSet holds the first match found for each shape.
type matchSet [len(matchers)][]string

func (s *matchSet) has(f Field) bool {
	return s[f] != nil
}

// scan walks lines once and keeps the first match per shape; later lines of
// an already matched shape are ignored.
func scan(lines []string) *matchSet {
	var set matchSet
	for _, line := range lines {
		for _, m := range matchers {
			if set.has(m.field) {
				continue
			}
			if groups, ok := m.tryMatch(line); ok {
				set[m.field] = groups
			}
		}
	}
	return &set
}

func splitLines(text string) []string {
	raw := strings.Split(text, "\n")
	lines := make([]string, 0, len(raw))
	for _, line := range raw {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func anyLineMatches(lines []string, f Field) bool {
	for _, line := range lines {
		if _, ok := matchers[f].tryMatch(line); ok {
			return true
		}
	}
	return false
}

func splitCodes(list string) []string {
	parts := codeSeparator.Split(list, -1)
	codes := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			codes = append(codes, p)
		}
	}
	return codes
}
