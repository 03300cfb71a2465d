package timestatus

import (
	"regexp"
	"strings"
)

// RankUnrecognized is the rank of a category no rule matches.
const RankUnrecognized = 9

// CategoryRule assigns Rank when the digits of a label start with
// DigitPrefix, or when the upper-cased label contains Contains.
type CategoryRule struct {
	DigitPrefix string `yaml:"digit_prefix"`
	Contains    string `yaml:"contains"`
	Rank        int    `yaml:"rank"`
}

// Ranker maps container labels to sort classes. Rules are tried in order.
type Ranker struct {
	Rules []CategoryRule
}

// DefaultRanker orders 20ft, then 40ft, then LCL, then everything else.
func DefaultRanker() Ranker {
	return Ranker{Rules: []CategoryRule{
		{DigitPrefix: "20", Rank: 1},
		{DigitPrefix: "40", Rank: 2},
		{Contains: "LCL", Rank: 3},
	}}
}

var nonDigit = regexp.MustCompile(`[^0-9]`)

// Rank returns the sort class of label; lower sorts first.
func (r Ranker) Rank(label string) int {
	s := strings.ToUpper(strings.TrimSpace(label))
	digits := nonDigit.ReplaceAllString(s, "")
	for _, rule := range r.Rules {
		if rule.DigitPrefix != "" && strings.HasPrefix(digits, rule.DigitPrefix) {
			return rule.Rank
		}
		if rule.Contains != "" && strings.Contains(s, strings.ToUpper(rule.Contains)) {
			return rule.Rank
		}
	}
	return RankUnrecognized
}
