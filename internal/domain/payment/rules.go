package payment

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/shopspring/decimal"
)

const numeral = `[0-9]+\.?[0-9]*`

var (
	numeralPattern = regexp.MustCompile(numeral)

	// Fallback candidates must fall strictly inside this band.
	plausibleFloor   = decimal.RequireFromString("0.01")
	plausibleCeiling = decimal.RequireFromString("999999.99")
)

// AmountRule captures an amount with Group of Pattern.
type AmountRule struct {
	Name    string
	Pattern *regexp.Regexp
	Group   int
}

func defaultAmountRules() []AmountRule {
	return []AmountRule{
		{Name: "received", Pattern: regexp.MustCompile(`收[到款]\s*(` + numeral + `)元`), Group: 1},
		{Name: "arrived", Pattern: regexp.MustCompile(`到账\s*(` + numeral + `)元`), Group: 1},
		{Name: "amount", Pattern: regexp.MustCompile(`金额\s*(` + numeral + `)元`), Group: 1},
		{Name: "fullwidth_yen", Pattern: regexp.MustCompile(`￥\s*(` + numeral + `)`), Group: 1},
		{Name: "yen", Pattern: regexp.MustCompile(`¥\s*(` + numeral + `)`), Group: 1},
	}
}

// Rules holds the keyword table and the ordered amount rules. The zero value
// is not usable; start from DefaultRules.
type Rules struct {
	keywords    [sourceCount][]string
	amountRules []AmountRule
}

func DefaultRules() *Rules {
	r := &Rules{amountRules: defaultAmountRules()}
	for _, s := range Sources() {
		r.keywords[s] = lowerAll(sourceSpecs[s].keywords)
	}
	return r
}

// Keywords returns the lower-cased keywords for s.
func (r *Rules) Keywords(s Source) []string {
	if !s.Valid() {
		return nil
	}
	out := make([]string, len(r.keywords[s]))
	copy(out, r.keywords[s])
	return out
}

func (r *Rules) AmountRules() []AmountRule {
	out := make([]AmountRule, len(r.amountRules))
	copy(out, r.amountRules)
	return out
}

// IsPaymentNotification reports whether text contains any keyword of source,
// ignoring case.
func (r *Rules) IsPaymentNotification(text string, source Source) bool {
	if !source.Valid() || text == "" {
		return false
	}
	lowered := strings.ToLower(text)
	for _, keyword := range r.keywords[source] {
		if strings.Contains(lowered, keyword) {
			return true
		}
	}
	return false
}

// ExtractAmount returns the amount named by the first matching rule. When no
// rule matches, the first numeral inside the plausibility band is used.
// Non-positive winners fail.
func (r *Rules) ExtractAmount(text string) (decimal.Decimal, bool) {
	for _, rule := range r.amountRules {
		match := rule.Pattern.FindStringSubmatch(text)
		if match == nil || rule.Group >= len(match) {
			continue
		}
		value, err := parseNumeral(match[rule.Group])
		if err != nil {
			continue
		}
		return value, value.IsPositive()
	}

	for _, candidate := range numeralPattern.FindAllString(text, -1) {
		value, err := parseNumeral(candidate)
		if err != nil {
			continue
		}
		if value.GreaterThan(plausibleFloor) && value.LessThan(plausibleCeiling) {
			return value, true
		}
	}
	return decimal.Zero, false
}

func parseNumeral(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSuffix(raw, ".")
	if trimmed == "" {
		return decimal.Zero, errors.New("empty numeral")
	}
	return decimal.NewFromString(trimmed)
}

type rulesFile struct {
	Keywords       map[string][]string `toml:"keywords"`
	AmountPatterns []struct {
		Name    string `toml:"name"`
		Pattern string `toml:"pattern"`
		Group   int    `toml:"group"`
	} `toml:"amount_patterns"`
}

// LoadRules returns DefaultRules extended by the TOML file at path. Extra
// keywords are appended per source; extra amount patterns run after the
// built-in ones and before the fallback scan. An empty path yields the
// defaults.
func LoadRules(path string) (*Rules, error) {
	rules := DefaultRules()
	path = strings.TrimSpace(path)
	if path == "" {
		return rules, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	if err := rules.apply(raw); err != nil {
		return nil, err
	}
	return rules, nil
}

func (r *Rules) apply(raw []byte) error {
	var file rulesFile
	if err := toml.Unmarshal(raw, &file); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}

	for name, keywords := range file.Keywords {
		source, err := ParseSource(name)
		if err != nil {
			return fmt.Errorf("%w: keywords.%s: %v", ErrInvalidRules, name, err)
		}
		for _, keyword := range keywords {
			keyword = strings.ToLower(strings.TrimSpace(keyword))
			if keyword == "" || slices.Contains(r.keywords[source], keyword) {
				continue
			}
			r.keywords[source] = append(r.keywords[source], keyword)
		}
	}

	for i, entry := range file.AmountPatterns {
		pattern, err := regexp.Compile(entry.Pattern)
		if err != nil {
			return fmt.Errorf("%w: amount_patterns[%d]: %v", ErrInvalidRules, i, err)
		}
		group := entry.Group
		if group == 0 {
			group = 1
		}
		if group > pattern.NumSubexp() {
			return fmt.Errorf("%w: amount_patterns[%d]: group %d out of range", ErrInvalidRules, i, group)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = fmt.Sprintf("custom_%d", i+1)
		}
		r.amountRules = append(r.amountRules, AmountRule{Name: name, Pattern: pattern, Group: group})
	}
	return nil
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, strings.ToLower(s))
	}
	return out
}
