// Package leads cross-references conversations against the external CRM:
// canonical phone keys, the set of phones already holding a lead record, and
// idempotent lead creation.
package leads

import (
	"fmt"
	"strings"
)

// DefaultCountryCode is prepended to local-format numbers when the config
// does not override it.
const DefaultCountryCode = "996"

// Digits strips every non-digit character from raw.
func Digits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeKey canonicalizes a raw phone-like identifier into a dedup key:
// local forms gain the country code, full international forms pass through,
// and anything else is returned as its bare digit string (best effort, not
// guaranteed routable). Empty input yields an empty key.
func NormalizeKey(raw, countryCode string) string {
	d := Digits(raw)
	if d == "" {
		return ""
	}
	switch {
	case len(d) == 10 && d[0] == '0':
		return countryCode + d[1:]
	case len(d) == 9:
		return countryCode + d
	case len(d) == 12 && strings.HasPrefix(d, countryCode):
		return d
	default:
		return d
	}
}

// FormatNumber renders a phone-like identifier for display, grouping digits
// the way local users expect. Display only; never use the result as a key.
func FormatNumber(raw string) string {
	d := Digits(raw)
	switch {
	case len(d) == 12 && strings.HasPrefix(d, "996"):
		return fmt.Sprintf("+996 %s %s-%s-%s", d[3:6], d[6:9], d[9:11], d[11:])
	case len(d) == 11 && d[0] == '7':
		return fmt.Sprintf("+7 %s %s-%s-%s", d[1:4], d[4:7], d[7:9], d[9:])
	case len(d) > 10:
		return fmt.Sprintf("+%s %s %s-%s-%s", d[:3], d[3:6], d[6:8], d[8:10], d[10:min(12, len(d))])
	case len(d) == 10:
		return fmt.Sprintf("+%s %s %s-%s", d[:3], d[3:6], d[6:8], d[8:])
	default:
		return "+" + d
	}
}
