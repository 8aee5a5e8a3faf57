package phone

import (
	"strconv"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// NormalizedPhone is the canonical international form of a raw phone input.
// E164 is "+" followed only by digits; SubscriberNumber carries no leading
// zero. LowConfidence marks input that matched none of the known patterns or
// failed carrier validation; callers decide whether to proceed.
type NormalizedPhone struct {
	CountryCode      string `json:"country_code"`
	SubscriberNumber string `json:"subscriber_number"`
	E164             string `json:"e164"`
	LowConfidence    bool   `json:"low_confidence,omitempty"`
}

// Normalizer converts raw user input into E.164 using a default dial code for
// local-format numbers. It is stateless and never touches the network.
type Normalizer struct {
	defaultDialCode string
}

// NewNormalizer creates a normalizer with the given default country dial code
// (digits only, e.g. "20").
func NewNormalizer(defaultDialCode string) *Normalizer {
	return &Normalizer{defaultDialCode: strings.TrimPrefix(defaultDialCode, "+")}
}

// Normalize applies the local-number rules and validates the candidate with
// libphonenumber. Unmatched input comes back unchanged with LowConfidence set
// rather than failing, so an otherwise-deliverable address is not dropped.
func (n *Normalizer) Normalize(raw string) NormalizedPhone {
	clean := cleanInput(raw)
	digits := strings.TrimPrefix(clean, "+")

	var candidate string
	switch {
	case clean == "":
		return NormalizedPhone{E164: raw, LowConfidence: true}
	case strings.HasPrefix(clean, "+"):
		// Already international, accepted as-is
		candidate = clean
	case strings.HasPrefix(digits, "0"):
		// Local format: leading zero replaced by the default dial code.
		// Covers 11-digit mobiles like 01017799580.
		candidate = "+" + n.defaultDialCode + digits[1:]
	case strings.HasPrefix(digits, n.defaultDialCode) && len(digits) > len(n.defaultDialCode)+4:
		// Dial code present but "+" missing
		candidate = "+" + digits
	case len(digits) == 10 && strings.HasPrefix(digits, "1"):
		// Mobile number with the leading zero already dropped
		candidate = "+" + n.defaultDialCode + digits
	default:
		return NormalizedPhone{E164: clean, LowConfidence: true}
	}

	if parsed, err := phonenumbers.Parse(candidate, ""); err == nil && phonenumbers.IsValidNumber(parsed) {
		return NormalizedPhone{
			CountryCode:      strconv.Itoa(int(parsed.GetCountryCode())),
			SubscriberNumber: phonenumbers.GetNationalSignificantNumber(parsed),
			E164:             phonenumbers.Format(parsed, phonenumbers.E164),
		}
	}

	// Candidate built from a known pattern but not carrier-valid: keep the
	// structural result, flagged low confidence.
	return n.structural(candidate)
}

// structural splits a "+"-prefixed candidate without library validation.
func (n *Normalizer) structural(candidate string) NormalizedPhone {
	digits := strings.TrimPrefix(candidate, "+")
	country := n.defaultDialCode
	if !strings.HasPrefix(digits, n.defaultDialCode) && len(digits) > 2 {
		country = digits[:2]
	}
	subscriber := strings.TrimLeft(strings.TrimPrefix(digits, country), "0")
	return NormalizedPhone{
		CountryCode:      country,
		SubscriberNumber: subscriber,
		E164:             "+" + digits,
		LowConfidence:    true,
	}
}

// cleanInput strips whitespace and everything except digits and one leading "+".
func cleanInput(raw string) string {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}
