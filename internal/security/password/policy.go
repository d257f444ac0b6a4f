package password

import "unicode"

// Códigos de rechazo de Policy.Validate.
const (
	ReasonTooShort    = "too_short"
	ReasonTooLong     = "too_long"
	ReasonNoLetter    = "missing_letter"
	ReasonNoDigit     = "missing_digit"
	ReasonBlacklisted = "blacklisted"
)

type Policy struct {
	MinLength     int
	MaxLength     int
	RequireLetter bool
	RequireDigit  bool
	Blacklist     *Blacklist
}

// DefaultPolicy: 8..32 runas, al menos una letra y un dígito.
func DefaultPolicy(bl *Blacklist) Policy {
	return Policy{MinLength: 8, MaxLength: 32, RequireLetter: true, RequireDigit: true, Blacklist: bl}
}

func (p Policy) Validate(s string) (ok bool, reasons []string) {
	n := len([]rune(s))
	if n < p.MinLength {
		reasons = append(reasons, ReasonTooShort)
	}
	if p.MaxLength > 0 && n > p.MaxLength {
		reasons = append(reasons, ReasonTooLong)
	}
	var hasL, hasD bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			hasL = true
		case unicode.IsDigit(r):
			hasD = true
		}
	}
	if p.RequireLetter && !hasL {
		reasons = append(reasons, ReasonNoLetter)
	}
	if p.RequireDigit && !hasD {
		reasons = append(reasons, ReasonNoDigit)
	}
	if p.Blacklist.Contains(s) {
		reasons = append(reasons, ReasonBlacklisted)
	}
	return len(reasons) == 0, reasons
}
