// Package zone decides whether a postal code is inside the delivery area.
package zone

import "strings"

const zipLen = 5

// DefaultZips is the Phoenix metro service area.
var DefaultZips = []string{
	// Scottsdale
	"85250", "85251", "85253", "85254", "85255", "85256", "85257", "85258", "85259", "85260", "85262", "85266",
	// Tempe
	"85281", "85282", "85283", "85284",
	// Mesa
	"85201", "85202", "85203", "85204", "85205", "85206", "85210", "85213",
	// Phoenix
	"85004", "85006", "85008", "85012", "85013", "85014", "85016", "85018", "85020", "85028", "85032",
	// Chandler / Gilbert
	"85224", "85225", "85226", "85233", "85234", "85286", "85295", "85296",
	// Paradise Valley / Fountain Hills
	"85268",
}

type Validator struct {
	zips map[string]struct{}
}

// NewValidator builds a validator over zips; an empty list selects DefaultZips.
func NewValidator(zips []string) *Validator {
	if len(zips) == 0 {
		zips = DefaultZips
	}

	set := make(map[string]struct{}, len(zips))
	for _, z := range zips {
		if n, ok := normalize(z); ok {
			set[n] = struct{}{}
		}
	}
	return &Validator{zips: set}
}

// IsServiceable trims the code, keeps its first five characters and checks
// membership. Anything that is not five digits after that is rejected.
func (v *Validator) IsServiceable(zip string) bool {
	if v == nil {
		return false
	}
	n, ok := normalize(zip)
	if !ok {
		return false
	}
	_, found := v.zips[n]
	return found
}

func (v *Validator) Size() int {
	return len(v.zips)
}

func normalize(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) > zipLen {
		s = s[:zipLen]
	}
	if len(s) != zipLen {
		return "", false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return "", false
		}
	}
	return s, true
}
