package vehicles

import (
	"regexp"
	"strings"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
)

// three letters, two digits, then a digit (cars) or a letter (motorcycles)
var platePattern = regexp.MustCompile(`^[A-Z]{3}[0-9]{2}[0-9A-Z]$`)

// NormalizePlate upper-cases and trims a plate and checks its shape
func NormalizePlate(plate string) (string, error) {
	p := strings.ToUpper(strings.TrimSpace(plate))
	p = strings.ReplaceAll(p, "-", "")
	p = strings.ReplaceAll(p, " ", "")
	if !platePattern.MatchString(p) {
		return "", apperr.ErrInvalidPlate
	}
	return p, nil
}
