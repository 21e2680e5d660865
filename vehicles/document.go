// Package vehicles resolves a vehicle together with the owner whose document
// matches the supplied credentials, and validates new registrations.
package vehicles

import (
	"strings"

	"github.com/linesmerrill/vehicle-tax-api/apperr"
)

// Document type codes
const (
	DocumentCC  = "CC"  // cedula de ciudadania
	DocumentCE  = "CE"  // cedula de extranjeria
	DocumentNIT = "NIT" // tax id, digits with an optional check-digit dash
	DocumentPP  = "PP"  // passport
)

type documentRule struct {
	maxLen  int
	allowed func(r rune) bool
}

var documentRules = map[string]documentRule{
	DocumentCC:  {maxLen: 10, allowed: isDigit},
	DocumentCE:  {maxLen: 12, allowed: isAlnum},
	DocumentNIT: {maxLen: 11, allowed: func(r rune) bool { return isDigit(r) || r == '-' }},
	DocumentPP:  {maxLen: 15, allowed: isAlnum},
}

// DocumentTypes lists the codes the policy table knows
func DocumentTypes() []string {
	return []string{DocumentCC, DocumentCE, DocumentNIT, DocumentPP}
}

// ValidateDocument checks number against the rule for docType
func ValidateDocument(docType, number string) error {
	code := strings.ToUpper(strings.TrimSpace(docType))
	rule, ok := documentRules[code]
	if !ok {
		return apperr.ErrUnknownDocumentType
	}
	if number == "" || len(number) > rule.maxLen {
		return apperr.ErrInvalidDocument
	}
	digits := 0
	for _, r := range number {
		if !rule.allowed(r) {
			return apperr.ErrInvalidDocument
		}
		if isDigit(r) {
			digits++
		}
	}
	if digits == 0 && code == DocumentNIT {
		return apperr.ErrInvalidDocument
	}
	return nil
}

// FormatNIT renders a NIT as base-checkdigit
func FormatNIT(number string) string {
	base := strings.ReplaceAll(number, "-", "")
	if len(base) > 9 {
		return base[:len(base)-1] + "-" + base[len(base)-1:]
	}
	return number
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isAlnum(r rune) bool {
	return isDigit(r) || (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z')
}
