// Package normalizers provides canonical forms of listing fields for comparison
package normalizers

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers. It is only written during init.
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("remove_whitespace", RemoveWhitespace)
	Register("digits_only", DigitsOnly)
	Register("nname", NormalizeName)
	Register("naddress", NormalizeAddress)
	Register("nphone", NormalizePhone)
	Register("nemail", NormalizeEmail)
	Register("nidentifier", NormalizeIdentifier)
}

// Register adds a normalizer to the registry. Not safe for concurrent use; call from init.
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	var result strings.Builder
	for _, r := range s {
		if !unicode.IsSpace(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// DigitsOnly keeps only ASCII digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// legalEntityTokens are company-form words that carry no identity on their own
var legalEntityTokens = map[string]struct{}{
	"sarl": {}, "sas": {}, "sasu": {}, "eurl": {}, "sa": {}, "ei": {},
	"company": {}, "societe": {}, "entreprise": {}, "firm": {},
	"establishment": {}, "establishments": {},
	"etablissement": {}, "etablissements": {}, "ets": {},
	"co": {}, "cie": {},
}

// NormalizeName canonicalizes a business name:
//   - lowercase
//   - drop every character outside [a-z0-9] and whitespace
//   - drop legal-entity tokens (sarl, sas, company, ...) as whole words
//   - collapse whitespace
func NormalizeName(s string) string {
	s = strings.ToLower(s)

	var kept strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			kept.WriteRune(r)
		case unicode.IsSpace(r):
			kept.WriteRune(' ')
		}
	}

	words := strings.Fields(kept.String())
	result := words[:0]
	for _, w := range words {
		if _, ok := legalEntityTokens[w]; ok {
			continue
		}
		result = append(result, w)
	}

	return strings.Join(result, " ")
}

// streetTokens are street designations and number suffixes, stored accent-folded
var streetTokens = map[string]struct{}{
	"rue": {}, "street": {}, "st": {},
	"avenue": {}, "ave": {}, "av": {},
	"place": {}, "pl": {},
	"boulevard": {}, "bd": {}, "blvd": {},
	"impasse": {}, "imp": {},
	"chemin": {}, "path": {}, "ch": {},
	"route": {}, "road": {}, "rd": {}, "rte": {},
	"allee": {},
	"bis": {}, "ter": {}, "quater": {},
}

// NormalizeAddress canonicalizes a postal address: lowercase, punctuation stripped,
// street designations and bis/ter/quater removed as whole words, whitespace collapsed.
// Designations match with or without accents ("allée" and "allee"); other words keep theirs.
func NormalizeAddress(s string) string {
	s = strings.ToLower(s)

	var stripped strings.Builder
	for _, r := range s {
		if !unicode.IsPunct(r) {
			stripped.WriteRune(r)
		}
	}

	words := strings.Fields(stripped.String())
	result := words[:0]
	for _, w := range words {
		if _, ok := streetTokens[foldAccents(w)]; ok {
			continue
		}
		result = append(result, w)
	}

	return strings.Join(result, " ")
}

// foldAccents removes combining marks, e.g. "allée" becomes "allee"
func foldAccents(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return folded
}

// internationalPrefixes are rewritten to the national leading zero
var internationalPrefixes = []string{"+33", "0033"}

// NormalizePhone strips separators (whitespace, hyphens, dots, parentheses) and
// rewrites a leading international prefix to the national leading-zero form.
func NormalizePhone(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		switch r {
		case '-', '.', '(', ')':
			continue
		}
		result.WriteRune(r)
	}

	phone := result.String()
	for _, prefix := range internationalPrefixes {
		if strings.HasPrefix(phone, prefix) {
			national := phone[len(prefix):]
			// "+33 (0)5 ..." already carries the trunk zero
			if strings.HasPrefix(national, "0") {
				return national
			}
			return "0" + national
		}
	}
	return phone
}

// NormalizeEmail normalizes an email address (lowercase, trim)
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeIdentifier removes all whitespace from a national business identifier
func NormalizeIdentifier(s string) string {
	return RemoveWhitespace(s)
}
