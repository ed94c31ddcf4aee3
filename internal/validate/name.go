package validate

import (
	"strings"
	"unicode"
)

// shortNameWhitelist holds legitimate short names (mostly romanized Thai
// nicknames) that the heuristics below would otherwise flag.
var shortNameWhitelist = map[string]struct{}{
	"tom":  {},
	"kai":  {},
	"may":  {},
	"bam":  {},
	"best": {},
	"boss": {},
	"bank": {},
	"gun":  {},
	"new":  {},
	"ice":  {},
	"mew":  {},
	"nan":  {},
}

// labelLeakKeywords are form labels that OCR smears into name values.
// Matched as whole tokens.
var labelLeakKeywords = map[string]struct{}{
	"student":  {},
	"name":     {},
	"nickname": {},
	"school":   {},
	"course":   {},
	"class":    {},
	"mobile":   {},
	"phone":    {},
	"tel":      {},
	"contact":  {},
	"parent":   {},
	"guardian": {},
	"father":   {},
	"mother":   {},
	"sex":      {},
	"gender":   {},
	"date":     {},
	"birth":    {},
	"dob":      {},
	"id":       {},
	"age":      {},
	"grade":    {},
	"teacher":  {},
	"level":    {},
	"room":     {},
	"time":     {},
}

var monthAbbrevs = map[string]struct{}{
	"jan": {}, "feb": {}, "mar": {}, "apr": {}, "may": {}, "jun": {},
	"jul": {}, "aug": {}, "sep": {}, "sept": {}, "oct": {}, "nov": {}, "dec": {},
}

// IsBadName reports whether name looks like OCR noise or a leaked form
// label instead of a person's name. The short-name whitelist wins over
// every other rule.
func IsBadName(name string) bool {
	norm := strings.ToLower(strings.TrimSpace(name))
	if norm == "" {
		return true
	}
	if _, ok := shortNameWhitelist[norm]; ok {
		return false
	}

	if len([]rune(norm)) < 3 {
		return true
	}

	// a leaked label or month token anywhere disqualifies the value
	for _, tok := range splitLetterTokens(norm) {
		if _, ok := labelLeakKeywords[tok]; ok {
			return true
		}
		if _, ok := monthAbbrevs[tok]; ok {
			return true
		}
	}

	// digits never belong in a name; covers mostly-numeric junk too
	if strings.IndexFunc(norm, unicode.IsDigit) >= 0 {
		return true
	}

	// short all-caps runs are abbreviations, not names
	trimmed := strings.TrimSpace(name)
	if len([]rune(trimmed)) <= 4 && trimmed == strings.ToUpper(trimmed) && isAllLetters(trimmed) {
		return true
	}

	// leading punctuation is a classic OCR artifact
	if r := []rune(trimmed)[0]; !unicode.IsLetter(r) {
		return true
	}

	// a name with no vowels at all is noise
	if !strings.ContainsAny(norm, "aeiou") {
		return true
	}

	return false
}

// splitLetterTokens splits on anything that is not a letter.
func splitLetterTokens(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r)
	})
}

func isAllLetters(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return len(s) > 0
}
