// Package validate holds the heuristic field validators for extracted
// enrollment records. These are boolean filters over noisy OCR output;
// false positives and negatives are expected and tolerated. Callers
// decide whether a failure blanks the field or drops the whole record.
package validate

import (
	"regexp"
	"strings"
)

var (
	reStudentID = regexp.MustCompile(`^20\d{7,8}$`)
	rePhone     = regexp.MustCompile(`^0\d{7,9}$`)
	reNonDigit  = regexp.MustCompile(`\D`)
)

// IsValidStudentID requires the cleaned string to be a year-prefixed
// 9-10 digit ID. The reason is non-empty when invalid.
func IsValidStudentID(id string) (bool, string) {
	cleaned := strings.TrimSpace(id)
	if cleaned == "" {
		return false, "student id is empty"
	}
	if !reStudentID.MatchString(cleaned) {
		return false, "student id must be a year-prefixed 9-10 digit number"
	}
	return true, ""
}

// IsValidPhone accepts empty (the field is optional); otherwise the
// digits-only form must be a leading-zero 8-10 digit number.
func IsValidPhone(phone string) (bool, string) {
	if strings.TrimSpace(phone) == "" {
		return true, ""
	}
	digits := reNonDigit.ReplaceAllString(phone, "")
	if !rePhone.MatchString(digits) {
		return false, "phone must be a leading-zero 8-10 digit number"
	}
	return true, ""
}

// ContainsThai reports whether s carries any rune in the Thai block
// (U+0E00..U+0E7F). The OCR model cannot reliably transcribe Thai
// script, so extracted values carrying it are untrustworthy.
func ContainsThai(s string) bool {
	for _, r := range s {
		if r >= 0x0E00 && r <= 0x0E7F {
			return true
		}
	}
	return false
}
