package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsValidStudentID(t *testing.T) {
	tests := []struct {
		name  string
		id    string
		valid bool
	}{
		{"nine digits year-prefixed", "202345678", true},
		{"ten digits year-prefixed", "2023456789", true},
		{"surrounding spaces trimmed", "  202345678  ", true},
		{"empty", "", false},
		{"whitespace only", "   ", false},
		{"too short", "12345", false},
		{"wrong prefix", "102345678", false},
		{"trailing letter", "20234567a", false},
		{"too long", "202345678901", false},
		{"eight digits", "20234567", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := IsValidStudentID(tt.id)
			assert.Equal(t, tt.valid, ok)
			if tt.valid {
				assert.Empty(t, reason)
			} else {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestIsValidPhone(t *testing.T) {
	tests := []struct {
		name  string
		phone string
		valid bool
	}{
		{"mobile ten digits", "0812345678", true},
		{"landline nine digits", "021234567", true},
		{"dashes stripped", "081-234-5678", true},
		{"spaces and parens stripped", "(081) 234 5678", true},
		{"empty is optional", "", true},
		{"whitespace only is optional", "  ", true},
		{"no leading zero", "812345678", false},
		{"too short", "0123", false},
		{"too long", "081234567890", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, reason := IsValidPhone(tt.phone)
			assert.Equal(t, tt.valid, ok)
			if !tt.valid {
				assert.NotEmpty(t, reason)
			}
		})
	}
}

func TestContainsThai(t *testing.T) {
	assert.True(t, ContainsThai("สวัสดี"))
	assert.True(t, ContainsThai("John สมชาย"))
	assert.False(t, ContainsThai("Hello World"))
	assert.False(t, ContainsThai(""))
	assert.False(t, ContainsThai("202345678"))
}
