package constants

import (
	"strings"
)

// Field names the extractor can populate, as they appear in job JSON and
// debug output.
type Field string

const (
	FieldStudentID   Field = "studentId"
	FieldStudentName Field = "studentName"
	FieldNickname    Field = "nickname"
	FieldDOB         Field = "dob"
	FieldSex         Field = "sex"
	FieldParentName  Field = "parentName"
	FieldMobile      Field = "mobile"
	FieldSchool      Field = "school"
	FieldCourseTitle Field = "courseTitle"
)

var allFields = []Field{
	FieldStudentID,
	FieldStudentName,
	FieldNickname,
	FieldDOB,
	FieldSex,
	FieldParentName,
	FieldMobile,
	FieldSchool,
	FieldCourseTitle,
}

func FieldNames() []string {
	result := make([]string, len(allFields))
	for i, f := range allFields {
		result[i] = string(f)
	}
	return result
}

// CanonicalizeSex maps free-form OCR sex values onto "M" or "F".
func CanonicalizeSex(input string) (string, bool) {
	if input == "" {
		return "", false
	}

	normalized := strings.ToLower(strings.Trim(strings.TrimSpace(input), "."))

	synonyms := map[string]string{
		"m":      "M",
		"male":   "M",
		"boy":    "M",
		"f":      "F",
		"female": "F",
		"girl":   "F",
	}

	if sex, ok := synonyms[normalized]; ok {
		return sex, true
	}
	return "", false
}
