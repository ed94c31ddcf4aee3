// Package extract pulls the fixed enrollment-form field set out of noisy
// OCR text. Per field there is an ordered list of rules; the first rule
// that yields a value wins and no rule ever backtracks across fields.
package extract

import (
	"log/slog"
	"regexp"
	"strings"

	"enrollscan/constants"
)

// rule tries to produce one field value from the text's lines.
type rule func(lines []string) string

// Extractor applies the per-field rule chains to normalized OCR text.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{logger: logger}
}

// Extract runs every field's rule chain over text and returns the record.
func (e *Extractor) Extract(text, sourceImage string) Record {
	lines := strings.Split(text, "\n")
	rec := Record{SourceImage: sourceImage}

	rec.StudentID = firstMatch(lines, studentIDRules)
	rec.StudentName = firstMatch(lines, studentNameRules)
	rec.Nickname = firstMatch(lines, nicknameRules)
	rec.DOB = firstMatch(lines, dobRules)
	rec.Sex = canonicalSex(firstMatch(lines, sexRules))
	rec.ParentName = firstMatch(lines, parentNameRules)
	rec.Mobile = firstMatch(lines, mobileRules)
	rec.School = firstMatch(lines, schoolRules)
	rec.CourseTitle = firstMatch(lines, courseTitleRules)

	e.logger.Debug("extract.fields",
		"source_image", sourceImage,
		"student_id", rec.StudentID,
		"has_name", rec.StudentName != "",
		"has_course", rec.CourseTitle != "",
	)
	return rec
}

func firstMatch(lines []string, rules []rule) string {
	for _, r := range rules {
		if v := r(lines); v != "" {
			return v
		}
	}
	return ""
}

// Labeled same-line patterns, most specific first. Separators after the
// label are optional: OCR drops colons often enough that requiring them
// loses too many fields, and the validators catch what leaks through.
var (
	reStudentIDLine  = regexp.MustCompile(`(?i)^\s*student\s*\.?\s*id(?:\s*(?:no|number))?\s*[:.\-]?\s*(.+)$`)
	reStudentIDLabel = regexp.MustCompile(`(?i)^\s*student\s*\.?\s*id(?:\s*(?:no|number))?\s*[:.\-]?\s*$`)

	reStudentNameLine  = regexp.MustCompile(`(?i)^\s*(?:student\s*)?name\s*[:.\-]?\s*(.+)$`)
	reStudentNameLabel = regexp.MustCompile(`(?i)^\s*(?:student\s*)?name\s*[:.\-]?\s*$`)

	reNicknameLine  = regexp.MustCompile(`(?i)^\s*nick\s*name\s*[:.\-]?\s*(.+)$`)
	reNicknameLabel = regexp.MustCompile(`(?i)^\s*nick\s*name\s*[:.\-]?\s*$`)

	reDOBLine   = regexp.MustCompile(`(?i)^\s*(?:date\s*of\s*birth|d\.?\s*o\.?\s*b\.?|birth\s*date)\s*[:.\-]?\s*(.+)$`)
	reDateToken = regexp.MustCompile(`\b\d{1,2}\s*[/.\-]\s*\d{1,2}\s*[/.\-]\s*(?:19|20)\d{2}\b`)

	reSexLine = regexp.MustCompile(`(?i)^\s*(?:sex|gender)\s*[:.\-]?\s*(.+)$`)

	reParentNameLine  = regexp.MustCompile(`(?i)^\s*(?:parent|guardian|father|mother)(?:'?s)?\s*(?:name)?\s*[:.\-]?\s*(.+)$`)
	reParentNameLabel = regexp.MustCompile(`(?i)^\s*(?:parent|guardian|father|mother)(?:'?s)?\s*(?:name)?\s*[:.\-]?\s*$`)

	reMobileLine = regexp.MustCompile(`(?i)^\s*(?:mobile|phone|tel|contact)(?:\s*(?:no|number))?\s*\.?\s*[:.\-]?\s*(.+)$`)

	reSchoolLine  = regexp.MustCompile(`(?i)^\s*school\s*(?:name)?\s*[:.\-]?\s*(.+)$`)
	reSchoolLabel = regexp.MustCompile(`(?i)^\s*school\s*(?:name)?\s*[:.\-]?\s*$`)

	reCourseTitleLine = regexp.MustCompile(`(?i)^\s*(?:course|class)\s*(?:title|name)?\s*[:.\-]?\s*(.+)$`)
	reCourseKeyword   = regexp.MustCompile(`(?i)\b(?:course|class)\b`)

	reIDToken    = regexp.MustCompile(`20\d{7,8}`)
	rePhoneToken = regexp.MustCompile(`^0\d{7,9}$`)
	reDigitRun   = regexp.MustCompile(`\d+`)
	reAnySpace   = regexp.MustCompile(`\s+`)

	reLeadingPunct  = regexp.MustCompile(`^[\s:.\-_]+`)
	reTrailingPunct = regexp.MustCompile(`[\s:\-_]+$`)

	// a short leading token followed by a colon is another field's label
	reLooksLabeled = regexp.MustCompile(`^[\pL .\-/']{0,24}:`)
)

var studentIDRules = []rule{
	// labeled, value on the same line
	func(lines []string) string {
		for _, ln := range lines {
			if m := reStudentIDLine.FindStringSubmatch(ln); m != nil {
				if id := firstIDToken(m[1]); id != "" {
					return id
				}
			}
		}
		return ""
	},
	// label alone, value on a following line
	func(lines []string) string {
		for i, ln := range lines {
			if !reStudentIDLabel.MatchString(ln) {
				continue
			}
			for j := i + 1; j < len(lines); j++ {
				if id := firstIDToken(lines[j]); id != "" {
					return id
				}
				if strings.TrimSpace(lines[j]) != "" {
					break
				}
			}
		}
		return ""
	},
	// any plausible year-prefixed token anywhere in the text
	func(lines []string) string {
		for _, ln := range lines {
			if id := firstIDToken(ln); id != "" {
				return id
			}
		}
		return ""
	},
}

var studentNameRules = []rule{
	sameLine(reStudentNameLine),
	nextLine(reStudentNameLabel),
}

var nicknameRules = []rule{
	sameLine(reNicknameLine),
	nextLine(reNicknameLabel),
}

var dobRules = []rule{
	sameLine(reDOBLine),
	// any date-shaped token anywhere
	func(lines []string) string {
		for _, ln := range lines {
			if m := reDateToken.FindString(ln); m != "" {
				return reAnySpace.ReplaceAllString(m, "")
			}
		}
		return ""
	},
}

var sexRules = []rule{
	sameLine(reSexLine),
}

var parentNameRules = []rule{
	sameLine(reParentNameLine),
	nextLine(reParentNameLabel),
}

var mobileRules = []rule{
	labeledPhone,
	scanPhone,
}

var schoolRules = []rule{
	sameLine(reSchoolLine),
	nextLine(reSchoolLabel),
}

var courseTitleRules = []rule{
	sameLine(reCourseTitleLine),
	scanCourseKeyword,
}

// sameLine builds a rule capturing a labeled value on a single line.
func sameLine(re *regexp.Regexp) rule {
	return func(lines []string) string {
		for _, ln := range lines {
			if m := re.FindStringSubmatch(ln); m != nil {
				if v := cleanValue(m[1]); v != "" {
					return v
				}
			}
		}
		return ""
	}
}

// nextLine builds a rule for forms where the label sits alone and the
// value is on the following line. Lines that carry their own label are
// skipped so we do not swallow a neighboring field.
func nextLine(labelRe *regexp.Regexp) rule {
	return func(lines []string) string {
		for i, ln := range lines {
			if !labelRe.MatchString(ln) {
				continue
			}
			for j := i + 1; j < len(lines); j++ {
				candidate := strings.TrimSpace(lines[j])
				if candidate == "" {
					continue
				}
				if reLooksLabeled.MatchString(candidate) {
					break
				}
				if v := cleanValue(candidate); v != "" {
					return v
				}
				break
			}
		}
		return ""
	}
}

var phoneSeparators = strings.NewReplacer(" ", "", "-", "", ".", "", "(", "", ")", "")

// labeledPhone pulls the phone token out of a labeled line's remainder,
// dropping whatever trailing chatter follows the number.
func labeledPhone(lines []string) string {
	for _, ln := range lines {
		m := reMobileLine.FindStringSubmatch(ln)
		if m == nil {
			continue
		}
		if tok := phoneToken(m[1]); tok != "" {
			return tok
		}
	}
	return ""
}

// scanPhone finds a standalone leading-zero digit run of phone length.
// Runs are taken maximal after collapsing separators, so a digit window
// inside a longer number (like a student ID) cannot match.
func scanPhone(lines []string) string {
	for _, ln := range lines {
		if tok := phoneToken(ln); tok != "" {
			return tok
		}
	}
	return ""
}

func phoneToken(s string) string {
	collapsed := phoneSeparators.Replace(s)
	for _, run := range reDigitRun.FindAllString(collapsed, -1) {
		if rePhoneToken.MatchString(run) {
			return run
		}
	}
	return ""
}

// scanCourseKeyword handles unstructured mentions: take everything after
// the first "course"/"class" keyword on the line.
func scanCourseKeyword(lines []string) string {
	for _, ln := range lines {
		loc := reCourseKeyword.FindStringIndex(ln)
		if loc == nil {
			continue
		}
		if v := cleanValue(ln[loc[1]:]); v != "" {
			return v
		}
	}
	return ""
}

// firstIDToken repairs a candidate string and pulls the first
// year-prefixed ID token out of it.
func firstIDToken(s string) string {
	return reIDToken.FindString(repairDigits(s))
}

// repairDigits strips all whitespace and fixes the common o/O -> 0 OCR
// confusion. Only safe inside an ID context; never applied to names.
func repairDigits(s string) string {
	s = reAnySpace.ReplaceAllString(s, "")
	return strings.NewReplacer("o", "0", "O", "0").Replace(s)
}

func cleanValue(s string) string {
	s = reLeadingPunct.ReplaceAllString(s, "")
	s = reTrailingPunct.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

func canonicalSex(raw string) string {
	if raw == "" {
		return ""
	}
	if sex, ok := constants.CanonicalizeSex(raw); ok {
		return sex
	}
	return raw
}
