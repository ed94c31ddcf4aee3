package extract

// Record is the best-effort field set extracted from one form image.
// An empty string means the field was not found on the form; that is
// missing data, not an error. Validation decides whether the record
// is usable.
type Record struct {
	SourceImage string `json:"sourceImage"`
	StudentID   string `json:"studentId,omitempty"`
	StudentName string `json:"studentName,omitempty"`
	Nickname    string `json:"nickname,omitempty"`
	DOB         string `json:"dob,omitempty"`
	Sex         string `json:"sex,omitempty"`
	ParentName  string `json:"parentName,omitempty"`
	Mobile      string `json:"mobile,omitempty"`
	School      string `json:"school,omitempty"`
	CourseTitle string `json:"courseTitle,omitempty"`
}
