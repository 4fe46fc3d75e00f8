package models

// TranscriptRow is one subject line of a report-card or history view.
// Grades always has MaxGradeSlots entries; pending slots are nil.
type TranscriptRow struct {
	SessionID   string     `json:"session_id"`
	SubjectCode string     `json:"subject_code"`
	SubjectName string     `json:"subject_name"`
	Grades      []*float64 `json:"grades"`
	Average     *float64   `json:"average"`
	Absences    int        `json:"absences"`
	Situation   Situation  `json:"situation"`
}

// TranscriptSection groups the rows of one class.
type TranscriptSection struct {
	ClassID        string `json:"class_id"`
	Grade          int    `json:"grade"`
	Track          string `json:"track"`
	EducationLevel string `json:"education_level"`
	AcademicYear   int    `json:"academic_year"`
	Rows           []TranscriptRow `json:"rows"`
}

// Transcript is the read-derived academic record of a student: the current
// class section for the report-card view, every section for the history.
type Transcript struct {
	StudentID      string              `json:"student_id"`
	RegistrationID string              `json:"registration_id"`
	StudentName    string              `json:"student_name"`
	Sections       []TranscriptSection `json:"sections"`
}
