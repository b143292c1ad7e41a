// Package schema defines the AI document shapes, normalizes raw model output into them,
// and validates inbound requests.
package schema

// Kind selects which document shape a completion is normalized into.
type Kind string

const (
	KindSummary Kind = "summary"
	KindNotes   Kind = "notes"
)

// Default titles used when a document has to be synthesized or a title is blank.
const (
	TitleQuick    = "Quick Summary"
	TitleDetailed = "Detailed Summary"
	TitleExam     = "Exam-Focused Summary"
	TitleNotes    = "Lecture Notes"
)

// Document is a normalized summary or notes document.
type Document interface {
	Kind() Kind
}

// Definition is a term and its meaning.
type Definition struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

// Question is a likely exam question with a short answer hint.
type Question struct {
	Question string `json:"question"`
	Hint     string `json:"hint"`
}

// SummaryDocument holds the three summary views of a lecture.
type SummaryDocument struct {
	Quick    QuickSummary    `json:"quick"`
	Detailed DetailedSummary `json:"detailed"`
	Exam     ExamSummary     `json:"exam"`
}

// QuickSummary is a short list of core ideas.
type QuickSummary struct {
	Title  string   `json:"title"`
	Points []string `json:"points"`
}

// DetailedSummary explains each topic covered.
type DetailedSummary struct {
	Title    string           `json:"title"`
	Sections []SummarySection `json:"sections"`
}

// SummarySection is one topic of a detailed summary.
type SummarySection struct {
	Heading string `json:"heading"`
	Content string `json:"content"`
}

// ExamSummary collects exam-relevant material.
type ExamSummary struct {
	Title              string       `json:"title"`
	Definitions        []Definition `json:"definitions"`
	KeyExamples        []string     `json:"key_examples"`
	RepeatedPoints     []string     `json:"repeated_points"`
	PotentialQuestions []Question   `json:"potential_questions"`
}

// Kind implements Document.
func (SummaryDocument) Kind() Kind { return KindSummary }

// NotesDocument is a topic-organized set of study notes.
type NotesDocument struct {
	Title       string         `json:"title"`
	Sections    []NotesSection `json:"sections"`
	ActionItems []string       `json:"action_items"`
	KeyTerms    []Definition   `json:"key_terms"`
}

// NotesSection is one topic of the notes.
type NotesSection struct {
	Heading     string       `json:"heading"`
	Bullets     []string     `json:"bullets"`
	Definitions []Definition `json:"definitions"`
	Highlights  []string     `json:"highlights"`
	Examples    []string     `json:"examples"`
	Formulas    []string     `json:"formulas"`
}

// Kind implements Document.
func (NotesDocument) Kind() Kind { return KindNotes }
