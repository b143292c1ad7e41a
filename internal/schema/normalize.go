package schema

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// StripFences removes one leading fence line (with optional language tag) and one
// trailing fence, then trims surrounding whitespace.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, fence) {
		if i := strings.IndexByte(text, '\n'); i >= 0 {
			text = text[i+1:]
		} else {
			text = text[len(fence):]
		}
	}
	text = strings.TrimSuffix(text, fence)
	return strings.TrimSpace(text)
}

// Normalize converts raw model output into a document of the requested kind.
// It never fails: undecodable output yields the kind's fallback document.
func Normalize(raw string, kind Kind) (Document, bool) {
	if kind == KindNotes {
		return NormalizeNotes(raw)
	}
	return NormalizeSummary(raw)
}

// NormalizeSummary decodes raw into a SummaryDocument. The bool reports whether the
// fallback document was used, in which case the raw text is kept as the single quick point.
func NormalizeSummary(raw string) (SummaryDocument, bool) {
	var doc SummaryDocument
	if err := decodeObject(StripFences(raw), &doc); err != nil {
		return fallbackSummary(raw), true
	}
	fillSummary(&doc)
	return doc, false
}

// NormalizeNotes decodes raw into a NotesDocument. The bool reports whether the fallback
// document was used.
func NormalizeNotes(raw string) (NotesDocument, bool) {
	var doc NotesDocument
	if err := decodeObject(StripFences(raw), &doc); err != nil {
		return fallbackNotes(), true
	}
	fillNotes(&doc)
	return doc, false
}

// decodeObject rejects anything that is not a JSON object. Unknown fields are dropped.
func decodeObject(text string, v any) error {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(text), &probe); err != nil {
		return err
	}
	if probe == nil {
		return errNotObject
	}
	return json.Unmarshal([]byte(text), v)
}

func fallbackSummary(raw string) SummaryDocument {
	doc := SummaryDocument{
		Quick: QuickSummary{Title: TitleQuick, Points: []string{raw}},
	}
	fillSummary(&doc)
	return doc
}

func fallbackNotes() NotesDocument {
	var doc NotesDocument
	fillNotes(&doc)
	return doc
}

func fillSummary(doc *SummaryDocument) {
	doc.Quick.Title = orDefault(doc.Quick.Title, TitleQuick)
	doc.Quick.Points = nonNil(doc.Quick.Points)

	doc.Detailed.Title = orDefault(doc.Detailed.Title, TitleDetailed)
	doc.Detailed.Sections = nonNil(doc.Detailed.Sections)

	doc.Exam.Title = orDefault(doc.Exam.Title, TitleExam)
	doc.Exam.Definitions = nonNil(doc.Exam.Definitions)
	doc.Exam.KeyExamples = nonNil(doc.Exam.KeyExamples)
	doc.Exam.RepeatedPoints = nonNil(doc.Exam.RepeatedPoints)
	doc.Exam.PotentialQuestions = nonNil(doc.Exam.PotentialQuestions)
}

func fillNotes(doc *NotesDocument) {
	doc.Title = orDefault(doc.Title, TitleNotes)
	doc.Sections = nonNil(doc.Sections)
	for i := range doc.Sections {
		s := &doc.Sections[i]
		s.Bullets = nonNil(s.Bullets)
		s.Definitions = nonNil(s.Definitions)
		s.Highlights = nonNil(s.Highlights)
		s.Examples = nonNil(s.Examples)
		s.Formulas = nonNil(s.Formulas)
	}
	doc.ActionItems = nonNil(doc.ActionItems)
	doc.KeyTerms = nonNil(doc.KeyTerms)
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
