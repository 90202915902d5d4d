package exam

import "fmt"

// QuestionType is the closed set of backend question tags.
type QuestionType string

const (
	TypeMultipleChoiceSingle QuestionType = "MULTIPLE_CHOICE_SINGLE"
	TypeMatchingHeading      QuestionType = "MATCHING_HEADING"
	TypeYesNoNotGiven        QuestionType = "YES_NO_NOT_GIVEN"
	TypeTrueFalseNotGiven    QuestionType = "TRUE_FALSE_NOT_GIVEN"
	TypeNoteCompletion       QuestionType = "NOTE_COMPLETION"
	TypeSummaryCompletion    QuestionType = "SUMMARY_COMPLETION"
	TypeTableCompletion      QuestionType = "TABLE_COMPLETION"
	TypeFlowChart            QuestionType = "FLOW_CHART"
	TypeMapLabel             QuestionType = "MAP_LABEL"
	TypeDiagramLabel         QuestionType = "DIAGRAM_LABEL"
)

// Strategy decides how a raw answer is turned into an option id.
type Strategy int

const (
	// ResolveByText matches the answer text against the option list.
	ResolveByText Strategy = iota
	// ResolveByAnchor uses the single option id when exactly one option exists.
	ResolveByAnchor
)

// InputKind is the widget the client renders for a question.
type InputKind string

const (
	InputChoice InputKind = "choice"
	InputText   InputKind = "text"
)

type typeInfo struct {
	strategy Strategy
	input    InputKind
	label    string
	fixed    []string
}

// typeTable is the single place a question type is declared. Adding a type means
// adding a constant above and a row here.
var typeTable = map[QuestionType]typeInfo{
	TypeMultipleChoiceSingle: {strategy: ResolveByText, input: InputChoice, label: "Multiple Choice"},
	TypeMatchingHeading:      {strategy: ResolveByText, input: InputChoice, label: "Matching Heading"},
	TypeYesNoNotGiven: {
		strategy: ResolveByText, input: InputChoice, label: "Yes/No/Not Given",
		fixed: []string{"Yes", "No", "Not Given"},
	},
	TypeTrueFalseNotGiven: {
		strategy: ResolveByText, input: InputChoice, label: "True/False/Not Given",
		fixed: []string{"True", "False", "Not Given"},
	},
	TypeNoteCompletion:    {strategy: ResolveByAnchor, input: InputText, label: "Note Completion"},
	TypeSummaryCompletion: {strategy: ResolveByAnchor, input: InputText, label: "Summary Completion"},
	TypeTableCompletion:   {strategy: ResolveByAnchor, input: InputText, label: "Table Completion"},
	TypeFlowChart:         {strategy: ResolveByAnchor, input: InputText, label: "Flow Chart"},
	TypeMapLabel:          {strategy: ResolveByAnchor, input: InputText, label: "Map Label"},
	TypeDiagramLabel:      {strategy: ResolveByAnchor, input: InputText, label: "Diagram Label"},
}

// AllQuestionTypes lists every declared type.
func AllQuestionTypes() []QuestionType {
	return []QuestionType{
		TypeMultipleChoiceSingle,
		TypeMatchingHeading,
		TypeYesNoNotGiven,
		TypeTrueFalseNotGiven,
		TypeNoteCompletion,
		TypeSummaryCompletion,
		TypeTableCompletion,
		TypeFlowChart,
		TypeMapLabel,
		TypeDiagramLabel,
	}
}

// ParseQuestionType validates a backend tag.
func ParseQuestionType(tag string) (QuestionType, error) {
	t := QuestionType(tag)
	if !t.Valid() {
		return "", fmt.Errorf("unknown question type %q", tag)
	}
	return t, nil
}

// Valid reports whether the type is declared in the table.
func (t QuestionType) Valid() bool {
	_, ok := typeTable[t]
	return ok
}

// Strategy returns the resolution strategy. Undeclared types fall back to the
// anchor strategy, which is what free-text questions use.
func (t QuestionType) Strategy() Strategy {
	if info, ok := typeTable[t]; ok {
		return info.strategy
	}
	return ResolveByAnchor
}

// Input returns the widget kind for the type.
func (t QuestionType) Input() InputKind {
	if info, ok := typeTable[t]; ok {
		return info.input
	}
	return InputText
}

// Label is the human-readable type name shown with results.
func (t QuestionType) Label() string {
	if info, ok := typeTable[t]; ok {
		return info.label
	}
	return string(t)
}

// FixedChoices returns the hard-wired labels for yes/no and true/false questions.
func (t QuestionType) FixedChoices() []string {
	info, ok := typeTable[t]
	if !ok || len(info.fixed) == 0 {
		return nil
	}
	out := make([]string, len(info.fixed))
	copy(out, info.fixed)
	return out
}
