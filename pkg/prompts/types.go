package prompts

import "fmt"

// TemplateType identifies what a prompt template is used for.
type TemplateType string

const (
	TypeCSVAnalysis       TemplateType = "csv_analysis"
	TypeCompanyAnalysis   TemplateType = "company_analysis"
	TypeProductExtraction TemplateType = "product_extraction"
	TypeProductMatching   TemplateType = "product_matching"
	TypeScriptOpening     TemplateType = "script_opening"
	TypeScriptProblem     TemplateType = "script_problem"
	TypeScriptSolution    TemplateType = "script_solution"
	TypeScriptObjection   TemplateType = "script_objection"
	TypeScriptClosing     TemplateType = "script_closing"
	TypeCustom            TemplateType = "custom"
)

// AllTypes lists every template type in display order.
var AllTypes = []TemplateType{
	TypeCSVAnalysis,
	TypeCompanyAnalysis,
	TypeProductExtraction,
	TypeProductMatching,
	TypeScriptOpening,
	TypeScriptProblem,
	TypeScriptSolution,
	TypeScriptObjection,
	TypeScriptClosing,
	TypeCustom,
}

// Valid reports whether t is a known template type.
func (t TemplateType) Valid() bool {
	for _, known := range AllTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Talk-script sections in canonical order.
const (
	SectionOpening               = "opening"
	SectionProblemIdentification = "problem_identification"
	SectionSolutionProposal      = "solution_proposal"
	SectionObjectionHandling     = "objection_handling"
	SectionClosing               = "closing"

	sectionProposalAlias = "proposal"
)

// Sections lists talk-script sections in the order they are generated and presented.
var Sections = []string{
	SectionOpening,
	SectionProblemIdentification,
	SectionSolutionProposal,
	SectionObjectionHandling,
	SectionClosing,
}

var sectionTitles = map[string]string{
	SectionOpening:               "Opening",
	SectionProblemIdentification: "Problem Identification",
	SectionSolutionProposal:      "Solution Proposal",
	SectionObjectionHandling:     "Objection Handling",
	SectionClosing:               "Closing",
}

var sectionTypes = map[string]TemplateType{
	SectionOpening:               TypeScriptOpening,
	SectionProblemIdentification: TypeScriptProblem,
	SectionSolutionProposal:      TypeScriptSolution,
	SectionObjectionHandling:     TypeScriptObjection,
	SectionClosing:               TypeScriptClosing,
}

// NormalizeSection maps aliases to canonical section names.
// The second result is false for unknown sections.
func NormalizeSection(name string) (string, bool) {
	if name == sectionProposalAlias {
		return SectionSolutionProposal, true
	}
	_, ok := sectionTitles[name]
	return name, ok
}

// SectionTitle returns the human-readable title of a section.
func SectionTitle(section string) string {
	if title, ok := sectionTitles[section]; ok {
		return title
	}
	return section
}

// SectionTemplateType returns the template type that generates section.
func SectionTemplateType(section string) TemplateType {
	return sectionTypes[section]
}

// NormalizeSections resolves aliases, drops duplicates and returns the selection
// in canonical order. An empty selection means every section.
func NormalizeSections(selected []string) ([]string, error) {
	if len(selected) == 0 {
		return append([]string(nil), Sections...), nil
	}
	want := make(map[string]bool, len(selected))
	for _, name := range selected {
		canonical, ok := NormalizeSection(name)
		if !ok {
			return nil, fmt.Errorf("unknown section %q", name)
		}
		want[canonical] = true
	}
	ordered := make([]string, 0, len(want))
	for _, s := range Sections {
		if want[s] {
			ordered = append(ordered, s)
		}
	}
	return ordered, nil
}
