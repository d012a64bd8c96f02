package prompts

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ekaya-inc/ekaya-sales/pkg/jsonutil"
)

// Input limits, in characters.
const (
	CompanyContentLimit   = 2000
	KnowledgeContentLimit = 4000
	MatchingAnalysisLimit = 1500
	ScriptAnalysisLimit   = 1000
	KnowledgeOverviewCut  = 500
)

// Learning-context limits applied when a section prompt is built.
const (
	maxSuccessPatterns  = 3
	maxAvoidPatterns    = 2
	maxCommonObjections = 5
)

const noneText = "(none)"

// CSVAnalysisVars returns the variables of a csv_analysis template.
func CSVAnalysisVars(dataSummary string, basicStats any) Vars {
	return Vars{
		"data_summary": dataSummary,
		"basic_stats":  basicStats,
	}
}

// CompanyContent is the supplied website content of a company.
type CompanyContent struct {
	Title           string
	MetaDescription string
	MainContent     string
}

// CompanyAnalysisVars returns the variables of a company_analysis template.
func CompanyAnalysisVars(c CompanyContent) Vars {
	return Vars{
		"title":            c.Title,
		"meta_description": c.MetaDescription,
		"main_content":     Truncate(c.MainContent, CompanyContentLimit),
	}
}

// CompanyAnalysis is the JSON reply to a company_analysis prompt.
type CompanyAnalysis struct {
	CompanyName         jsonutil.FlexString     `json:"company_name"`
	BusinessDescription jsonutil.FlexString     `json:"business_description"`
	Industry            jsonutil.FlexString     `json:"industry"`
	KeyServices         jsonutil.FlexStringList `json:"key_services"`
	TargetMarket        jsonutil.FlexString     `json:"target_market"`
	PainPoints          jsonutil.FlexStringList `json:"pain_points"`
	AISummary           jsonutil.FlexString     `json:"ai_summary"`
}

// KnowledgeExtractionVars returns the variables of a product_extraction template.
func KnowledgeExtractionVars(productName, content string) Vars {
	return Vars{
		"product_name": productName,
		"content":      Truncate(content, KnowledgeContentLimit),
	}
}

// KnowledgeStructure is the JSON reply to a product_extraction prompt.
type KnowledgeStructure struct {
	Overview              jsonutil.FlexString            `json:"overview"`
	Features              jsonutil.FlexStringList        `json:"features,omitempty"`
	Specifications        map[string]jsonutil.FlexString `json:"specifications,omitempty"`
	Pricing               jsonutil.FlexString            `json:"pricing,omitempty"`
	TargetCustomers       jsonutil.FlexStringList        `json:"target_customers,omitempty"`
	Benefits              jsonutil.FlexStringList        `json:"benefits,omitempty"`
	CompetitiveAdvantages jsonutil.FlexStringList        `json:"competitive_advantages,omitempty"`
	CaseStudies           jsonutil.FlexStringList        `json:"case_studies,omitempty"`
}

// FallbackKnowledge is stored when structuring fails: the first 500 characters as the overview.
func FallbackKnowledge(content string) KnowledgeStructure {
	return KnowledgeStructure{Overview: jsonutil.FlexString(Truncate(content, KnowledgeOverviewCut))}
}

// CompanyProfile is the company context shared by matching and section prompts.
type CompanyProfile struct {
	Name                string
	Industry            string
	BusinessDescription string
	PainPoints          []string
}

func (c CompanyProfile) vars() Vars {
	pains := noneText
	if len(c.PainPoints) > 0 {
		pains = strings.Join(c.PainPoints, ", ")
	}
	return Vars{
		"company_name":         orNone(c.Name),
		"industry":             orNone(c.Industry),
		"business_description": orNone(c.BusinessDescription),
		"pain_points":          pains,
	}
}

// MatchProduct is the product summary sent to the matching prompt.
type MatchProduct struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	Code             string   `json:"code"`
	Category         string   `json:"category,omitempty"`
	Description      string   `json:"description"`
	TargetIndustries []string `json:"target_industries"`
	PainPointsSolved []string `json:"pain_points_solved"`
	KeyFeatures      []string `json:"key_features"`
}

// ProductMatchingVars returns the variables of a product_matching template.
func ProductMatchingVars(company CompanyProfile, products []MatchProduct, analysis string) (Vars, error) {
	productsJSON, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode products: %w", err)
	}

	vars := company.vars()
	vars["analysis_result"] = orNone(Truncate(analysis, MatchingAnalysisLimit))
	vars["products_json"] = string(productsJSON)
	return vars, nil
}

// RecommendedProduct is one ranked product in a matching reply.
type RecommendedProduct struct {
	ProductID       jsonutil.FlexString     `json:"product_id"`
	ProductName     jsonutil.FlexString     `json:"product_name"`
	RelevanceScore  jsonutil.FlexFloat      `json:"relevance_score"`
	MatchingReasons jsonutil.FlexStringList `json:"matching_reasons"`
	ProposalAngle   jsonutil.FlexString     `json:"proposal_angle"`
}

// MatchingResult is the JSON reply to a product_matching prompt.
type MatchingResult struct {
	RecommendedProducts []RecommendedProduct `json:"recommended_products"`
	ProposalStrategy    jsonutil.FlexString  `json:"proposal_strategy"`
}

// LearningContext carries lessons from past sales outcomes in the same industry.
type LearningContext struct {
	SuccessPatterns  []string `json:"success_patterns"`
	AvoidPatterns    []string `json:"avoid_patterns"`
	CommonObjections []string `json:"common_objections"`
}

// ScriptProduct is a proposed product as presented in section prompts.
type ScriptProduct struct {
	Name             string
	ShortDescription string
	ProposalAngle    string
}

// ScriptContext is everything a talk-script section prompt draws on.
type ScriptContext struct {
	Company        CompanyProfile
	AnalysisResult string
	Products       []ScriptProduct
	Learning       LearningContext
}

// SectionVars returns the variables of a script_* template for section.
// Common objections are only offered to the objection-handling section.
func SectionVars(section string, sc ScriptContext) Vars {
	vars := sc.Company.vars()
	vars["section_name"] = SectionTitle(section)
	vars["analysis_result"] = orNone(Truncate(sc.AnalysisResult, ScriptAnalysisLimit))
	vars["products"] = formatProducts(sc.Products)
	vars["success_patterns"] = bulletList(sc.Learning.SuccessPatterns, maxSuccessPatterns)
	vars["avoid_patterns"] = bulletList(sc.Learning.AvoidPatterns, maxAvoidPatterns)

	objections := noneText
	if section == SectionObjectionHandling {
		objections = bulletList(Dedupe(sc.Learning.CommonObjections), maxCommonObjections)
	}
	vars["common_objections"] = objections
	return vars
}

func formatProducts(products []ScriptProduct) string {
	if len(products) == 0 {
		return noneText
	}
	var b strings.Builder
	for i, p := range products {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%d. %s\n   Description: %s\n   Proposal angle: %s", i+1, p.Name, p.ShortDescription, p.ProposalAngle)
	}
	return b.String()
}

func bulletList(items []string, limit int) string {
	if len(items) > limit {
		items = items[:limit]
	}
	if len(items) == 0 {
		return noneText
	}
	lines := make([]string, len(items))
	for i, item := range items {
		lines[i] = "- " + item
	}
	return strings.Join(lines, "\n")
}

// Dedupe drops repeated and blank entries, keeping first-seen order.
func Dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" || seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}

// Truncate cuts s to at most limit characters without splitting a multi-byte character.
func Truncate(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == limit {
			return s[:i]
		}
		n++
	}
	return s
}

func orNone(s string) string {
	if strings.TrimSpace(s) == "" {
		return noneText
	}
	return s
}
