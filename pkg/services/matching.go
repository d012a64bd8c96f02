package services

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/llm"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
)

const (
	maxRecommendedProducts  = 3
	productMatchTemperature = 0.5
	fallbackRelevance       = 0.5
	pinnedRelevance         = 1.0
)

// Learning-context sampling: how many recent outcomes of each kind are read.
const (
	learningWonSample  = 5
	learningLostSample = 3
)

const fallbackMatchReason = "Highest-priority product in the catalogue"

// ProductMatch is a product ranked for a company.
type ProductMatch struct {
	Product         *models.Product `json:"product"`
	RelevanceScore  float64         `json:"relevance_score"`
	MatchingReasons []string        `json:"matching_reasons"`
	ProposalAngle   string          `json:"proposal_angle"`
}

// MatchResult is the ranked product list and the suggested overall strategy.
type MatchResult struct {
	Matches          []ProductMatch `json:"matches"`
	ProposalStrategy string         `json:"proposal_strategy"`
	Tokens           int            `json:"tokens"`
	// Fallback is set when the ranking did not come from the AI.
	Fallback bool `json:"fallback"`
}

// MatchingService ranks catalogue products for a company and gathers lessons
// from past outcomes.
type MatchingService interface {
	// Match ranks the active products for company. With pinned ids the AI is
	// skipped and those products are returned in the given order.
	Match(ctx context.Context, company *models.Company, analysis string, pinned []uuid.UUID) (*MatchResult, error)
	LearningContext(ctx context.Context, industry string) (*prompts.LearningContext, error)
}

type matchingService struct {
	productRepo repositories.ProductRepository
	outcomeRepo repositories.SalesOutcomeRepository
	templates   PromptTemplateService
	llmFactory  llm.LLMClientFactory
	logger      *zap.Logger
}

// NewMatchingService creates a MatchingService.
func NewMatchingService(
	productRepo repositories.ProductRepository,
	outcomeRepo repositories.SalesOutcomeRepository,
	templates PromptTemplateService,
	llmFactory llm.LLMClientFactory,
	logger *zap.Logger,
) MatchingService {
	return &matchingService{
		productRepo: productRepo,
		outcomeRepo: outcomeRepo,
		templates:   templates,
		llmFactory:  llmFactory,
		logger:      logger.Named("matching"),
	}
}

var _ MatchingService = (*matchingService)(nil)

func profileOf(c *models.Company) prompts.CompanyProfile {
	return prompts.CompanyProfile{
		Name:                c.DisplayName(),
		Industry:            c.Industry,
		BusinessDescription: c.BusinessDescription,
		PainPoints:          c.PainPoints,
	}
}

func (s *matchingService) Match(ctx context.Context, company *models.Company, analysis string, pinned []uuid.UUID) (*MatchResult, error) {
	if len(pinned) > 0 {
		products, err := s.productRepo.GetByIDs(ctx, pinned)
		if err != nil {
			return nil, err
		}
		result := &MatchResult{Matches: make([]ProductMatch, 0, len(products))}
		for _, p := range products {
			result.Matches = append(result.Matches, ProductMatch{
				Product:         p,
				RelevanceScore:  pinnedRelevance,
				MatchingReasons: []string{"Selected by the sales representative"},
			})
		}
		return result, nil
	}

	products, err := s.productRepo.List(ctx, models.ProductFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return &MatchResult{Matches: []ProductMatch{}}, nil
	}

	reply, tokens, err := s.askAI(ctx, company, analysis, products)
	if err != nil {
		s.logger.Warn("Product matching failed, using highest-priority product",
			zap.String("company_id", company.ID.String()),
			zap.Error(err))
		return fallbackMatch(products), nil
	}

	result := rankMatches(reply, products)
	result.Tokens = tokens
	if len(result.Matches) == 0 {
		fallback := fallbackMatch(products)
		fallback.Tokens = tokens
		return fallback, nil
	}
	return result, nil
}

func (s *matchingService) askAI(ctx context.Context, company *models.Company, analysis string, products []*models.Product) (*prompts.MatchingResult, int, error) {
	summaries := make([]prompts.MatchProduct, 0, len(products))
	for _, p := range products {
		summaries = append(summaries, prompts.MatchProduct{
			ID:               p.ID.String(),
			Name:             p.Name,
			Code:             p.Code,
			Category:         p.CategoryName,
			Description:      p.ShortDescription,
			TargetIndustries: p.TargetIndustries,
			PainPointsSolved: p.PainPointsSolved,
			KeyFeatures:      p.FeatureNames(0),
		})
	}

	vars, err := prompts.ProductMatchingVars(profileOf(company), summaries, analysis)
	if err != nil {
		return nil, 0, err
	}
	resolved, err := s.templates.Resolve(ctx, prompts.TypeProductMatching, vars, float64Ptr(productMatchTemperature))
	if err != nil {
		return nil, 0, err
	}
	resp, err := generate(llm.WithPurpose(ctx, string(prompts.TypeProductMatching)), s.llmFactory, resolved)
	if err != nil {
		return nil, 0, err
	}

	parsed, err := llm.ParseJSONResponse[prompts.MatchingResult](resp.Content)
	if err != nil {
		return nil, resp.TotalTokens, err
	}
	return &parsed, resp.TotalTokens, nil
}

// rankMatches keeps recommendations that name a known product, clamps their
// scores to [0,1], sorts by score and keeps the top three.
func rankMatches(reply *prompts.MatchingResult, products []*models.Product) *MatchResult {
	byID := make(map[string]*models.Product, len(products))
	for _, p := range products {
		byID[p.ID.String()] = p
	}

	seen := make(map[string]bool)
	matches := make([]ProductMatch, 0, len(reply.RecommendedProducts))
	for _, rec := range reply.RecommendedProducts {
		id := strings.ToLower(strings.TrimSpace(rec.ProductID.String()))
		p, ok := byID[id]
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		matches = append(matches, ProductMatch{
			Product:         p,
			RelevanceScore:  min(max(rec.RelevanceScore.Float64(), 0), 1),
			MatchingReasons: rec.MatchingReasons.Strings(),
			ProposalAngle:   rec.ProposalAngle.String(),
		})
	}

	slices.SortStableFunc(matches, func(a, b ProductMatch) int {
		return cmp.Compare(b.RelevanceScore, a.RelevanceScore)
	})
	if len(matches) > maxRecommendedProducts {
		matches = matches[:maxRecommendedProducts]
	}
	return &MatchResult{Matches: matches, ProposalStrategy: reply.ProposalStrategy.String()}
}

// fallbackMatch proposes the first product of a priority-ordered list.
func fallbackMatch(products []*models.Product) *MatchResult {
	return &MatchResult{
		Matches: []ProductMatch{{
			Product:         products[0],
			RelevanceScore:  fallbackRelevance,
			MatchingReasons: []string{fallbackMatchReason},
			ProposalAngle:   products[0].ShortDescription,
		}},
		Fallback: true,
	}
}

func (s *matchingService) LearningContext(ctx context.Context, industry string) (*prompts.LearningContext, error) {
	lc := &prompts.LearningContext{
		SuccessPatterns:  []string{},
		AvoidPatterns:    []string{},
		CommonObjections: []string{},
	}
	if industry == "" {
		return lc, nil
	}

	won, err := s.outcomeRepo.ListTrainingOutcomes(ctx, industry, models.OutcomeWon, learningWonSample)
	if err != nil {
		return nil, err
	}
	for _, o := range won {
		if o.WhatWorked != "" {
			lc.SuccessPatterns = append(lc.SuccessPatterns, o.WhatWorked)
		}
	}

	lost, err := s.outcomeRepo.ListTrainingOutcomes(ctx, industry, models.OutcomeLost, learningLostSample)
	if err != nil {
		return nil, err
	}
	var objections []string
	for _, o := range lost {
		if o.WhatDidntWork != "" {
			lc.AvoidPatterns = append(lc.AvoidPatterns, o.WhatDidntWork)
		}
		objections = append(objections, o.CustomerObjections...)
	}
	lc.CommonObjections = prompts.Dedupe(objections)
	return lc, nil
}
