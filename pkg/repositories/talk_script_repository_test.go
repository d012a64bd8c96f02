//go:build integration

package repositories

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/testhelpers"
)

// scriptTestContext holds a user scope with one company and two products.
type scriptTestContext struct {
	db       *testhelpers.SalesDB
	ctx      context.Context
	userID   uuid.UUID
	company  *models.Company
	products []*models.Product
	scripts  TalkScriptRepository
}

func setupScriptTest(t *testing.T, industry string) *scriptTestContext {
	t.Helper()
	db := testhelpers.Postgres(t)
	userID := db.SeedUser(t, auth.RoleSalesRep)
	ctx := db.As(t, userID, auth.RoleSalesRep)

	company := &models.Company{
		URL:          "https://" + uuid.NewString()[:8] + ".example.com",
		Domain:       "example.com",
		CompanyName:  "Acme",
		Industry:     industry,
		ScrapeStatus: models.ScrapeSuccess,
		Status:       models.StatusCompleted,
	}
	require.NoError(t, NewCompanyRepository().Create(ctx, company))

	productRepo := NewProductRepository()
	var products []*models.Product
	for i, name := range []string{"Ledger", "Insight"} {
		p := &models.Product{
			Name:        name,
			Code:        name + "-" + uuid.NewString()[:6],
			IsActive:    true,
			Priority:    10 - i,
			KeyFeatures: []models.ProductFeature{{Name: "Fast"}},
		}
		require.NoError(t, productRepo.Create(ctx, p))
		products = append(products, p)
	}

	return &scriptTestContext{
		db:       db,
		ctx:      ctx,
		userID:   userID,
		company:  company,
		products: products,
		scripts:  NewTalkScriptRepository(),
	}
}

func (tc *scriptTestContext) createScript(t *testing.T) *models.TalkScript {
	t.Helper()
	s := &models.TalkScript{
		CompanyID:        tc.company.ID,
		SelectedSections: []string{"opening", "closing"},
		Status:           models.ScriptStatusDraft,
		GenerationStatus: models.StatusPending,
	}
	require.NoError(t, tc.scripts.Create(tc.ctx, s))
	return s
}

func TestTalkScriptRepository_GenerationLifecycle(t *testing.T) {
	tc := setupScriptTest(t, "Retail")
	script := tc.createScript(t)

	require.NotNil(t, script.CreatedBy)
	assert.Equal(t, tc.userID, *script.CreatedBy)
	assert.Equal(t, 1, script.Version)

	_, err := tc.scripts.MarkRegenerating(tc.ctx, script.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing)

	err = tc.scripts.SaveGeneration(tc.ctx, script.ID, &models.ScriptGeneration{
		Sections:              map[string]string{"opening": "Hello", "closing": "Thanks"},
		ModelUsed:             "gpt-4o",
		TotalTokens:           120,
		GenerationTimeSeconds: 1.5,
	})
	require.NoError(t, err)

	links := []*models.ProposalProductLink{
		{ProductID: tc.products[1].ID, RelevanceScore: 0.9, MatchingReasons: []string{"fit"}},
		{ProductID: tc.products[0].ID, RelevanceScore: 0.4},
	}
	require.NoError(t, tc.scripts.ReplaceProductLinks(tc.ctx, script.ID, links))

	got, err := tc.scripts.GetByID(tc.ctx, script.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ScriptStatusActive, got.Status)
	assert.Equal(t, models.StatusCompleted, got.GenerationStatus)
	assert.Equal(t, "Hello", got.ScriptSections["opening"])
	assert.Equal(t, "Acme", got.CompanyName)
	require.Len(t, got.Products, 2)
	assert.Equal(t, "Insight", got.Products[0].ProductName)
	assert.Equal(t, 1, got.Products[0].ProposalOrder)
	assert.Equal(t, 2, got.Products[1].ProposalOrder)

	regen, err := tc.scripts.MarkRegenerating(tc.ctx, script.ID, []string{"opening"})
	require.NoError(t, err)
	assert.Equal(t, 2, regen.Version)
	assert.Equal(t, models.StatusPending, regen.GenerationStatus)
	assert.Equal(t, []string{"opening"}, regen.SelectedSections)

	_, err = tc.scripts.MarkRegenerating(tc.ctx, uuid.New(), nil)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTalkScriptRepository_RegenerateStalePending(t *testing.T) {
	tc := setupScriptTest(t, "Hospitality")
	script := tc.createScript(t)

	_, err := tc.scripts.MarkRegenerating(tc.ctx, script.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing, "freshly queued")

	tc.db.Backdate(t, "talk_scripts", script.ID, "11 minutes")
	regen, err := tc.scripts.MarkRegenerating(tc.ctx, script.ID, nil)
	require.NoError(t, err, "pending past the grace period")
	assert.Equal(t, 2, regen.Version)

	require.NoError(t, tc.scripts.SetGenerationStatus(tc.ctx, script.ID, models.StatusProcessing, ""))
	tc.db.Backdate(t, "talk_scripts", script.ID, "1 hour")
	_, err = tc.scripts.MarkRegenerating(tc.ctx, script.ID, nil)
	assert.ErrorIs(t, err, apperrors.ErrAlreadyProcessing, "processing is never replaced")
}

func TestTalkScriptRepository_ListByOwner(t *testing.T) {
	tc := setupScriptTest(t, "Logistics")
	tc.createScript(t)
	tc.createScript(t)

	scripts, total, err := tc.scripts.List(tc.ctx, models.TalkScriptFilter{CreatedBy: &tc.userID})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, scripts, 2)

	other := uuid.New()
	_, total, err = tc.scripts.List(tc.ctx, models.TalkScriptFilter{CreatedBy: &other})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestTalkScriptRepository_FailStuck(t *testing.T) {
	tc := setupScriptTest(t, "Energy")
	script := tc.createScript(t)

	n, err := tc.scripts.FailStuck(tc.ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, int64(1))

	got, err := tc.scripts.GetByID(tc.ctx, script.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.GenerationStatus)
}

func TestSalesOutcomeRepository_TrainingAndStats(t *testing.T) {
	industry := "Healthcare-" + uuid.NewString()[:6]
	tc := setupScriptTest(t, industry)
	script := tc.createScript(t)
	repo := NewSalesOutcomeRepository()

	meeting := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	outcomes := []*models.SalesOutcome{
		{TalkScriptID: script.ID, Outcome: models.OutcomeWon, WhatWorked: "ROI story", UsedForTraining: true, MeetingDate: &meeting},
		{TalkScriptID: script.ID, Outcome: models.OutcomeLost, WhatDidntWork: "too long", CustomerObjections: []string{"price", "timing"}, UsedForTraining: true},
		{TalkScriptID: script.ID, Outcome: models.OutcomeLost, CustomerObjections: []string{"price"}, UsedForTraining: false},
	}
	for _, o := range outcomes {
		require.NoError(t, repo.Create(tc.ctx, o))
	}
	require.NotNil(t, outcomes[0].RecordedBy)
	assert.Equal(t, tc.userID, *outcomes[0].RecordedBy)

	won, err := repo.ListTrainingOutcomes(tc.ctx, industry, models.OutcomeWon, 5)
	require.NoError(t, err)
	require.Len(t, won, 1)
	assert.Equal(t, "ROI story", won[0].WhatWorked)
	require.NotNil(t, won[0].MeetingDate)
	assert.Equal(t, meeting.Format("2006-01-02"), won[0].MeetingDate.Format("2006-01-02"))

	lost, err := repo.ListTrainingOutcomes(tc.ctx, industry, models.OutcomeLost, 3)
	require.NoError(t, err)
	assert.Len(t, lost, 1, "outcomes not flagged for training are excluded")

	stats, err := repo.Stats(tc.ctx, models.SalesOutcomeFilter{TalkScriptID: &script.ID})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.ByOutcome[models.OutcomeWon])
	assert.Equal(t, 2, stats.ByOutcome[models.OutcomeLost])
	require.NotEmpty(t, stats.TopObjections)
	assert.Equal(t, models.ObjectionCount{Objection: "price", Count: 2}, stats.TopObjections[0])

	mine, err := repo.List(tc.ctx, models.SalesOutcomeFilter{ScriptOwner: &tc.userID})
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	outcomes[2].Notes = "follow up in Q3"
	require.NoError(t, repo.Update(tc.ctx, outcomes[2]))
	require.NoError(t, repo.Delete(tc.ctx, outcomes[2].ID))
	_, err = repo.GetByID(tc.ctx, outcomes[2].ID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestTrainingRepository_Stats(t *testing.T) {
	tc := setupScriptTest(t, "Finance")
	script := tc.createScript(t)
	repo := NewTrainingRepository()

	four, two := 4, 2
	sessions := []*models.TrainingSession{
		{UserID: tc.userID, TalkScriptID: &script.ID, DurationMinutes: 20, SectionsPracticed: []string{"opening", "closing"}, SelfRating: &four},
		{UserID: tc.userID, DurationMinutes: 10, SectionsPracticed: []string{"opening"}, SelfRating: &two},
		{UserID: tc.userID, DurationMinutes: 5},
	}
	for _, s := range sessions {
		require.NoError(t, repo.Create(tc.ctx, s))
	}

	stats, err := repo.Stats(tc.ctx, tc.userID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.SessionCount)
	assert.Equal(t, 35, stats.TotalMinutes)
	require.NotNil(t, stats.AverageRating)
	assert.InDelta(t, 3.0, *stats.AverageRating, 0.0001)
	assert.Equal(t, map[string]int{"opening": 2, "closing": 1}, stats.SessionsPerSection)

	empty, err := repo.Stats(tc.ctx, uuid.New())
	require.NoError(t, err)
	assert.Zero(t, empty.SessionCount)
	assert.Nil(t, empty.AverageRating)

	invalid := &models.TrainingSession{UserID: tc.userID, DurationMinutes: 0}
	assert.ErrorIs(t, repo.Create(tc.ctx, invalid), apperrors.ErrInvalidInput)
}

func TestExportRepository_Lifecycle(t *testing.T) {
	tc := setupScriptTest(t, "Media")
	script := tc.createScript(t)
	repo := NewExportRepository()

	export := &models.ExportHistory{TalkScriptID: script.ID, ExportType: models.ExportPPTX, Status: models.StatusPending}
	require.NoError(t, repo.Create(tc.ctx, export))

	require.NoError(t, repo.SetStatus(tc.ctx, export.ID, models.StatusProcessing, ""))
	require.NoError(t, repo.Complete(tc.ctx, export.ID, "/exports/2026/01/02/proposal.pptx", 2048))

	got, err := repo.GetByID(tc.ctx, export.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.Equal(t, int64(2048), got.FileSize)
	assert.Equal(t, "proposal.pptx", got.FileName())
	assert.NotNil(t, got.CompletedAt)

	mine, err := repo.List(tc.ctx, &tc.userID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	assert.ErrorIs(t, repo.SetStatus(tc.ctx, uuid.New(), models.StatusFailed, "x"), apperrors.ErrNotFound)
}
