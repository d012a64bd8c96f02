package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
)

func strPtr(s string) *string { return &s }

func TestPromptTemplateService_Resolve(t *testing.T) {
	ctx := context.Background()
	vars := prompts.Vars{"company_name": "Acme", "section_name": "Opening"}

	t.Run("builtin fallback uses settings model", func(t *testing.T) {
		svc := NewPromptTemplateService(newMockTemplateRepo(), newMockSettings(), zap.NewNop())

		got, err := svc.Resolve(ctx, prompts.TypeScriptOpening, vars, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PromptSourceBuiltin, got.Source)
		assert.Equal(t, "gpt-4o", got.Model)
		assert.Equal(t, 4000, got.MaxTokens)
		assert.Nil(t, got.TemplateID)
		assert.NotContains(t, got.User, "{{company_name}}")
	})

	t.Run("task temperature beats settings", func(t *testing.T) {
		svc := NewPromptTemplateService(newMockTemplateRepo(), newMockSettings(), zap.NewNop())

		got, err := svc.Resolve(ctx, prompts.TypeProductMatching, vars, float64Ptr(0.5))
		require.NoError(t, err)
		assert.InDelta(t, 0.5, got.Temperature, 1e-9)
	})

	t.Run("default template wins over newer template", func(t *testing.T) {
		def := &models.PromptTemplate{
			Name:               "opening-default",
			TemplateType:       prompts.TypeScriptOpening,
			UserPromptTemplate: "Default for {{company_name}}",
			IsActive:           true,
			IsDefault:          true,
			UpdatedAt:          time.Now().Add(-time.Hour),
		}
		newer := &models.PromptTemplate{
			Name:               "opening-newer",
			TemplateType:       prompts.TypeScriptOpening,
			UserPromptTemplate: "Newer for {{company_name}}",
			IsActive:           true,
			UpdatedAt:          time.Now(),
		}
		svc := NewPromptTemplateService(newMockTemplateRepo(def, newer), newMockSettings(), zap.NewNop())

		got, err := svc.Resolve(ctx, prompts.TypeScriptOpening, vars, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PromptSourceDefault, got.Source)
		assert.Equal(t, "Default for Acme", got.User)
		require.NotNil(t, got.TemplateID)
		assert.Equal(t, def.ID, *got.TemplateID)
	})

	t.Run("template overrides beat settings and task temperature", func(t *testing.T) {
		tmpl := &models.PromptTemplate{
			Name:                "matching",
			TemplateType:        prompts.TypeProductMatching,
			UserPromptTemplate:  "Match {{company_name}}",
			ModelOverride:       strPtr("gpt-4o-mini"),
			TemperatureOverride: float64Ptr(0.1),
			IsActive:            true,
		}
		svc := NewPromptTemplateService(newMockTemplateRepo(tmpl), newMockSettings(), zap.NewNop())

		got, err := svc.Resolve(ctx, prompts.TypeProductMatching, vars, float64Ptr(0.5))
		require.NoError(t, err)
		assert.Equal(t, models.PromptSourceLatest, got.Source)
		assert.Equal(t, "gpt-4o-mini", got.Model)
		assert.InDelta(t, 0.1, got.Temperature, 1e-9)
	})

	t.Run("inactive templates are skipped", func(t *testing.T) {
		tmpl := &models.PromptTemplate{
			Name:               "inactive",
			TemplateType:       prompts.TypeScriptClosing,
			UserPromptTemplate: "never",
			IsActive:           false,
		}
		svc := NewPromptTemplateService(newMockTemplateRepo(tmpl), newMockSettings(), zap.NewNop())

		got, err := svc.Resolve(ctx, prompts.TypeScriptClosing, vars, nil)
		require.NoError(t, err)
		assert.Equal(t, models.PromptSourceBuiltin, got.Source)
	})
}

func TestPromptTemplateService_UpdateVersioning(t *testing.T) {
	ctx := context.Background()
	tmpl := &models.PromptTemplate{
		Name:               "analysis",
		TemplateType:       prompts.TypeCSVAnalysis,
		SystemPrompt:       "You analyse data.",
		UserPromptTemplate: "Data: {{data_summary}}",
		IsActive:           true,
	}
	repo := newMockTemplateRepo(tmpl)
	svc := NewPromptTemplateService(repo, newMockSettings(), zap.NewNop())

	// Description only: no new version.
	got, err := svc.Update(ctx, tmpl.ID, &PromptTemplateRequest{Description: "CSV analysis"})
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
	assert.Empty(t, repo.bumps)

	// Prompt text change bumps the version.
	got, err = svc.Update(ctx, tmpl.ID, &PromptTemplateRequest{UserPromptTemplate: "Rows: {{data_summary}}"})
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Equal(t, []string{"Updated to version 2"}, repo.bumps)

	// A temperature override change bumps too.
	got, err = svc.Update(ctx, tmpl.ID, &PromptTemplateRequest{TemperatureOverride: float64Ptr(0.2), ChangeSummary: "cooler"})
	require.NoError(t, err)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, "cooler", repo.bumps[1])

	restored, err := svc.RestoreVersion(ctx, tmpl.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, 4, restored.Version)
	assert.Equal(t, "Rows: {{data_summary}}", restored.UserPromptTemplate)
	assert.Nil(t, restored.TemperatureOverride)
	assert.Equal(t, "Restored from version 2", repo.bumps[2])
}

func TestPromptTemplateService_UpdateRejectsBadOverrides(t *testing.T) {
	tmpl := &models.PromptTemplate{Name: "x", TemplateType: prompts.TypeCustom, UserPromptTemplate: "x", IsActive: true}
	svc := NewPromptTemplateService(newMockTemplateRepo(tmpl), newMockSettings(), zap.NewNop())

	_, err := svc.Update(context.Background(), tmpl.ID, &PromptTemplateRequest{TemperatureOverride: float64Ptr(2.5)})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Update(context.Background(), tmpl.ID, &PromptTemplateRequest{ModelOverride: strPtr("  ")})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestPromptTemplateService_Create(t *testing.T) {
	svc := NewPromptTemplateService(newMockTemplateRepo(), newMockSettings(), zap.NewNop())

	_, err := svc.Create(context.Background(), &PromptTemplateRequest{Name: "x", TemplateType: "bogus", UserPromptTemplate: "x"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = svc.Create(context.Background(), &PromptTemplateRequest{Name: "x", TemplateType: prompts.TypeCustom})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	got, err := svc.Create(context.Background(), &PromptTemplateRequest{
		Name:               " custom ",
		TemplateType:       prompts.TypeCustom,
		UserPromptTemplate: "Hello {{name}}",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom", got.Name)
	assert.True(t, got.IsActive)
	assert.Equal(t, 1, got.Version)
}

func TestPromptTemplateService_SetDefault(t *testing.T) {
	active := &models.PromptTemplate{Name: "a", TemplateType: prompts.TypeScriptClosing, UserPromptTemplate: "a", IsActive: true}
	other := &models.PromptTemplate{Name: "b", TemplateType: prompts.TypeScriptClosing, UserPromptTemplate: "b", IsActive: true, IsDefault: true}
	inactive := &models.PromptTemplate{Name: "c", TemplateType: prompts.TypeScriptClosing, UserPromptTemplate: "c"}
	repo := newMockTemplateRepo(active, other, inactive)
	svc := NewPromptTemplateService(repo, newMockSettings(), zap.NewNop())

	_, err := svc.SetDefault(context.Background(), inactive.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	got, err := svc.SetDefault(context.Background(), active.ID)
	require.NoError(t, err)
	assert.True(t, got.IsDefault)
	assert.False(t, repo.byID[other.ID].IsDefault)
}

func TestPromptTemplateService_Preview(t *testing.T) {
	tmpl := &models.PromptTemplate{
		Name:               "p",
		TemplateType:       prompts.TypeCustom,
		SystemPrompt:       "You help {{team}}.",
		UserPromptTemplate: "Write for {{ company_name }} in {{industry}}.",
		IsActive:           true,
	}
	svc := NewPromptTemplateService(newMockTemplateRepo(tmpl), newMockSettings(), zap.NewNop())

	got, err := svc.Preview(context.Background(), tmpl.ID, prompts.Vars{"company_name": "Acme", "team": "sales"})
	require.NoError(t, err)
	assert.Equal(t, "You help sales.", got.SystemPrompt)
	assert.Equal(t, "Write for Acme in .", got.UserPrompt)
	assert.Equal(t, []string{"team", "company_name", "industry"}, got.Variables)
	assert.Equal(t, []string{"industry"}, got.MissingVariables)
}

func TestPromptTemplateService_SeedIsIdempotent(t *testing.T) {
	defaults, err := prompts.Defaults()
	require.NoError(t, err)

	repo := newMockTemplateRepo()
	svc := NewPromptTemplateService(repo, newMockSettings(), zap.NewNop())

	n, err := svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Equal(t, len(defaults), n)

	n, err = svc.Seed(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	for _, tmpl := range repo.byID {
		assert.True(t, tmpl.IsDefault, tmpl.Name)
	}
}
