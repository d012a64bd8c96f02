package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

type fakeScopes struct{ opened, closed int }

func (f *fakeScopes) WithScope(ctx context.Context, userID uuid.UUID) (context.Context, func(), error) {
	f.opened++
	return ctx, func() { f.closed++ }, nil
}

type fakeCompanies struct {
	services.CompanyService
	companies []*models.Company
	filter    models.CompanyFilter
	err       error
}

func (f *fakeCompanies) List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error) {
	f.filter = filter
	return f.companies, len(f.companies), f.err
}

func (f *fakeCompanies) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.companies[0], nil
}

type fakeProducts struct {
	services.ProductService
	filter models.ProductFilter
}

func (f *fakeProducts) List(ctx context.Context, filter models.ProductFilter) ([]*models.Product, error) {
	f.filter = filter
	return []*models.Product{{
		ID:          uuid.New(),
		Name:        "CRM Suite",
		Code:        "CRM-1",
		KeyFeatures: []models.ProductFeature{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}, {Name: "e"}, {Name: "f"}},
	}}, nil
}

type fakeScripts struct {
	services.TalkScriptService
	err error
}

func (f *fakeScripts) Get(ctx context.Context, id uuid.UUID) (*models.TalkScript, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.TalkScript{ID: id, ScriptSections: map[string]string{"opening": "Hello"}}, nil
}

type fakeMatching struct {
	services.MatchingService
	industry string
}

func (f *fakeMatching) LearningContext(ctx context.Context, industry string) (*prompts.LearningContext, error) {
	f.industry = industry
	return &prompts.LearningContext{SuccessPatterns: []string{"ROI story"}, AvoidPatterns: []string{}, CommonObjections: []string{"price"}}, nil
}

type toolEnv struct {
	server    *server.MCPServer
	scopes    *fakeScopes
	companies *fakeCompanies
	products  *fakeProducts
	scripts   *fakeScripts
	matching  *fakeMatching
}

func newToolEnv() *toolEnv {
	env := &toolEnv{
		server: server.NewMCPServer("test", "1.0.0", server.WithToolCapabilities(true)),
		scopes: &fakeScopes{},
		companies: &fakeCompanies{companies: []*models.Company{{
			ID: uuid.New(), CompanyName: "Acme", Domain: "acme.com", Industry: "retail", MainContent: "long page",
		}}},
		products: &fakeProducts{},
		scripts:  &fakeScripts{},
		matching: &fakeMatching{},
	}
	RegisterAll(env.server, &Deps{
		Scopes:      env.scopes,
		Companies:   env.companies,
		Products:    env.products,
		TalkScripts: env.scripts,
		Matching:    env.matching,
		Logger:      zap.NewNop(),
	}, "1.2.3")
	return env
}

func userCtx() context.Context {
	return auth.WithClaims(context.Background(), auth.ClaimsFor(auth.Principal{UserID: uuid.New(), Role: auth.RoleSalesRep}, "ekaya-sales"))
}

type toolResponse struct {
	Result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
		IsError bool `json:"isError"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func (e *toolEnv) call(t *testing.T, ctx context.Context, name string, args map[string]any) toolResponse {
	t.Helper()
	params, err := json.Marshal(map[string]any{"name": name, "arguments": args})
	require.NoError(t, err)

	raw := e.server.HandleMessage(ctx, []byte(fmt.Sprintf(`{"jsonrpc":"2.0","method":"tools/call","params":%s,"id":1}`, params)))
	body, err := json.Marshal(raw)
	require.NoError(t, err)

	var resp toolResponse
	require.NoError(t, json.Unmarshal(body, &resp))
	return resp
}

func TestToolsList(t *testing.T) {
	env := newToolEnv()
	raw := env.server.HandleMessage(context.Background(), []byte(`{"jsonrpc":"2.0","method":"tools/list","id":1}`))
	body, err := json.Marshal(raw)
	require.NoError(t, err)

	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))

	var names []string
	for _, tool := range resp.Result.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{
		"health", "list_companies", "get_company", "list_products", "get_talk_script", "get_learning_context",
	}, names)
}

func TestHealthTool(t *testing.T) {
	resp := newToolEnv().call(t, context.Background(), "health", nil)
	require.Len(t, resp.Result.Content, 1)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, resp.Result.Content[0].Text)
}

func TestHealthTool_EchoesCaller(t *testing.T) {
	resp := newToolEnv().call(t, userCtx(), "health", nil)
	require.Len(t, resp.Result.Content, 1)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3","role":"sales_rep"}`, resp.Result.Content[0].Text)
}

func TestListCompanies_ClampsLimitAndScopes(t *testing.T) {
	env := newToolEnv()
	resp := env.call(t, userCtx(), "list_companies", map[string]any{"name": " Acme ", "limit": 500})

	require.Nil(t, resp.Error)
	assert.False(t, resp.Result.IsError)
	assert.Equal(t, "Acme", env.companies.filter.Name)
	assert.Equal(t, maxCompanyLimit, env.companies.filter.Limit)
	assert.Equal(t, 1, env.scopes.opened)
	assert.Equal(t, 1, env.scopes.closed)

	var out struct {
		Companies []companySummary `json:"companies"`
		Total     int              `json:"total"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	assert.Equal(t, 1, out.Total)
	assert.Equal(t, "Acme", out.Companies[0].Name)
}

func TestListCompanies_RequiresAuth(t *testing.T) {
	env := newToolEnv()
	resp := env.call(t, context.Background(), "list_companies", nil)

	require.NotNil(t, resp.Error)
	assert.Contains(t, resp.Error.Message, "authentication required")
	assert.Zero(t, env.scopes.opened)
}

func TestGetCompany(t *testing.T) {
	t.Run("omits page content", func(t *testing.T) {
		env := newToolEnv()
		resp := env.call(t, userCtx(), "get_company", map[string]any{"company_id": uuid.NewString()})
		require.False(t, resp.Result.IsError)
		assert.NotContains(t, resp.Result.Content[0].Text, "long page")
		assert.Contains(t, resp.Result.Content[0].Text, "acme.com")
	})

	t.Run("invalid id", func(t *testing.T) {
		env := newToolEnv()
		resp := env.call(t, userCtx(), "get_company", map[string]any{"company_id": "nope"})
		assert.True(t, resp.Result.IsError)
		assert.Contains(t, resp.Result.Content[0].Text, "invalid_parameters")
		assert.Zero(t, env.scopes.opened)
	})

	t.Run("not found", func(t *testing.T) {
		env := newToolEnv()
		env.companies.err = fmt.Errorf("company: %w", apperrors.ErrNotFound)
		resp := env.call(t, userCtx(), "get_company", map[string]any{"company_id": uuid.NewString()})
		assert.True(t, resp.Result.IsError)
		assert.Contains(t, resp.Result.Content[0].Text, "company_not_found")
	})
}

func TestListProducts_ActiveOnlyAndFeatureCap(t *testing.T) {
	env := newToolEnv()
	resp := env.call(t, userCtx(), "list_products", map[string]any{"industry": "retail"})

	require.False(t, resp.Result.IsError)
	assert.True(t, env.products.filter.ActiveOnly)
	assert.Equal(t, "retail", env.products.filter.Industry)

	var out struct {
		Products []productSummary `json:"products"`
	}
	require.NoError(t, json.Unmarshal([]byte(resp.Result.Content[0].Text), &out))
	require.Len(t, out.Products, 1)
	assert.Len(t, out.Products[0].KeyFeatures, 5)
}

func TestGetTalkScript_Forbidden(t *testing.T) {
	env := newToolEnv()
	env.scripts.err = apperrors.ErrForbidden
	resp := env.call(t, userCtx(), "get_talk_script", map[string]any{"talk_script_id": uuid.NewString()})

	assert.True(t, resp.Result.IsError)
	assert.Contains(t, resp.Result.Content[0].Text, "forbidden")
}

func TestGetLearningContext(t *testing.T) {
	env := newToolEnv()

	resp := env.call(t, userCtx(), "get_learning_context", map[string]any{"industry": "  "})
	assert.True(t, resp.Result.IsError)

	resp = env.call(t, userCtx(), "get_learning_context", map[string]any{"industry": "retail"})
	require.False(t, resp.Result.IsError)
	assert.Equal(t, "retail", env.matching.industry)
	assert.Contains(t, resp.Result.Content[0].Text, "ROI story")
}
