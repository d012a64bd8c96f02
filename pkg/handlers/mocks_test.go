package handlers

import (
	"context"
	"net/http"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/ekaya-inc/ekaya-sales/pkg/auth"
	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/services"
)

// recordedActivity is one call to ActivityService.Record.
type recordedActivity struct {
	Action     string
	TargetType string
	TargetID   string
	Summary    string
	Meta       services.RequestMeta
}

// mockActivityService records activities in memory.
type mockActivityService struct {
	mu      sync.Mutex
	entries []recordedActivity
}

func (m *mockActivityService) Record(ctx context.Context, action, targetType, targetID, summary string, meta services.RequestMeta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, recordedActivity{action, targetType, targetID, summary, meta})
}

func (m *mockActivityService) List(ctx context.Context, filter models.ActivityLogFilter) ([]*models.ActivityLog, error) {
	return nil, nil
}

func (m *mockActivityService) recorded() []recordedActivity {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]recordedActivity(nil), m.entries...)
}

// mockCompanyService serves one company. Unused methods panic through the nil embedded interface.
type mockCompanyService struct {
	services.CompanyService
	company *models.Company
	err     error
	filter  models.CompanyFilter
	created *services.CompanyRequest
}

func (m *mockCompanyService) List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error) {
	m.filter = filter
	if m.err != nil {
		return nil, 0, m.err
	}
	return []*models.Company{m.company}, 41, nil
}

func (m *mockCompanyService) Get(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.company, nil
}

func (m *mockCompanyService) Create(ctx context.Context, req *services.CompanyRequest) (*models.Company, error) {
	m.created = req
	if m.err != nil {
		return nil, m.err
	}
	return m.company, nil
}

// mockExportService opens a fixed file.
type mockExportService struct {
	services.ExportService
	export  *models.ExportHistory
	openErr error
}

func (m *mockExportService) Open(ctx context.Context, id uuid.UUID) (*models.ExportHistory, *os.File, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	f, err := os.Open(m.export.FilePath)
	if err != nil {
		return nil, nil, err
	}
	return m.export, f, nil
}

// mockUserService answers logins with a canned result.
type mockUserService struct {
	services.UserService
	result   *services.LoginResult
	loginErr error
	clientIP string
}

func (m *mockUserService) Login(ctx context.Context, username, password, clientIP string) (*services.LoginResult, error) {
	m.clientIP = clientIP
	if m.loginErr != nil {
		return nil, m.loginErr
	}
	return m.result, nil
}

// stubAuthService authenticates every request as principal, or fails with err.
type stubAuthService struct {
	principal auth.Principal
	err       error
}

func (s *stubAuthService) ValidateRequest(r *http.Request) (*auth.Claims, string, error) {
	if s.err != nil {
		return nil, "", s.err
	}
	return auth.ClaimsFor(s.principal, "ekaya-sales"), "token", nil
}

// passthroughScope stands in for a database scope middleware.
func passthroughScope(next http.HandlerFunc) http.HandlerFunc {
	return next
}
