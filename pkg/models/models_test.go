package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestUserPermissions(t *testing.T) {
	tests := []struct {
		role        string
		settings    bool
		viewAll     bool
		editProduct bool
	}{
		{RoleAdmin, true, true, true},
		{RoleSalesManager, false, true, false},
		{RoleSalesRep, false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			u := &User{Role: tt.role}
			assert.Equal(t, tt.settings, u.CanEditSettings())
			assert.Equal(t, tt.viewAll, u.CanViewAllProposals())
			assert.Equal(t, tt.editProduct, u.CanEditProducts())
		})
	}
	assert.False(t, IsValidRole("owner"))
}

func TestUserFullName(t *testing.T) {
	assert.Equal(t, "Hana Sato", (&User{FirstName: "Hana", LastName: "Sato"}).FullName())
	assert.Equal(t, "hsato", (&User{Username: "hsato"}).FullName())
}

func TestCompany_NeedsUpdate(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	c := &Company{ScrapedAt: now.AddDate(0, 0, -31)}
	assert.True(t, c.NeedsUpdate(now, CompanyRefreshDays))

	c.ScrapedAt = now.AddDate(0, 0, -5)
	assert.False(t, c.NeedsUpdate(now, CompanyRefreshDays))
}

func TestDomainFromURL(t *testing.T) {
	assert.Equal(t, "example.co.jp", DomainFromURL("https://www.Example.co.jp/about"))
	assert.Equal(t, "acme.com", DomainFromURL("http://acme.com:8080"))
	assert.Empty(t, DomainFromURL("not a url"))
}

func TestCompany_DisplayName(t *testing.T) {
	c := &Company{Domain: "acme.com"}
	assert.Equal(t, "acme.com", c.DisplayName())
	c.Title = "Acme | Home"
	assert.Equal(t, "Acme | Home", c.DisplayName())
	c.CompanyName = "Acme Inc."
	assert.Equal(t, "Acme Inc.", c.DisplayName())
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("abc"), ContentHash("abc"))
	assert.NotEqual(t, ContentHash("abc"), ContentHash("abd"))
	assert.Len(t, ContentHash(""), 64)
}

func TestProduct_FeatureNames(t *testing.T) {
	p := &Product{KeyFeatures: []ProductFeature{{Name: "a"}, {Name: "b"}, {Name: "c"}}}
	assert.Equal(t, []string{"a", "b"}, p.FeatureNames(2))
	assert.Equal(t, []string{"a", "b", "c"}, p.FeatureNames(0))
}

func TestTalkScript_IsOwnedBy(t *testing.T) {
	owner := uuid.New()
	s := &TalkScript{CreatedBy: &owner}
	assert.True(t, s.IsOwnedBy(owner))
	assert.False(t, s.IsOwnedBy(uuid.New()))
	assert.False(t, (&TalkScript{}).IsOwnedBy(owner))
}

func TestEnumValidators(t *testing.T) {
	assert.True(t, IsValidOutcome(OutcomeNoResponse))
	assert.False(t, IsValidOutcome("maybe"))
	assert.True(t, IsValidScriptStatus(ScriptStatusArchived))
	assert.False(t, IsValidScriptStatus("deleted"))
	assert.True(t, IsValidKnowledgeSource(KnowledgeSourceManual))
	assert.False(t, IsValidKnowledgeSource("email"))
	assert.True(t, IsTerminalStatus(StatusFailed))
	assert.False(t, IsTerminalStatus(StatusProcessing))
}
