package models

import (
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scrape status values describing how complete the supplied content is.
const (
	ScrapeSuccess = "success"
	ScrapePartial = "partial"
	ScrapeFailed  = "failed"
)

// CompanyRefreshDays is how old company content may get before it should be refreshed.
const CompanyRefreshDays = 30

// Company is a sales target and its AI-structured profile.
type Company struct {
	ID                  uuid.UUID  `json:"id"`
	URL                 string     `json:"url"`
	Domain              string     `json:"domain"`
	Title               string     `json:"title"`
	MetaDescription     string     `json:"meta_description"`
	MainContent         string     `json:"main_content,omitempty"`
	CompanyName         string     `json:"company_name"`
	BusinessDescription string     `json:"business_description"`
	Industry            string     `json:"industry"`
	KeyServices         []string   `json:"key_services"`
	TargetMarket        string     `json:"target_market"`
	AISummary           string     `json:"ai_summary"`
	PainPoints          []string   `json:"pain_points"`
	ScrapeStatus        string     `json:"scrape_status"`
	Status              string     `json:"status"`
	ErrorMessage        string     `json:"error_message,omitempty"`
	ScrapedAt           time.Time  `json:"scraped_at"`
	CreatedBy           *uuid.UUID `json:"created_by,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// DisplayName returns the structured company name, then the page title, then the domain.
func (c *Company) DisplayName() string {
	switch {
	case c.CompanyName != "":
		return c.CompanyName
	case c.Title != "":
		return c.Title
	default:
		return c.Domain
	}
}

// NeedsUpdate reports whether the content is older than days.
func (c *Company) NeedsUpdate(now time.Time, days int) bool {
	return now.Sub(c.ScrapedAt) > time.Duration(days)*24*time.Hour
}

// DomainFromURL returns the host of rawURL without a leading "www.".
func DomainFromURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// CompanyFilter narrows a company listing.
type CompanyFilter struct {
	Name         string
	Industry     string
	ScrapeStatus string
	Limit        int
	Offset       int
}

// CompanyStats summarises the company table.
type CompanyStats struct {
	Total          int            `json:"total"`
	ByScrapeStatus map[string]int `json:"by_scrape_status"`
	ByIndustry     map[string]int `json:"by_industry"`
}
