package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ProductCategory groups products; categories may nest through ParentID.
type ProductCategory struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ParentID    *uuid.UUID `json:"parent_id,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProductFeature is one named feature of a product.
type ProductFeature struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Product is an item of the catalogue that can be proposed to a company.
type Product struct {
	ID                    uuid.UUID        `json:"id"`
	Name                  string           `json:"name"`
	Code                  string           `json:"code"`
	CategoryID            *uuid.UUID       `json:"category_id,omitempty"`
	CategoryName          string           `json:"category_name,omitempty"`
	ShortDescription      string           `json:"short_description"`
	FullDescription       string           `json:"full_description"`
	TargetIndustries      []string         `json:"target_industries"`
	TargetCustomerSize    []string         `json:"target_customer_size"`
	PainPointsSolved      []string         `json:"pain_points_solved"`
	KeyFeatures           []ProductFeature `json:"key_features"`
	PricingModel          string           `json:"pricing_model"`
	PriceRange            string           `json:"price_range"`
	SuccessCases          string           `json:"success_cases"`
	CompetitiveAdvantages []string         `json:"competitive_advantages"`
	IsActive              bool             `json:"is_active"`
	Priority              int              `json:"priority"`
	CreatedAt             time.Time        `json:"created_at"`
	UpdatedAt             time.Time        `json:"updated_at"`
}

// FeatureNames returns the names of the first limit features; limit <= 0 returns all.
func (p *Product) FeatureNames(limit int) []string {
	features := p.KeyFeatures
	if limit > 0 && len(features) > limit {
		features = features[:limit]
	}
	names := make([]string, 0, len(features))
	for _, f := range features {
		names = append(names, f.Name)
	}
	return names
}

// ProductFilter narrows a product listing.
type ProductFilter struct {
	CategoryID *uuid.UUID
	Industry   string
	Search     string
	ActiveOnly bool
}

// Knowledge source types.
const (
	KnowledgeSourceURL    = "url"
	KnowledgeSourcePDF    = "pdf"
	KnowledgeSourceText   = "text"
	KnowledgeSourceManual = "manual"
)

// IsValidKnowledgeSource reports whether s is a known source type.
func IsValidKnowledgeSource(s string) bool {
	switch s {
	case KnowledgeSourceURL, KnowledgeSourcePDF, KnowledgeSourceText, KnowledgeSourceManual:
		return true
	}
	return false
}

// ProductKnowledge is one chunk of reference material about a product.
type ProductKnowledge struct {
	ID             uuid.UUID       `json:"id"`
	ProductID      uuid.UUID       `json:"product_id"`
	SourceType     string          `json:"source_type"`
	SourceURL      string          `json:"source_url,omitempty"`
	Title          string          `json:"title"`
	Content        string          `json:"content"`
	StructuredData json.RawMessage `json:"structured_data,omitempty"`
	ContentHash    string          `json:"content_hash"`
	ChunkIndex     int             `json:"chunk_index"`
	IsActive       bool            `json:"is_active"`
	Status         string          `json:"status"`
	ErrorMessage   string          `json:"error_message,omitempty"`
	ProcessedAt    *time.Time      `json:"processed_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ContentHash returns the hex sha256 of content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
