package repositories

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// CompanyRepository provides data access for target companies.
type CompanyRepository interface {
	Create(ctx context.Context, c *models.Company) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error)
	GetByURL(ctx context.Context, url string) (*models.Company, error)
	// List returns one page of companies and the total number matching the filter.
	List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error)
	Update(ctx context.Context, c *models.Company) error
	SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*models.CompanyStats, error)
	// FailStuck marks companies left in processing since before cutoff as failed.
	FailStuck(ctx context.Context, cutoff time.Time) (int64, error)
}

type companyRepository struct{}

// NewCompanyRepository creates a new CompanyRepository.
func NewCompanyRepository() CompanyRepository {
	return &companyRepository{}
}

var _ CompanyRepository = (*companyRepository)(nil)

const companyColumns = `id, url, domain, title, meta_description, main_content, company_name,
	business_description, industry, key_services, target_market, ai_summary, pain_points,
	scrape_status, status, error_message, scraped_at, created_by, created_at, updated_at`

func (r *companyRepository) Create(ctx context.Context, c *models.Company) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO companies (url, domain, title, meta_description, main_content, company_name,
		                       business_description, industry, key_services, target_market,
		                       ai_summary, pain_points, scrape_status, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id, scraped_at, created_by, created_at, updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		c.URL,
		c.Domain,
		c.Title,
		c.MetaDescription,
		c.MainContent,
		c.CompanyName,
		c.BusinessDescription,
		c.Industry,
		nonNil(c.KeyServices),
		c.TargetMarket,
		c.AISummary,
		nonNil(c.PainPoints),
		c.ScrapeStatus,
		c.Status,
	).Scan(&c.ID, &c.ScrapedAt, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt)
	return wrapErr("create company", err)
}

func (r *companyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE id = $1`, id)
}

func (r *companyRepository) GetByURL(ctx context.Context, url string) (*models.Company, error) {
	return r.getOne(ctx, `SELECT `+companyColumns+` FROM companies WHERE url = $1`, url)
}

func (r *companyRepository) getOne(ctx context.Context, query string, arg any) (*models.Company, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	c, err := scanCompany(scope.Conn.QueryRow(ctx, query, arg))
	if err != nil {
		return nil, wrapErr("get company", err)
	}
	return c, nil
}

func (r *companyRepository) List(ctx context.Context, filter models.CompanyFilter) ([]*models.Company, int, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, 0, err
	}

	var w whereBuilder
	if filter.Name != "" {
		w.add("(company_name ILIKE ? OR title ILIKE ?)", likePattern(filter.Name), likePattern(filter.Name))
	}
	if filter.Industry != "" {
		w.add("industry = ?", filter.Industry)
	}
	if filter.ScrapeStatus != "" {
		w.add("scrape_status = ?", filter.ScrapeStatus)
	}

	var total int
	if err := scope.Conn.QueryRow(ctx, `SELECT count(*) FROM companies`+w.sql(), w.args...).Scan(&total); err != nil {
		return nil, 0, wrapErr("count companies", err)
	}

	limit, offset := normalizePageParams(filter.Limit, filter.Offset)
	query := `SELECT ` + companyColumns + ` FROM companies` + w.sql() +
		` ORDER BY created_at DESC LIMIT ` + w.next(limit) + ` OFFSET ` + w.next(offset)

	rows, err := scope.Conn.Query(ctx, query, w.args...)
	if err != nil {
		return nil, 0, wrapErr("list companies", err)
	}
	defer rows.Close()

	companies := make([]*models.Company, 0)
	for rows.Next() {
		c, err := scanCompany(rows)
		if err != nil {
			return nil, 0, wrapErr("scan company", err)
		}
		companies = append(companies, c)
	}
	return companies, total, rows.Err()
}

func (r *companyRepository) Update(ctx context.Context, c *models.Company) error {
	scope, err := getScope(ctx)
	if err != nil {
		return err
	}

	query := `
		UPDATE companies
		SET url = $2, domain = $3, title = $4, meta_description = $5, main_content = $6,
		    company_name = $7, business_description = $8, industry = $9, key_services = $10,
		    target_market = $11, ai_summary = $12, pain_points = $13, scrape_status = $14,
		    status = $15, error_message = $16, scraped_at = $17
		WHERE id = $1
		RETURNING updated_at`

	err = scope.Conn.QueryRow(ctx, query,
		c.ID,
		c.URL,
		c.Domain,
		c.Title,
		c.MetaDescription,
		c.MainContent,
		c.CompanyName,
		c.BusinessDescription,
		c.Industry,
		nonNil(c.KeyServices),
		c.TargetMarket,
		c.AISummary,
		nonNil(c.PainPoints),
		c.ScrapeStatus,
		c.Status,
		c.ErrorMessage,
		c.ScrapedAt,
	).Scan(&c.UpdatedAt)
	return wrapErr("update company", err)
}

func (r *companyRepository) SetStatus(ctx context.Context, id uuid.UUID, status, errorMessage string) error {
	return execOne(ctx, "set company status",
		`UPDATE companies SET status = $2, error_message = $3 WHERE id = $1`, id, status, errorMessage)
}

func (r *companyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, "delete company", `DELETE FROM companies WHERE id = $1`, id)
}

func (r *companyRepository) Stats(ctx context.Context) (*models.CompanyStats, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return nil, err
	}

	stats := &models.CompanyStats{
		ByScrapeStatus: make(map[string]int),
		ByIndustry:     make(map[string]int),
	}

	rows, err := scope.Conn.Query(ctx, `SELECT scrape_status, count(*) FROM companies GROUP BY scrape_status`)
	if err != nil {
		return nil, wrapErr("count companies by status", err)
	}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			rows.Close()
			return nil, wrapErr("scan company status count", err)
		}
		stats.ByScrapeStatus[status] = n
		stats.Total += n
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, wrapErr("count companies by status", err)
	}

	rows, err = scope.Conn.Query(ctx, `
		SELECT industry, count(*) FROM companies
		WHERE industry <> ''
		GROUP BY industry
		ORDER BY count(*) DESC, industry`)
	if err != nil {
		return nil, wrapErr("count companies by industry", err)
	}
	defer rows.Close()
	for rows.Next() {
		var industry string
		var n int
		if err := rows.Scan(&industry, &n); err != nil {
			return nil, wrapErr("scan company industry count", err)
		}
		stats.ByIndustry[industry] = n
	}
	return stats, rows.Err()
}

func (r *companyRepository) FailStuck(ctx context.Context, cutoff time.Time) (int64, error) {
	scope, err := getScope(ctx)
	if err != nil {
		return 0, err
	}

	result, err := scope.Conn.Exec(ctx, `
		UPDATE companies
		SET status = 'failed', error_message = 'structuring did not finish'
		WHERE status IN ('pending', 'processing') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, wrapErr("fail stuck companies", err)
	}
	return result.RowsAffected(), nil
}

func scanCompany(row pgx.Row) (*models.Company, error) {
	var c models.Company
	err := row.Scan(
		&c.ID,
		&c.URL,
		&c.Domain,
		&c.Title,
		&c.MetaDescription,
		&c.MainContent,
		&c.CompanyName,
		&c.BusinessDescription,
		&c.Industry,
		&c.KeyServices,
		&c.TargetMarket,
		&c.AISummary,
		&c.PainPoints,
		&c.ScrapeStatus,
		&c.Status,
		&c.ErrorMessage,
		&c.ScrapedAt,
		&c.CreatedBy,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
