package services

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
	"github.com/ekaya-inc/ekaya-sales/pkg/prompts"
	"github.com/ekaya-inc/ekaya-sales/pkg/repositories"
	"github.com/ekaya-inc/ekaya-sales/pkg/services/workqueue"
	"github.com/ekaya-inc/ekaya-sales/pkg/slides"
)

// proposalFeatureLimit caps the features listed on a product slide.
const proposalFeatureLimit = 5

var unsafeFileChars = regexp.MustCompile(`[^\p{L}\p{N}_-]+`)

// ExportFileName returns proposal_<company>_<yyyymmdd_hhmmss>.pptx.
func ExportFileName(company string, at time.Time) string {
	name := strings.Trim(unsafeFileChars.ReplaceAllString(company, "_"), "_")
	if name == "" {
		name = "company"
	}
	return fmt.Sprintf("proposal_%s_%s.pptx", name, at.Format("20060102_150405"))
}

// ExportPath places a file under <dir>/YYYY/MM/DD/.
func ExportPath(dir, fileName string, at time.Time) string {
	return filepath.Join(dir, at.Format("2006"), at.Format("01"), at.Format("02"), fileName)
}

// BuildProposalDeck lays out a talk-script as slides: cover, company profile,
// one slide per generated section and one per proposed product.
func BuildProposalDeck(script *models.TalkScript, company *models.Company, products map[uuid.UUID]*models.Product, at time.Time) *slides.Deck {
	name := company.DisplayName()
	deck := &slides.Deck{
		Title:   name + " Proposal",
		Author:  "ekaya-sales",
		Created: at,
	}

	deck.Slides = append(deck.Slides, slides.Slide{
		Title: deck.Title,
		Body:  []slides.Paragraph{slides.Text(at.Format("2006-01-02"))},
		Cover: true,
	})

	profile := []slides.Paragraph{slides.Heading(name)}
	if company.Industry != "" {
		profile = append(profile, slides.Bullet("Industry: "+company.Industry))
	}
	if company.BusinessDescription != "" {
		profile = append(profile, slides.Bullet(prompts.Truncate(company.BusinessDescription, 300)))
	}
	if len(company.KeyServices) > 0 {
		profile = append(profile, slides.Bullet("Key services: "+strings.Join(company.KeyServices, ", ")))
	}
	if company.TargetMarket != "" {
		profile = append(profile, slides.Bullet("Target market: "+company.TargetMarket))
	}
	if len(company.PainPoints) > 0 {
		profile = append(profile, slides.Bullet("Challenges"))
		for _, p := range company.PainPoints {
			profile = append(profile, slides.Paragraph{Text: p, Bullet: true, Level: 1})
		}
	}
	deck.Slides = append(deck.Slides, slides.Slide{Title: "Company Profile", Body: profile})

	for _, section := range prompts.Sections {
		content, ok := script.ScriptSections[section]
		if !ok || strings.TrimSpace(content) == "" {
			continue
		}
		deck.Slides = append(deck.Slides, slides.Slide{
			Title: prompts.SectionTitle(section),
			Body:  slides.Lines(content),
		})
	}

	for _, link := range script.Products {
		title := link.ProductName
		var body []slides.Paragraph
		if link.ProposalAngle != "" {
			body = append(body, slides.Heading(link.ProposalAngle))
		}
		if p, ok := products[link.ProductID]; ok {
			if title == "" {
				title = p.Name
			}
			if p.ShortDescription != "" {
				body = append(body, slides.Text(p.ShortDescription))
			}
			for _, f := range p.FeatureNames(proposalFeatureLimit) {
				body = append(body, slides.Bullet(f))
			}
		}
		deck.Slides = append(deck.Slides, slides.Slide{Title: title, Body: body})
	}
	return deck
}

// ExportTask renders a talk-script export to disk.
type ExportTask struct {
	workqueue.BaseTask
	repo        repositories.ExportRepository
	scriptRepo  repositories.TalkScriptRepository
	companyRepo repositories.CompanyRepository
	productRepo repositories.ProductRepository
	taskCtx     TaskContextFunc
	exportDir   string
	logger      *zap.Logger
	exportID    uuid.UUID
	scriptID    uuid.UUID
	now         func() time.Time
}

// ExportTaskDeps are the collaborators shared by every export task.
type ExportTaskDeps struct {
	Repo        repositories.ExportRepository
	ScriptRepo  repositories.TalkScriptRepository
	CompanyRepo repositories.CompanyRepository
	ProductRepo repositories.ProductRepository
	TaskCtx     TaskContextFunc
	ExportDir   string
	Logger      *zap.Logger
}

// NewExportTask creates the render task for export.
func NewExportTask(deps ExportTaskDeps, export *models.ExportHistory, owner *uuid.UUID) *ExportTask {
	return &ExportTask{
		BaseTask:    workqueue.NewBaseTask("Export talk-script", false, resourceRef(ResourceExport, export.ID, owner)),
		repo:        deps.Repo,
		scriptRepo:  deps.ScriptRepo,
		companyRepo: deps.CompanyRepo,
		productRepo: deps.ProductRepo,
		taskCtx:     deps.TaskCtx,
		exportDir:   deps.ExportDir,
		logger:      deps.Logger.Named("export"),
		exportID:    export.ID,
		scriptID:    export.TalkScriptID,
		now:         time.Now,
	}
}

var (
	_ workqueue.Task           = (*ExportTask)(nil)
	_ workqueue.FailureHandler = (*ExportTask)(nil)
)

// Execute implements workqueue.Task.
func (t *ExportTask) Execute(ctx context.Context, rt workqueue.Runtime) error {
	scoped, cleanup, err := t.taskCtx(ctx, t.Resource())
	if err != nil {
		return fmt.Errorf("acquire task scope: %w", err)
	}
	defer cleanup()

	if err := t.repo.SetStatus(scoped, t.exportID, models.StatusProcessing, ""); err != nil {
		return err
	}
	rt.ReportProgress(10, "Loading talk-script")

	script, err := t.scriptRepo.GetByID(scoped, t.scriptID)
	if err != nil {
		return fmt.Errorf("load talk-script: %w", err)
	}
	company, err := t.companyRepo.GetByID(scoped, script.CompanyID)
	if err != nil {
		return fmt.Errorf("load company: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(script.Products))
	for _, link := range script.Products {
		ids = append(ids, link.ProductID)
	}
	products := make(map[uuid.UUID]*models.Product, len(ids))
	if len(ids) > 0 {
		found, err := t.productRepo.GetByIDs(scoped, ids)
		if err != nil {
			return fmt.Errorf("load products: %w", err)
		}
		for _, p := range found {
			products[p.ID] = p
		}
	}

	rt.ReportProgress(50, "Rendering slides")
	at := t.now()
	deck := BuildProposalDeck(script, company, products, at)
	path := ExportPath(t.exportDir, ExportFileName(company.DisplayName(), at), at)
	size, err := deck.WriteFile(path)
	if err != nil {
		return fmt.Errorf("write deck: %w", err)
	}

	if err := t.repo.Complete(scoped, t.exportID, path, size); err != nil {
		return err
	}
	rt.ReportProgress(100, "Done")
	t.logger.Info("Talk-script exported",
		zap.String("export_id", t.exportID.String()),
		zap.String("path", path),
		zap.Int("slides", len(deck.Slides)),
		zap.Int64("bytes", size))
	return nil
}

// OnFailure implements workqueue.FailureHandler.
func (t *ExportTask) OnFailure(ctx context.Context, err error) {
	scoped, cleanup, scopeErr := t.taskCtx(ctx, t.Resource())
	if scopeErr != nil {
		t.logger.Error("Failed to record export failure", zap.Error(scopeErr))
		return
	}
	defer cleanup()

	if updErr := t.repo.SetStatus(scoped, t.exportID, models.StatusFailed, err.Error()); updErr != nil {
		t.logger.Error("Failed to record export failure",
			zap.String("export_id", t.exportID.String()),
			zap.Error(updErr))
	}
}
