package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mk070/zenlance-sub002/internal/config"
	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"github.com/mk070/zenlance-sub002/internal/invoice/engine"
	"github.com/mk070/zenlance-sub002/internal/invoice/lifecycle"
	"github.com/mk070/zenlance-sub002/internal/invoice/numbering"
	"github.com/mk070/zenlance-sub002/pkg/db"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Cfg   config.Config
	GenID *snowflake.Node
	Repo  domain.Repository
}

type Service struct {
	db      *gorm.DB
	log     *zap.Logger
	cfg     config.Config
	genID   *snowflake.Node
	repo    domain.Repository
	numbers numbering.Formatter
}

func New(p Params) domain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("invoice.service"),
		cfg:     p.Cfg,
		genID:   p.GenID,
		repo:    p.Repo,
		numbers: numbering.NewFormatter(p.Cfg.InvoiceNumberPrefix),
	}
}

func (s *Service) Create(ctx context.Context, req domain.CreateInvoiceRequest) (domain.Invoice, error) {
	verr := &domain.ValidationErrors{}

	title := strings.TrimSpace(req.Title)
	if title == "" {
		verr.Add("title", "required", "title is required")
	}
	clientID := strings.TrimSpace(req.ClientID)
	if clientID == "" {
		verr.Add("client_id", "required", "client is required")
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" && len(s.cfg.Currencies) > 0 {
		currency = s.cfg.Currencies[0]
	}
	if !s.cfg.SupportsCurrency(currency) {
		verr.Add("currency", "unsupported", "currency is not supported")
	}
	if verr.Any() {
		return domain.Invoice{}, verr
	}

	totals := engine.ComputeTotals(req.Items, req.TaxRate, req.DiscountRate)

	now := time.Now().UTC()
	invoice := domain.Invoice{
		ID:          s.genID.Generate(),
		Title:       title,
		Description: req.Description,

		ClientID:    clientID,
		ClientName:  strings.TrimSpace(req.ClientName),
		ClientEmail: strings.TrimSpace(req.ClientEmail),
		ProjectID:   strings.TrimSpace(req.ProjectID),

		Items:          datatypes.JSONSlice[domain.LineItem](totals.Items),
		Subtotal:       totals.Subtotal,
		TaxRate:        totals.TaxRate,
		TaxAmount:      totals.TaxAmount,
		DiscountRate:   totals.DiscountRate,
		DiscountAmount: totals.DiscountAmount,
		Total:          totals.Total,

		Currency: currency,
		Status:   domain.StatusDraft,
		DueDate:  req.DueDate,
		Notes:    req.Notes,
		Terms:    req.Terms,

		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		seq, err := s.repo.NextInvoiceNumber(ctx, tx)
		if err != nil {
			return err
		}
		invoice.InvoiceNumber = s.numbers.Format(seq)
		return s.repo.Insert(ctx, tx, &invoice)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			// Sequence rows are shared; a concurrent writer beat us to
			// this number. Callers retry the create.
			return domain.Invoice{}, domain.ErrConflict
		}
		return domain.Invoice{}, err
	}

	s.log.Info("invoice created",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)
	return invoice, nil
}

func (s *Service) List(ctx context.Context, req domain.ListInvoiceRequest) (domain.ListInvoiceResponse, error) {
	filter := domain.ListFilter{Search: strings.TrimSpace(req.Search)}
	if status := strings.ToLower(strings.TrimSpace(req.Status)); status != "" && status != "all" {
		filter.Status = domain.Status(status)
	}

	page := req.Pagination.Normalize()
	items, total, err := s.repo.List(ctx, s.db, filter, page)
	if err != nil {
		return domain.ListInvoiceResponse{}, err
	}

	invoices := make([]domain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}

	return domain.ListInvoiceResponse{
		PageInfo: pagination.BuildPageInfo(page, total),
		Invoices: invoices,
	}, nil
}

func (s *Service) GetByID(ctx context.Context, id string) (domain.Invoice, error) {
	invoice, err := s.find(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) Update(ctx context.Context, req domain.UpdateInvoiceRequest) (domain.Invoice, error) {
	invoice, err := s.find(ctx, req.ID)
	if err != nil {
		return domain.Invoice{}, err
	}

	verr := &domain.ValidationErrors{}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		verr.Add("title", "required", "title is required")
	}
	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = invoice.Currency
	}
	if !s.cfg.SupportsCurrency(currency) {
		verr.Add("currency", "unsupported", "currency is not supported")
	}
	if verr.Any() {
		return domain.Invoice{}, verr
	}

	// Totals are always recomputed server-side; client-sent amounts are
	// never trusted.
	totals := engine.ComputeTotals(req.Items, req.TaxRate, req.DiscountRate)

	expected := req.Version
	invoice.Title = title
	invoice.Description = req.Description
	invoice.Items = datatypes.JSONSlice[domain.LineItem](totals.Items)
	invoice.Subtotal = totals.Subtotal
	invoice.TaxRate = totals.TaxRate
	invoice.TaxAmount = totals.TaxAmount
	invoice.DiscountRate = totals.DiscountRate
	invoice.DiscountAmount = totals.DiscountAmount
	invoice.Total = totals.Total
	invoice.Currency = currency
	invoice.DueDate = req.DueDate
	invoice.Notes = req.Notes
	invoice.Terms = req.Terms
	invoice.UpdatedAt = time.Now().UTC()

	// Only drafts may be incomplete. Once an invoice has left draft,
	// edits must keep it submittable.
	if invoice.Status != domain.StatusDraft {
		if err := lifecycle.ValidateForSubmission(invoice); err != nil {
			return domain.Invoice{}, err
		}
	}

	if err := s.saveVersioned(ctx, invoice, expected); err != nil {
		return domain.Invoice{}, err
	}
	return *invoice, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	parsed, err := s.parseID(id)
	if err != nil {
		return err
	}
	deleted, err := s.repo.Delete(ctx, s.db, parsed)
	if err != nil {
		return err
	}
	if !deleted {
		return domain.ErrNotFound
	}
	s.log.Info("invoice deleted", zap.String("invoice_id", parsed.String()))
	return nil
}

func (s *Service) Send(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.StatusSent)
}

func (s *Service) MarkViewed(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.StatusViewed)
}

func (s *Service) MarkPaid(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.StatusPaid)
}

func (s *Service) Cancel(ctx context.Context, id string) (domain.Invoice, error) {
	return s.transition(ctx, id, domain.StatusCancelled)
}

func (s *Service) MarkOverdue(ctx context.Context, now time.Time) (int64, error) {
	changed, err := s.repo.MarkOverdue(ctx, s.db, now)
	if err != nil {
		return 0, err
	}
	if changed > 0 {
		s.log.Info("invoices marked overdue", zap.Int64("count", changed))
	}
	return changed, nil
}

func (s *Service) transition(ctx context.Context, id string, to domain.Status) (domain.Invoice, error) {
	invoice, err := s.find(ctx, id)
	if err != nil {
		return domain.Invoice{}, err
	}

	if invoice.Status == to {
		// Re-entrant request, e.g. mark-paid on an already paid invoice.
		return *invoice, nil
	}

	expected := invoice.Version
	if err := lifecycle.Apply(invoice, to, time.Now().UTC()); err != nil {
		return domain.Invoice{}, err
	}
	invoice.UpdatedAt = time.Now().UTC()

	if err := s.saveVersioned(ctx, invoice, expected); err != nil {
		return domain.Invoice{}, err
	}

	s.log.Info("invoice transitioned",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(to)),
	)
	return *invoice, nil
}

func (s *Service) saveVersioned(ctx context.Context, invoice *domain.Invoice, expected int64) error {
	updated, err := s.repo.UpdateVersioned(ctx, s.db, invoice, expected)
	if err != nil {
		return err
	}
	if !updated {
		// Either the row vanished or someone else won the write.
		current, err := s.repo.FindByID(ctx, s.db, invoice.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrNotFound
		}
		return domain.ErrConflict
	}
	return nil
}

func (s *Service) find(ctx context.Context, id string) (*domain.Invoice, error) {
	parsed, err := s.parseID(id)
	if err != nil {
		return nil, err
	}
	invoice, err := s.repo.FindByID(ctx, s.db, parsed)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, domain.ErrNotFound
	}
	return invoice, nil
}

func (s *Service) parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidID
	}
	return id, nil
}
