package repository

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, invoice *domain.Invoice) error {
	return db.WithContext(ctx).Create(invoice).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := db.WithContext(ctx).First(&invoice, "id = ?", id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repo) List(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Pagination) ([]*domain.Invoice, int64, error) {
	stmt := db.WithContext(ctx).Model(&domain.Invoice{})

	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		stmt = stmt.Where(
			"LOWER(invoice_number) LIKE ? OR LOWER(title) LIKE ? OR LOWER(client_name) LIKE ?",
			pattern, pattern, pattern,
		)
	}
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}

	var total int64
	if err := stmt.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoices []*domain.Invoice
	err := page.Apply(stmt).
		Order("created_at desc, id desc").
		Find(&invoices).Error
	if err != nil {
		return nil, 0, err
	}
	return invoices, total, nil
}

func (r *repo) UpdateVersioned(ctx context.Context, db *gorm.DB, invoice *domain.Invoice, expected int64) (bool, error) {
	invoice.Version = expected + 1
	result := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("id = ? AND version = ?", invoice.ID, expected).
		Select("*").
		Omit("id", "created_at").
		Updates(invoice)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error) {
	result := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Invoice{})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	result := db.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("status IN ?", []domain.Status{domain.StatusSent, domain.StatusViewed}).
		Where("due_date IS NOT NULL AND due_date < ?", now).
		Updates(map[string]any{
			"status":     domain.StatusOverdue,
			"updated_at": now,
			"version":    gorm.Expr("version + 1"),
		})
	return result.RowsAffected, result.Error
}

func (r *repo) NextInvoiceNumber(ctx context.Context, db *gorm.DB) (int64, error) {
	now := time.Now().UTC()
	err := db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).
		Create(&domain.InvoiceSequence{ID: 1, LastValue: 0, UpdatedAt: now}).Error
	if err != nil {
		return 0, err
	}

	result := db.WithContext(ctx).
		Model(&domain.InvoiceSequence{}).
		Where("id = ?", 1).
		Updates(map[string]any{
			"last_value": gorm.Expr("last_value + 1"),
			"updated_at": now,
		})
	if result.Error != nil {
		return 0, result.Error
	}

	var seq domain.InvoiceSequence
	if err := db.WithContext(ctx).First(&seq, "id = ?", 1).Error; err != nil {
		return 0, err
	}
	return seq.LastValue, nil
}
