package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
	"gorm.io/gorm"
)

// ListFilter narrows a listing query.
type ListFilter struct {
	Search string
	Status Status
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Pagination) ([]*Invoice, int64, error)

	// UpdateVersioned writes the invoice only if the stored version still
	// matches expected; it reports whether a row was updated.
	UpdateVersioned(ctx context.Context, db *gorm.DB, invoice *Invoice, expected int64) (bool, error)
	Delete(ctx context.Context, db *gorm.DB, id snowflake.ID) (bool, error)

	// MarkOverdue flips sent/viewed invoices past their due date to
	// overdue and returns the number of rows changed.
	MarkOverdue(ctx context.Context, db *gorm.DB, now time.Time) (int64, error)

	// NextInvoiceNumber allocates the next sequence value. Callers run it
	// inside the same transaction as the insert.
	NextInvoiceNumber(ctx context.Context, db *gorm.DB) (int64, error)
}
