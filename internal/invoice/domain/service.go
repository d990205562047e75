package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
)

// CreateInvoiceRequest carries the draft fields a caller may set on
// create. The server assigns the id, the authoritative invoice number
// and the initial draft status; totals are always recomputed.
type CreateInvoiceRequest struct {
	Title        string
	Description  string
	ClientID     string
	ClientName   string
	ClientEmail  string
	ProjectID    string
	Items        []LineItem
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Currency     string
	DueDate      *time.Time
	Notes        string
	Terms        string
}

// UpdateInvoiceRequest carries the mutable fields plus the concurrency
// token. Client-sent totals are ignored; status is not editable here.
type UpdateInvoiceRequest struct {
	ID           string
	Version      int64
	Title        string
	Description  string
	Items        []LineItem
	TaxRate      decimal.Decimal
	DiscountRate decimal.Decimal
	Currency     string
	DueDate      *time.Time
	Notes        string
	Terms        string
}

// ListInvoiceRequest is the listing contract: page/limit pagination,
// case-insensitive substring search over invoice number, title and
// client name, and exact status filtering ("all" or empty disables it).
type ListInvoiceRequest struct {
	pagination.Pagination
	Search string
	Status string
}

// ListInvoiceResponse is one stable page of invoices, newest first.
type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

type Service interface {
	Create(context.Context, CreateInvoiceRequest) (Invoice, error)
	List(context.Context, ListInvoiceRequest) (ListInvoiceResponse, error)
	GetByID(ctx context.Context, id string) (Invoice, error)
	Update(context.Context, UpdateInvoiceRequest) (Invoice, error)
	Delete(ctx context.Context, id string) error

	// Send runs submission validation and applies draft -> sent.
	Send(ctx context.Context, id string) (Invoice, error)
	// MarkViewed applies sent -> viewed (read-receipt hook).
	MarkViewed(ctx context.Context, id string) (Invoice, error)
	// MarkPaid applies -> paid; paid -> paid is an idempotent success.
	MarkPaid(ctx context.Context, id string) (Invoice, error)
	// Cancel applies any non-terminal status -> cancelled.
	Cancel(ctx context.Context, id string) (Invoice, error)

	// MarkOverdue persists sent/viewed -> overdue for invoices whose due
	// date has passed as of now. The stored badge is a materialization;
	// lifecycle.IsOverdue remains the source of truth at read time.
	MarkOverdue(ctx context.Context, now time.Time) (int64, error)
}
