// Package domain contains the invoice model and service contracts.
package domain

import (
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Status represents invoice lifecycle states.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSent      Status = "sent"
	StatusViewed    Status = "viewed"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSent, StatusViewed, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether no outgoing transitions are defined for s.
func (s Status) Terminal() bool {
	return s == StatusPaid || s == StatusCancelled
}

// LineItem is one line on an invoice. Amount is derived from
// quantity and rate and is never accepted from callers.
type LineItem struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	Rate        decimal.Decimal `json:"rate"`
	Amount      decimal.Decimal `json:"amount"`
}

// UnmarshalJSON tolerates missing or unparseable numeric fields so an
// in-progress edit never fails to decode; bad values normalize to zero.
func (li *LineItem) UnmarshalJSON(data []byte) error {
	var raw struct {
		Description string          `json:"description"`
		Quantity    json.RawMessage `json:"quantity"`
		Rate        json.RawMessage `json:"rate"`
		Amount      json.RawMessage `json:"amount"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	li.Description = raw.Description
	li.Quantity = lenientDecimal(raw.Quantity)
	li.Rate = lenientDecimal(raw.Rate)
	li.Amount = lenientDecimal(raw.Amount)
	return nil
}

func lenientDecimal(raw json.RawMessage) decimal.Decimal {
	if len(raw) == 0 {
		return decimal.Zero
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err == nil {
		return d
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if d, err := decimal.NewFromString(s); err == nil {
			return d
		}
	}
	return decimal.Zero
}

// Invoice is the stored invoice with all derived fields materialized.
// Client fields are a snapshot frozen at creation time; the client
// record itself belongs to an external system.
type Invoice struct {
	ID            snowflake.ID `gorm:"primaryKey" json:"id"`
	InvoiceNumber string       `gorm:"uniqueIndex;not null" json:"invoice_number"`
	Title         string       `gorm:"not null" json:"title"`
	Description   string       `gorm:"type:text" json:"description,omitempty"`

	ClientID    string `gorm:"not null;index" json:"client_id"`
	ClientName  string `gorm:"not null" json:"client_name"`
	ClientEmail string `json:"client_email,omitempty"`
	ProjectID   string `gorm:"index" json:"project_id,omitempty"`

	Items datatypes.JSONSlice[LineItem] `json:"items"`

	Subtotal       decimal.Decimal `gorm:"type:numeric" json:"subtotal"`
	TaxRate        decimal.Decimal `gorm:"type:numeric" json:"tax_rate"`
	TaxAmount      decimal.Decimal `gorm:"type:numeric" json:"tax_amount"`
	DiscountRate   decimal.Decimal `gorm:"type:numeric" json:"discount_rate"`
	DiscountAmount decimal.Decimal `gorm:"type:numeric" json:"discount_amount"`
	Total          decimal.Decimal `gorm:"type:numeric" json:"total"`

	Currency string `gorm:"type:text;not null" json:"currency"`
	Status   Status `gorm:"type:text;not null;default:'draft';index" json:"status"`

	DueDate  *time.Time `json:"due_date,omitempty"`
	SentDate *time.Time `json:"sent_date,omitempty"`
	PaidDate *time.Time `json:"paid_date,omitempty"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`
	Terms string `gorm:"type:text" json:"terms,omitempty"`

	// Version is the optimistic concurrency token; stale writes are
	// rejected with ErrConflict instead of silently overwriting.
	Version int64 `gorm:"not null;default:1" json:"version"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// InvoiceSequence backs invoice number allocation. A single row holds
// the last value handed out; allocation happens inside the insert
// transaction so numbers stay gapless under concurrent creates.
type InvoiceSequence struct {
	ID        int64     `gorm:"primaryKey"`
	LastValue int64     `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName sets the database table name.
func (InvoiceSequence) TableName() string { return "invoice_sequences" }
