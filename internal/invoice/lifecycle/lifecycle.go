// Package lifecycle governs invoice status transitions.
package lifecycle

import (
	"strconv"
	"strings"
	"time"

	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
)

// transitions is the allowed-transition table. Same-state requests are
// handled separately: re-entrant edits are always permitted.
var transitions = map[domain.Status][]domain.Status{
	domain.StatusDraft:     {domain.StatusSent, domain.StatusCancelled},
	domain.StatusSent:      {domain.StatusViewed, domain.StatusPaid, domain.StatusOverdue, domain.StatusCancelled},
	domain.StatusViewed:    {domain.StatusPaid, domain.StatusOverdue, domain.StatusCancelled},
	domain.StatusOverdue:   {domain.StatusPaid, domain.StatusCancelled},
	domain.StatusPaid:      nil,
	domain.StatusCancelled: nil,
}

// CanTransition reports whether the from -> to edge exists.
func CanTransition(from, to domain.Status) bool {
	if from == to {
		return true
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Apply validates and applies the requested transition, stamping
// sentDate/paidDate exactly once. Same-state requests succeed without
// touching anything. Illegal requests return InvalidTransitionError;
// the invoice is never partially mutated.
func Apply(inv *domain.Invoice, to domain.Status, now time.Time) error {
	if inv.Status == to {
		return nil
	}
	if !CanTransition(inv.Status, to) {
		return &domain.InvalidTransitionError{From: inv.Status, To: to}
	}

	switch to {
	case domain.StatusSent:
		if err := ValidateForSubmission(inv); err != nil {
			return err
		}
		if inv.SentDate == nil {
			t := now
			inv.SentDate = &t
		}
	case domain.StatusPaid:
		if inv.PaidDate == nil {
			t := now
			inv.PaidDate = &t
		}
	case domain.StatusOverdue:
		if !IsOverdue(inv, now) {
			return &domain.InvalidTransitionError{From: inv.Status, To: to}
		}
	}

	inv.Status = to
	return nil
}

// IsOverdue is the pure derivation behind the "overdue" badge: the
// invoice is out the door, unpaid, and past its due date. It is
// computed from stored status + dueDate at read time, never persisted
// as independent truth.
func IsOverdue(inv *domain.Invoice, now time.Time) bool {
	switch inv.Status {
	case domain.StatusSent, domain.StatusViewed:
	case domain.StatusOverdue:
		return true
	default:
		return false
	}
	return inv.DueDate != nil && inv.DueDate.Before(now)
}

// ValidateForSubmission checks everything an invoice needs before it
// may leave draft. Failures are batched so a form can highlight every
// offending field at once rather than one per submit.
func ValidateForSubmission(inv *domain.Invoice) error {
	verr := &domain.ValidationErrors{}

	if strings.TrimSpace(inv.Title) == "" {
		verr.Add("title", "required", "title is required")
	}
	if strings.TrimSpace(inv.ClientID) == "" {
		verr.Add("client_id", "required", "client is required")
	}
	if inv.DueDate == nil || inv.DueDate.IsZero() {
		verr.Add("due_date", "required", "due date is required")
	}
	if len(inv.Items) == 0 {
		verr.Add("items", "required", "at least one line item is required")
	}
	for i, item := range inv.Items {
		field := itemField(i)
		if strings.TrimSpace(item.Description) == "" {
			verr.Add(field+".description", "required", "description is required")
		}
		if !item.Quantity.IsPositive() {
			verr.Add(field+".quantity", "positive", "quantity must be greater than zero")
		}
		if !item.Rate.IsPositive() {
			verr.Add(field+".rate", "positive", "rate must be greater than zero")
		}
	}

	if verr.Any() {
		return verr
	}
	return nil
}

func itemField(i int) string {
	return "items[" + strconv.Itoa(i) + "]"
}
