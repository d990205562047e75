package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mk070/zenlance-sub002/internal/config"
	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"github.com/mk070/zenlance-sub002/internal/invoice/repository"
	"github.com/mk070/zenlance-sub002/pkg/db/pagination"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (domain.Service, *gorm.DB) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Invoice{}, &domain.InvoiceSequence{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := New(Params{
		DB:    db,
		Log:   zap.NewNop(),
		Cfg:   config.Config{Currencies: []string{"USD", "EUR", "GBP"}, InvoiceNumberPrefix: "INV"},
		GenID: node,
		Repo:  repository.Provide(),
	})
	return svc, db
}

func d(value string) decimal.Decimal {
	out, err := decimal.NewFromString(value)
	if err != nil {
		panic(err)
	}
	return out
}

func draftRequest(title string) domain.CreateInvoiceRequest {
	due := time.Now().UTC().Add(14 * 24 * time.Hour)
	return domain.CreateInvoiceRequest{
		Title:      title,
		ClientID:   "client-1",
		ClientName: "Acme Corp",
		Currency:   "USD",
		DueDate:    &due,
		Items: []domain.LineItem{
			{Description: "Design", Quantity: d("10"), Rate: d("50.00")},
			{Description: "Dev", Quantity: d("5"), Rate: d("120.00")},
		},
		TaxRate:      d("8"),
		DiscountRate: d("5"),
	}
}

func TestCreate_AssignsNumberAndDerivesTotals(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Website redesign"))
	require.NoError(t, err)

	assert.Equal(t, "INV-000001", inv.InvoiceNumber)
	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Equal(t, int64(1), inv.Version)
	assert.True(t, inv.Subtotal.Equal(d("1100.00")))
	assert.True(t, inv.TaxAmount.Equal(d("88.00")))
	assert.True(t, inv.DiscountAmount.Equal(d("55.00")))
	assert.True(t, inv.Total.Equal(d("1133.00")))

	second, err := svc.Create(ctx, draftRequest("Second"))
	require.NoError(t, err)
	assert.Equal(t, "INV-000002", second.InvoiceNumber)
}

func TestCreate_ValidationBatched(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Create(context.Background(), domain.CreateInvoiceRequest{Currency: "XXX"})

	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)

	fields := make([]string, 0, len(vErr.Errors))
	for _, fe := range vErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{"title", "client_id", "currency"}, fields)
}

func TestCreate_DefaultsCurrency(t *testing.T) {
	svc, _ := newTestService(t)

	req := draftRequest("No currency")
	req.Currency = ""
	inv, err := svc.Create(context.Background(), req)

	require.NoError(t, err)
	assert.Equal(t, "USD", inv.Currency)
}

func TestGetByID(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, draftRequest("Lookup"))
	require.NoError(t, err)

	found, err := svc.GetByID(ctx, created.ID.String())
	require.NoError(t, err)
	assert.Equal(t, created.InvoiceNumber, found.InvoiceNumber)

	_, err = svc.GetByID(ctx, "123456789")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.GetByID(ctx, "not-a-snowflake")
	assert.ErrorIs(t, err, domain.ErrInvalidID)
}

func TestList_PaginationPartition(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		inv, err := svc.Create(ctx, draftRequest(fmt.Sprintf("Invoice %02d", i)))
		require.NoError(t, err)
		// Spread creation times so ordering is deterministic.
		createdAt := time.Now().UTC().Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Model(&domain.Invoice{}).
			Where("id = ?", inv.ID).
			Update("created_at", createdAt).Error)
	}

	page1, err := svc.List(ctx, domain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: 1, Limit: 20},
	})
	require.NoError(t, err)
	page2, err := svc.List(ctx, domain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: 2, Limit: 20},
	})
	require.NoError(t, err)

	assert.Equal(t, int64(25), page1.Total)
	assert.Equal(t, 2, page1.Pages)
	assert.Len(t, page1.Invoices, 20)
	assert.Len(t, page2.Invoices, 5)

	seen := map[string]bool{}
	for _, inv := range append(page1.Invoices, page2.Invoices...) {
		assert.False(t, seen[inv.InvoiceNumber], "no overlap between pages")
		seen[inv.InvoiceNumber] = true
	}
	assert.Len(t, seen, 25, "no gaps between pages")

	// Most recent first.
	assert.Equal(t, "Invoice 24", page1.Invoices[0].Title)

	// Beyond the last page: empty result, correct counts, no error.
	page9, err := svc.List(ctx, domain.ListInvoiceRequest{
		Pagination: pagination.Pagination{Page: 9, Limit: 20},
	})
	require.NoError(t, err)
	assert.Empty(t, page9.Invoices)
	assert.Equal(t, int64(25), page9.Total)
	assert.Equal(t, 2, page9.Pages)
}

func TestList_SearchAndStatusFilter(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	alpha, err := svc.Create(ctx, draftRequest("Alpha branding"))
	require.NoError(t, err)
	_, err = svc.Create(ctx, draftRequest("Beta launch"))
	require.NoError(t, err)

	_, err = svc.Send(ctx, alpha.ID.String())
	require.NoError(t, err)

	bySearch, err := svc.List(ctx, domain.ListInvoiceRequest{Search: "ALPHA"})
	require.NoError(t, err)
	require.Len(t, bySearch.Invoices, 1)
	assert.Equal(t, "Alpha branding", bySearch.Invoices[0].Title)

	byNumber, err := svc.List(ctx, domain.ListInvoiceRequest{Search: "inv-000002"})
	require.NoError(t, err)
	require.Len(t, byNumber.Invoices, 1)
	assert.Equal(t, "Beta launch", byNumber.Invoices[0].Title)

	byClient, err := svc.List(ctx, domain.ListInvoiceRequest{Search: "acme"})
	require.NoError(t, err)
	assert.Len(t, byClient.Invoices, 2)

	byStatus, err := svc.List(ctx, domain.ListInvoiceRequest{Status: "sent"})
	require.NoError(t, err)
	require.Len(t, byStatus.Invoices, 1)
	assert.Equal(t, alpha.ID, byStatus.Invoices[0].ID)

	all, err := svc.List(ctx, domain.ListInvoiceRequest{Status: "all"})
	require.NoError(t, err)
	assert.Len(t, all.Invoices, 2)
}

func TestUpdate_RecomputesTotalsAndBumpsVersion(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Editable"))
	require.NoError(t, err)

	updated, err := svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID:      inv.ID.String(),
		Version: inv.Version,
		Title:   "Editable v2",
		Items: []domain.LineItem{
			// Client-sent Amount is a lie; the server recomputes it.
			{Description: "Consulting", Quantity: d("2"), Rate: d("300"), Amount: d("9999")},
		},
		TaxRate:      d("10"),
		DiscountRate: d("0"),
		Currency:     "EUR",
	})
	require.NoError(t, err)

	assert.Equal(t, "Editable v2", updated.Title)
	assert.Equal(t, inv.Version+1, updated.Version)
	assert.Equal(t, "EUR", updated.Currency)
	assert.True(t, updated.Items[0].Amount.Equal(d("600.00")))
	assert.True(t, updated.Subtotal.Equal(d("600.00")))
	assert.True(t, updated.TaxAmount.Equal(d("60.00")))
	assert.True(t, updated.Total.Equal(d("660.00")))
	assert.Equal(t, inv.InvoiceNumber, updated.InvoiceNumber, "number never changes on update")
}

func TestUpdate_SentInvoiceMustStaySubmittable(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Out the door"))
	require.NoError(t, err)
	sent, err := svc.Send(ctx, inv.ID.String())
	require.NoError(t, err)

	// Stripping the items and due date from a sent invoice is rejected.
	_, err = svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID:      sent.ID.String(),
		Version: sent.Version,
		Title:   sent.Title,
		Items:   nil,
		DueDate: nil,
	})
	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)

	fields := make([]string, 0, len(vErr.Errors))
	for _, fe := range vErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.Contains(t, fields, "items")
	assert.Contains(t, fields, "due_date")

	// Nothing was persisted.
	current, err := svc.GetByID(ctx, sent.ID.String())
	require.NoError(t, err)
	assert.Len(t, []domain.LineItem(current.Items), 2)
	require.NotNil(t, current.DueDate)
	assert.Equal(t, sent.Version, current.Version)
}

func TestUpdate_DraftMayBeIncomplete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Still cooking"))
	require.NoError(t, err)

	// A draft can be saved half-finished: no items, no due date.
	updated, err := svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID:      inv.ID.String(),
		Version: inv.Version,
		Title:   inv.Title,
		Items:   nil,
		DueDate: nil,
	})
	require.NoError(t, err)
	assert.Empty(t, []domain.LineItem(updated.Items))
	assert.Nil(t, updated.DueDate)
	assert.True(t, updated.Total.IsZero())
}

func TestCreate_NegativeRatesNormalized(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := draftRequest("No negative surcharges")
	req.TaxRate = d("-8")
	req.DiscountRate = d("-5")

	inv, err := svc.Create(ctx, req)
	require.NoError(t, err)

	// The clamped rates are what gets stored, so rate and amount agree.
	assert.True(t, inv.TaxRate.IsZero(), "taxRate = %s", inv.TaxRate)
	assert.True(t, inv.DiscountRate.IsZero(), "discountRate = %s", inv.DiscountRate)
	assert.True(t, inv.TaxAmount.IsZero())
	assert.True(t, inv.DiscountAmount.IsZero())
	assert.True(t, inv.Total.Equal(inv.Subtotal))

	stored, err := svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.True(t, stored.TaxRate.IsZero())
	assert.True(t, stored.DiscountRate.IsZero())
}

func TestUpdate_StaleVersionConflicts(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Contended"))
	require.NoError(t, err)

	_, err = svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID:      inv.ID.String(),
		Version: inv.Version,
		Title:   "First writer wins",
		Items:   inv.Items,
	})
	require.NoError(t, err)

	_, err = svc.Update(ctx, domain.UpdateInvoiceRequest{
		ID:      inv.ID.String(),
		Version: inv.Version, // stale token
		Title:   "Second writer loses",
		Items:   inv.Items,
	})
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestSend_ValidationFailureBlocks(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	req := draftRequest("Unsendable")
	req.Items[0].Rate = decimal.Zero
	inv, err := svc.Create(ctx, req)
	require.NoError(t, err)

	_, err = svc.Send(ctx, inv.ID.String())

	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Errors, 1)
	assert.Equal(t, "items[0].rate", vErr.Errors[0].Field)

	// Still a draft afterwards.
	current, err := svc.GetByID(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, current.Status)
}

func TestSend_StampsSentDate(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Sendable"))
	require.NoError(t, err)

	sent, err := svc.Send(ctx, inv.ID.String())
	require.NoError(t, err)

	assert.Equal(t, domain.StatusSent, sent.Status)
	require.NotNil(t, sent.SentDate)
	assert.WithinDuration(t, time.Now().UTC(), *sent.SentDate, 5*time.Second)
	assert.Equal(t, inv.Version+1, sent.Version)
}

func TestMarkPaid_IdempotentAndGuarded(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Payable"))
	require.NoError(t, err)

	// draft -> paid is not an edge.
	_, err = svc.MarkPaid(ctx, inv.ID.String())
	var tErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.StatusDraft, tErr.From)
	assert.Equal(t, domain.StatusPaid, tErr.To)

	_, err = svc.Send(ctx, inv.ID.String())
	require.NoError(t, err)

	paid, err := svc.MarkPaid(ctx, inv.ID.String())
	require.NoError(t, err)
	require.NotNil(t, paid.PaidDate)

	// Second mark-paid succeeds without touching anything.
	again, err := svc.MarkPaid(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, *paid.PaidDate, *again.PaidDate)
	assert.Equal(t, paid.Version, again.Version)

	// A paid invoice cannot be re-sent.
	_, err = svc.Send(ctx, inv.ID.String())
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.StatusPaid, tErr.From)
	assert.Equal(t, domain.StatusSent, tErr.To)
}

func TestCancel_FromAnyNonTerminal(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Cancellable"))
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, inv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCancelled, cancelled.Status)

	// Terminal: nothing leaves cancelled.
	var tErr *domain.InvalidTransitionError
	_, err = svc.Send(ctx, inv.ID.String())
	assert.ErrorAs(t, err, &tErr)
}

func TestDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	inv, err := svc.Create(ctx, draftRequest("Disposable"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(ctx, inv.ID.String()))
	assert.ErrorIs(t, svc.Delete(ctx, inv.ID.String()), domain.ErrNotFound)

	_, err = svc.GetByID(ctx, inv.ID.String())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMarkOverdue_Sweep(t *testing.T) {
	svc, db := newTestService(t)
	ctx := context.Background()

	overdueInv, err := svc.Create(ctx, draftRequest("Late"))
	require.NoError(t, err)
	_, err = svc.Send(ctx, overdueInv.ID.String())
	require.NoError(t, err)

	onTimeInv, err := svc.Create(ctx, draftRequest("On time"))
	require.NoError(t, err)
	_, err = svc.Send(ctx, onTimeInv.ID.String())
	require.NoError(t, err)

	// Backdate one invoice's due date.
	yesterday := time.Now().UTC().Add(-24 * time.Hour)
	require.NoError(t, db.Model(&domain.Invoice{}).
		Where("id = ?", overdueInv.ID).
		Update("due_date", yesterday).Error)

	changed, err := svc.MarkOverdue(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), changed)

	swept, err := svc.GetByID(ctx, overdueInv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOverdue, swept.Status)

	untouched, err := svc.GetByID(ctx, onTimeInv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSent, untouched.Status)

	// Overdue invoices can still be paid.
	paid, err := svc.MarkPaid(ctx, overdueInv.ID.String())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPaid, paid.Status)
}
