package lifecycle

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/mk070/zenlance-sub002/internal/invoice/domain"
	"gorm.io/datatypes"
)

func validDraft() *domain.Invoice {
	due := time.Now().UTC().Add(14 * 24 * time.Hour)
	return &domain.Invoice{
		Title:    "Website redesign",
		ClientID: "client-1",
		Status:   domain.StatusDraft,
		DueDate:  &due,
		Items: datatypes.JSONSlice[domain.LineItem]{
			{Description: "Design", Quantity: decimal.NewFromInt(10), Rate: decimal.NewFromInt(50)},
		},
	}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to domain.Status
		want     bool
	}{
		{domain.StatusDraft, domain.StatusSent, true},
		{domain.StatusDraft, domain.StatusCancelled, true},
		{domain.StatusDraft, domain.StatusPaid, false},
		{domain.StatusDraft, domain.StatusViewed, false},
		{domain.StatusSent, domain.StatusViewed, true},
		{domain.StatusSent, domain.StatusPaid, true},
		{domain.StatusSent, domain.StatusOverdue, true},
		{domain.StatusSent, domain.StatusCancelled, true},
		{domain.StatusSent, domain.StatusDraft, false},
		{domain.StatusViewed, domain.StatusPaid, true},
		{domain.StatusViewed, domain.StatusCancelled, true},
		{domain.StatusViewed, domain.StatusSent, false},
		{domain.StatusOverdue, domain.StatusPaid, true},
		{domain.StatusOverdue, domain.StatusCancelled, true},
		{domain.StatusPaid, domain.StatusSent, false},
		{domain.StatusPaid, domain.StatusCancelled, false},
		{domain.StatusCancelled, domain.StatusSent, false},
		{domain.StatusPaid, domain.StatusPaid, true},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestApply_SendStampsSentDateOnce(t *testing.T) {
	inv := validDraft()
	now := time.Now().UTC()

	require.NoError(t, Apply(inv, domain.StatusSent, now))
	assert.Equal(t, domain.StatusSent, inv.Status)
	require.NotNil(t, inv.SentDate)
	assert.Equal(t, now, *inv.SentDate)

	// A later transition never rewrites the stamp.
	later := now.Add(time.Hour)
	require.NoError(t, Apply(inv, domain.StatusViewed, later))
	assert.Equal(t, now, *inv.SentDate)
}

func TestApply_PaidStampsPaidDate(t *testing.T) {
	inv := validDraft()
	now := time.Now().UTC()
	require.NoError(t, Apply(inv, domain.StatusSent, now))

	paidAt := now.Add(48 * time.Hour)
	require.NoError(t, Apply(inv, domain.StatusPaid, paidAt))
	require.NotNil(t, inv.PaidDate)
	assert.Equal(t, paidAt, *inv.PaidDate)
}

func TestApply_IllegalTransition(t *testing.T) {
	inv := validDraft()
	inv.Status = domain.StatusPaid

	err := Apply(inv, domain.StatusSent, time.Now().UTC())

	var tErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, domain.StatusPaid, tErr.From)
	assert.Equal(t, domain.StatusSent, tErr.To)
	assert.Equal(t, domain.StatusPaid, inv.Status, "invoice not mutated on rejection")
}

func TestApply_SameStateIsReentrant(t *testing.T) {
	inv := validDraft()
	inv.Status = domain.StatusPaid

	require.NoError(t, Apply(inv, domain.StatusPaid, time.Now().UTC()))
	assert.Nil(t, inv.PaidDate, "re-entrant request does not restamp")
}

func TestApply_SendValidatesFirst(t *testing.T) {
	inv := validDraft()
	inv.Items = nil

	err := Apply(inv, domain.StatusSent, time.Now().UTC())

	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, domain.StatusDraft, inv.Status)
	assert.Nil(t, inv.SentDate)
}

func TestApply_OverdueRequiresPastDueDate(t *testing.T) {
	inv := validDraft()
	now := time.Now().UTC()
	require.NoError(t, Apply(inv, domain.StatusSent, now))

	err := Apply(inv, domain.StatusOverdue, now)
	var tErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &tErr)

	past := inv.DueDate.Add(25 * time.Hour)
	require.NoError(t, Apply(inv, domain.StatusOverdue, past))
	assert.Equal(t, domain.StatusOverdue, inv.Status)
}

func TestIsOverdue(t *testing.T) {
	now := time.Now().UTC()
	yesterday := now.Add(-24 * time.Hour)
	tomorrow := now.Add(24 * time.Hour)

	inv := validDraft()
	inv.Status = domain.StatusSent
	inv.DueDate = &yesterday
	assert.True(t, IsOverdue(inv, now))

	inv.Status = domain.StatusPaid
	assert.False(t, IsOverdue(inv, now))

	inv.Status = domain.StatusViewed
	inv.DueDate = &tomorrow
	assert.False(t, IsOverdue(inv, now))

	inv.Status = domain.StatusDraft
	inv.DueDate = &yesterday
	assert.False(t, IsOverdue(inv, now))

	inv.Status = domain.StatusOverdue
	assert.True(t, IsOverdue(inv, now))

	inv.Status = domain.StatusSent
	inv.DueDate = nil
	assert.False(t, IsOverdue(inv, now))
}

func TestValidateForSubmission_BatchesAllFailures(t *testing.T) {
	inv := &domain.Invoice{
		Status: domain.StatusDraft,
		Items: datatypes.JSONSlice[domain.LineItem]{
			{Description: "", Quantity: decimal.Zero, Rate: decimal.Zero},
		},
	}

	err := ValidateForSubmission(inv)

	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)

	fields := make([]string, 0, len(vErr.Errors))
	for _, fe := range vErr.Errors {
		fields = append(fields, fe.Field)
	}
	assert.ElementsMatch(t, []string{
		"title",
		"client_id",
		"due_date",
		"items[0].description",
		"items[0].quantity",
		"items[0].rate",
	}, fields)
}

func TestValidateForSubmission_ZeroRateBlocksSend(t *testing.T) {
	inv := validDraft()
	inv.Items[0].Rate = decimal.Zero

	err := ValidateForSubmission(inv)

	var vErr *domain.ValidationErrors
	require.ErrorAs(t, err, &vErr)
	require.Len(t, vErr.Errors, 1)
	assert.Equal(t, "items[0].rate", vErr.Errors[0].Field)

	sendErr := Apply(inv, domain.StatusSent, time.Now().UTC())
	assert.ErrorAs(t, sendErr, &vErr)
}

func TestValidateForSubmission_Valid(t *testing.T) {
	assert.NoError(t, ValidateForSubmission(validDraft()))
}
