package document

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/sitecraft/sitecraft/dao/model"
)

func records() (*model.Project, *model.User, *model.User) {
	accepted := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	cost := 2000.0
	days := 10
	devID := uint(2)
	project := &model.Project{
		Model:              gorm.Model{ID: 42, CreatedAt: accepted.Add(-48 * time.Hour)},
		ClientID:           1,
		DeveloperID:        &devID,
		Title:              "Bakery website",
		Requirements:       "Menu, order form and a photo gallery.",
		Status:             model.ProjectApproved,
		IncludeHosting:     true,
		NeedsDocumentation: true,
		FinalCost:          &cost,
		DurationDays:       &days,
		AcceptedAt:         &accepted,
	}
	phone := "2348031234567"
	client := &model.User{Model: gorm.Model{ID: 1}, Name: "Ada Obi", Email: "ada@example.com", Phone: &phone, Role: model.RoleClient}
	developer := &model.User{Model: gorm.Model{ID: 2}, Name: "Linus Eze", Email: "linus@example.com", Role: model.RoleDeveloper}
	return project, client, developer
}

func TestInvoice(t *testing.T) {
	project, client, developer := records()
	doc, err := Invoice(project, client, developer, "NGN")
	require.NoError(t, err)

	assert.Equal(t, "INV-000042", doc.Number)
	assert.Equal(t, *project.AcceptedAt, doc.IssuedAt)
	require.Len(t, doc.Items, 2)
	assert.InDelta(t, 1200, doc.Items[0].Amount, 0.001)
	assert.InDelta(t, 800, doc.Items[1].Amount, 0.001)
	assert.InDelta(t, 2000, doc.Total, 0.001)
	assert.Equal(t, "invoice-inv-000042.pdf", doc.Filename())

	again, err := Invoice(project, client, developer, "NGN")
	require.NoError(t, err)
	assert.Equal(t, doc, again)
}

func TestReceipt(t *testing.T) {
	project, client, developer := records()
	paid := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	pay := &model.Payment{
		Model:       gorm.Model{ID: 7},
		ProjectID:   project.ID,
		BaseAmount:  2000,
		Amount:      1200,
		Currency:    "NGN",
		PaymentType: model.PaymentInitial,
		Status:      model.PaymentEscrowed,
		Reference:   "SC-abc",
		PaidAt:      &paid,
	}
	doc, err := Receipt(project, client, developer, pay)
	require.NoError(t, err)
	assert.Equal(t, "RCT-000007", doc.Number)
	assert.Equal(t, paid, doc.IssuedAt)
	assert.InDelta(t, 1200, doc.Paid, 0.001)
	assert.InDelta(t, 800, doc.Balance, 0.001)
	assert.Equal(t, "Initial payment - Bakery website", doc.Items[0].Description)
	assert.Equal(t, "Client", doc.Parties[0].Role)
	assert.Equal(t, "2348031234567", doc.Parties[0].Phone)

	pay.Status = model.PaymentPending
	_, err = Receipt(project, client, developer, pay)
	assert.Error(t, err)
}

func TestContract(t *testing.T) {
	project, client, developer := records()
	doc, err := Contract(project, client, developer, "NGN")
	require.NoError(t, err)
	assert.Equal(t, "CTR-000042", doc.Number)
	require.Len(t, doc.Sections, 6)
	assert.Equal(t, project.Requirements, doc.Sections[0].Body)
	assert.Contains(t, doc.Sections[1].Body, "public URL")
	assert.Contains(t, doc.Sections[1].Body, "documentation")
	assert.Contains(t, doc.Sections[2].Body, "NGN 2,000.00")
	assert.Contains(t, doc.Sections[2].Body, "NGN 1,200.00")
	assert.Contains(t, doc.Sections[3].Body, "10 days")
}

func TestConfiguredCurrency(t *testing.T) {
	project, client, developer := records()

	invoice, err := Invoice(project, client, developer, "GHS")
	require.NoError(t, err)
	assert.Equal(t, "GHS", invoice.Currency)

	contract, err := Contract(project, client, developer, "GHS")
	require.NoError(t, err)
	assert.Equal(t, "GHS", contract.Currency)
	assert.Contains(t, contract.Sections[2].Body, "GHS 2,000.00")
	assert.NotContains(t, contract.Sections[2].Body, "NGN")

	fallback, err := Contract(project, client, developer, "")
	require.NoError(t, err)
	assert.Equal(t, DefaultCurrency, fallback.Currency)
}

func TestMissingFields(t *testing.T) {
	project, client, developer := records()

	_, err := Invoice(project, client, nil, "NGN")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Contract(nil, client, developer, "NGN")
	assert.ErrorIs(t, err, ErrMissingField)

	_, err = Receipt(project, client, developer, nil)
	assert.ErrorIs(t, err, ErrMissingField)

	project.FinalCost = nil
	_, err = Invoice(project, client, developer, "NGN")
	assert.ErrorIs(t, err, ErrMissingField)

	project, _, _ = records()
	project.DurationDays = nil
	_, err = Contract(project, client, developer, "NGN")
	assert.ErrorIs(t, err, ErrMissingField)
}

func TestMoney(t *testing.T) {
	assert.Equal(t, "NGN 0.00", Money("NGN", 0))
	assert.Equal(t, "NGN 999.50", Money("NGN", 999.5))
	assert.Equal(t, "NGN 1,000.00", Money("NGN", 1000))
	assert.Equal(t, "NGN 1,234,567.89", Money("NGN", 1234567.89))
	assert.Equal(t, "USD -12,000.00", Money("USD", -12000))
}

func TestRender(t *testing.T) {
	project, client, developer := records()
	for _, build := range []func() (*Document, error){
		func() (*Document, error) { return Invoice(project, client, developer, "NGN") },
		func() (*Document, error) { return Contract(project, client, developer, "NGN") },
	} {
		doc, err := build()
		require.NoError(t, err)
		out, err := Render(doc)
		require.NoError(t, err)
		assert.True(t, bytes.HasPrefix(out, []byte("%PDF")), "not a PDF: %q", out[:min(len(out), 8)])
		assert.True(t, bytes.HasSuffix(bytes.TrimSpace(out), []byte("%%EOF")))
	}
}
