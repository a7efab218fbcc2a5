// Package document builds invoices, receipts and contracts from project
// records. Builders are pure: the same records always give the same Document.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/sitecraft/sitecraft/dao/model"
	"github.com/sitecraft/sitecraft/pkg/apperr"
	"github.com/sitecraft/sitecraft/pkg/payment"
)

var ErrMissingField = fmt.Errorf("document: missing field: %w", apperr.ErrInvalid)

type Kind string

const (
	KindInvoice  Kind = "invoice"
	KindReceipt  Kind = "receipt"
	KindContract Kind = "contract"
)

const DefaultCurrency = "NGN"

type Party struct {
	Role    string
	Name    string
	Email   string
	Phone   string
	Company string
}

type LineItem struct {
	Description string
	Quantity    int
	UnitPrice   float64
	Amount      float64
}

type Section struct {
	Heading string
	Body    string
}

type Document struct {
	Kind     Kind
	Number   string
	Title    string
	IssuedAt time.Time
	Currency string

	ProjectID    uint
	ProjectTitle string
	Parties      []Party
	Items        []LineItem
	Total        float64
	Paid         float64
	Balance      float64
	Sections     []Section
}

// Filename is the attachment name used when the document is downloaded.
func (d *Document) Filename() string {
	return fmt.Sprintf("%s-%s.pdf", d.Kind, strings.ToLower(d.Number))
}

// Invoice bills the client for the accepted project cost, split into the
// initial and final installments.
func Invoice(project *model.Project, client, developer *model.User, currency string) (*Document, error) {
	if err := requireParties(project, client, developer); err != nil {
		return nil, err
	}
	if project.FinalCost == nil || *project.FinalCost <= 0 {
		return nil, fmt.Errorf("%w: final cost", ErrMissingField)
	}
	cost := *project.FinalCost
	initial := payment.ChargeAmount(cost, model.PaymentInitial)
	final := payment.ChargeAmount(cost, model.PaymentFinal)

	doc := &Document{
		Kind:         KindInvoice,
		Number:       fmt.Sprintf("INV-%06d", project.ID),
		Title:        "Invoice",
		IssuedAt:     issueDate(project.AcceptedAt, project.CreatedAt),
		Currency:     orDefault(currency),
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		Parties:      []Party{partyOf("Developer", developer), partyOf("Client", client)},
		Items: []LineItem{
			{Description: "Initial payment (60%) - " + project.Title, Quantity: 1, UnitPrice: initial, Amount: initial},
			{Description: "Final payment (40%) - " + project.Title, Quantity: 1, UnitPrice: final, Amount: final},
		},
		Total:   cost,
		Balance: cost,
	}
	doc.Sections = []Section{{
		Heading: "Payment terms",
		Body: "Payments are held in escrow by SiteCraft and released to the developer " +
			"once the client accepts the delivery. The initial payment is due before work starts.",
	}}
	if project.DurationDays != nil {
		doc.Sections = append(doc.Sections, Section{
			Heading: "Timeline",
			Body:    fmt.Sprintf("Estimated delivery %d days after the initial payment.", *project.DurationDays),
		})
	}
	return doc, nil
}

// Receipt acknowledges one verified payment.
func Receipt(project *model.Project, client, developer *model.User, p *model.Payment) (*Document, error) {
	if err := requireParties(project, client, developer); err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: payment", ErrMissingField)
	}
	if p.Reference == "" {
		return nil, fmt.Errorf("%w: payment reference", ErrMissingField)
	}
	if p.Status == model.PaymentPending || p.Status == model.PaymentFailed {
		return nil, fmt.Errorf("%w: payment has not been verified", apperr.ErrInvalid)
	}
	currency := orDefault(p.Currency)
	total := p.BaseAmount
	if project.FinalCost != nil {
		total = *project.FinalCost
	}

	return &Document{
		Kind:         KindReceipt,
		Number:       fmt.Sprintf("RCT-%06d", p.ID),
		Title:        "Payment receipt",
		IssuedAt:     issueDate(p.PaidAt, p.CreatedAt),
		Currency:     currency,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		Parties:      []Party{partyOf("Client", client), partyOf("Developer", developer)},
		Items: []LineItem{{
			Description: fmt.Sprintf("%s payment - %s", titleCase(string(p.PaymentType)), project.Title),
			Quantity:    1,
			UnitPrice:   p.Amount,
			Amount:      p.Amount,
		}},
		Total:   total,
		Paid:    p.Amount,
		Balance: max(total-p.Amount, 0),
		Sections: []Section{
			{Heading: "Reference", Body: p.Reference},
			{Heading: "Status", Body: escrowNote(p.Status)},
		},
	}, nil
}

// Contract records the agreed scope, price and timeline between the parties.
func Contract(project *model.Project, client, developer *model.User, currency string) (*Document, error) {
	if err := requireParties(project, client, developer); err != nil {
		return nil, err
	}
	if project.FinalCost == nil || *project.FinalCost <= 0 {
		return nil, fmt.Errorf("%w: final cost", ErrMissingField)
	}
	if project.DurationDays == nil || *project.DurationDays <= 0 {
		return nil, fmt.Errorf("%w: duration", ErrMissingField)
	}
	cost := *project.FinalCost
	currency = orDefault(currency)

	deliverables := "Source code in a version control repository."
	if project.IncludeHosting {
		deliverables += " The website deployed and reachable at a public URL."
	}
	if project.NeedsDocumentation {
		deliverables += " Written documentation for operating and updating the website."
	}

	return &Document{
		Kind:         KindContract,
		Number:       fmt.Sprintf("CTR-%06d", project.ID),
		Title:        "Website development agreement",
		IssuedAt:     issueDate(project.AcceptedAt, project.CreatedAt),
		Currency:     currency,
		ProjectID:    project.ID,
		ProjectTitle: project.Title,
		Parties:      []Party{partyOf("Client", client), partyOf("Developer", developer)},
		Total:        cost,
		Balance:      cost,
		Sections: []Section{
			{Heading: "1. Scope of work", Body: project.Requirements},
			{Heading: "2. Deliverables", Body: deliverables},
			{Heading: "3. Fees", Body: fmt.Sprintf(
				"The total fee is %s, paid as %s before work starts and %s on completion.",
				Money(currency, cost),
				Money(currency, payment.ChargeAmount(cost, model.PaymentInitial)),
				Money(currency, payment.ChargeAmount(cost, model.PaymentFinal)),
			)},
			{Heading: "4. Timeline", Body: fmt.Sprintf(
				"The developer delivers the work within %d days of the initial payment.", *project.DurationDays)},
			{Heading: "5. Escrow", Body: "All payments are held by SiteCraft and released to the developer " +
				"when the client accepts the delivery. Disputed payments may be refunded by a SiteCraft administrator."},
			{Heading: "6. Acceptance", Body: "The client reviews the delivered work and either accepts it " +
				"or requests changes through the project conversation."},
		},
	}, nil
}

func requireParties(project *model.Project, client, developer *model.User) error {
	switch {
	case project == nil:
		return fmt.Errorf("%w: project", ErrMissingField)
	case strings.TrimSpace(project.Title) == "":
		return fmt.Errorf("%w: project title", ErrMissingField)
	case client == nil || client.Name == "":
		return fmt.Errorf("%w: client", ErrMissingField)
	case developer == nil || developer.Name == "":
		return fmt.Errorf("%w: developer", ErrMissingField)
	}
	return nil
}

func partyOf(role string, u *model.User) Party {
	p := Party{Role: role, Name: u.Name, Email: u.Email}
	if u.Phone != nil {
		p.Phone = *u.Phone
	}
	if u.Company != nil {
		p.Company = *u.Company
	}
	return p
}

func orDefault(currency string) string {
	if currency == "" {
		return DefaultCurrency
	}
	return currency
}

func issueDate(preferred *time.Time, fallback time.Time) time.Time {
	if preferred != nil && !preferred.IsZero() {
		return preferred.UTC()
	}
	return fallback.UTC()
}

func escrowNote(status model.PaymentStatus) string {
	switch status {
	case model.PaymentEscrowed:
		return "Held in escrow until the delivery is accepted."
	case model.PaymentReleased:
		return "Released to the developer."
	case model.PaymentRefunded:
		return "Refunded to the client."
	case model.PaymentDuplicate:
		return "Paid twice for the same share, to be refunded to the client."
	default:
		return string(status)
	}
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Money formats an amount with thousands separators, e.g. "NGN 1,234.50".
func Money(currency string, amount float64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	raw := fmt.Sprintf("%.2f", amount)
	whole, frac, _ := strings.Cut(raw, ".")
	var b strings.Builder
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return fmt.Sprintf("%s %s%s.%s", currency, sign, b.String(), frac)
}
