package budgets

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Budget statuses.
const (
	StatusDraft    = "DRAFT"
	StatusPending  = "PENDING_APPROVAL"
	StatusApproved = "APPROVED"
)

// Budget is the stored per-lead budget row. Amounts are integer cents.
type Budget struct {
	ID         uuid.UUID
	LeadID     uuid.UUID
	SaleCents  int64
	CostCents  int64
	Currency   string
	Status     string
	ApprovedBy *uuid.UUID
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ProfitCents is the margin between sale and cost.
func (b Budget) ProfitCents() int64 {
	return b.SaleCents - b.CostCents
}

// View is the caller-facing shape. Cost and profit are nil when the caller
// lacks the matching view permission; the sale price is always visible.
type View struct {
	ID            uuid.UUID  `json:"id"`
	LeadID        uuid.UUID  `json:"lead_id"`
	SaleCents     int64      `json:"sale_cents"`
	SaleDisplay   string     `json:"sale_display"`
	CostCents     *int64     `json:"cost_cents,omitempty"`
	CostDisplay   *string    `json:"cost_display,omitempty"`
	ProfitCents   *int64     `json:"profit_cents,omitempty"`
	ProfitDisplay *string    `json:"profit_display,omitempty"`
	Currency      string     `json:"currency"`
	Status        string     `json:"status"`
	ApprovedBy    *uuid.UUID `json:"approved_by,omitempty"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

var moneyPrinter = message.NewPrinter(language.English)

// FormatMoney renders integer cents as a symbol-prefixed amount, e.g.
// "$ 12500.00". Unknown codes fall back to USD.
func FormatMoney(cents int64, code string) string {
	unit, err := currency.ParseISO(code)
	if err != nil {
		unit = currency.USD
	}
	return moneyPrinter.Sprintf("%v", currency.Symbol(unit.Amount(float64(cents)/100)))
}
