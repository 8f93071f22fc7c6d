package catalog

import (
	"errors"

	"pipe-company/internal/domain"

	"github.com/shopspring/decimal"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

var hundred = decimal.NewFromInt(100)

// PriceQuote is the price of a quantity of one product after bulk discounts
type PriceQuote struct {
	ProductID       string          `json:"product_id"`
	Quantity        int             `json:"quantity"`
	BaseUnitPrice   decimal.Decimal `json:"base_unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	Total           decimal.Decimal `json:"total"`
	Savings         decimal.Decimal `json:"savings"`
}

// ApplicableDiscount returns the tier with the greatest min quantity not above qty, or nil
func ApplicableDiscount(discounts []domain.BulkDiscount, qty int) *domain.BulkDiscount {
	var best *domain.BulkDiscount
	for i := range discounts {
		d := &discounts[i]
		if d.MinQuantity > qty {
			continue
		}
		if best == nil || d.MinQuantity > best.MinQuantity {
			best = d
		}
	}
	return best
}

// PriceForQuantity applies the matching bulk discount and rounds money to 2 decimal
// places, half away from zero.
func PriceForQuantity(p *domain.Product, qty int) (*PriceQuote, error) {
	if qty <= 0 {
		return nil, ErrInvalidQuantity
	}

	percent := decimal.Zero
	if d := ApplicableDiscount(p.BulkDiscounts, qty); d != nil {
		percent = d.DiscountPercent
	}

	factor := hundred.Sub(percent).Div(hundred)
	unit := p.Price.Mul(factor).Round(2)
	total := unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
	base := p.Price.Round(2)
	full := base.Mul(decimal.NewFromInt(int64(qty))).Round(2)

	return &PriceQuote{
		ProductID:       p.ID.String(),
		Quantity:        qty,
		BaseUnitPrice:   base,
		DiscountPercent: percent,
		UnitPrice:       unit,
		Total:           total,
		Savings:         full.Sub(total),
	}, nil
}
