package business

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"suppliersync/config/values"
)

var (
	ErrBelowMarginFloor = errors.New("margin below floor")
	ErrInvalidWholesale = errors.New("wholesale price must be positive")
	ErrNoPricingTier    = errors.New("no pricing tier for price")
)

var hundred = decimal.NewFromInt(100)

type priceTier struct {
	below      decimal.Decimal
	open       bool
	multiplier decimal.Decimal
}

// PriceEngine считает розничную цену по оптовой: множитель зависит от
// ценового диапазона, для категорий диапазоны можно переопределить.
type PriceEngine struct {
	floor      decimal.Decimal
	tiers      []priceTier
	categories map[string][]priceTier
}

type PriceResult struct {
	Retail        decimal.Decimal `json:"retail"`
	MarginPercent decimal.Decimal `json:"margin_percent"`
	Multiplier    decimal.Decimal `json:"multiplier"`
}

func NewPriceEngine(pricing values.PricingValues) (*PriceEngine, error) {
	tiers, err := buildTiers(pricing.Tiers)
	if err != nil {
		return nil, err
	}
	engine := &PriceEngine{
		floor:      decimal.NewFromFloat(pricing.MarginFloor),
		tiers:      tiers,
		categories: make(map[string][]priceTier, len(pricing.Categories)),
	}
	for category, raw := range pricing.Categories {
		t, err := buildTiers(raw)
		if err != nil {
			return nil, fmt.Errorf("category %q: %w", category, err)
		}
		engine.categories[categoryKey(category)] = t
	}
	return engine, nil
}

// buildTiers orders bounded bands ascending and puts the open band last.
func buildTiers(raw []values.PricingTier) ([]priceTier, error) {
	if len(raw) == 0 {
		return nil, errors.New("no pricing tiers")
	}
	tiers := make([]priceTier, 0, len(raw))
	open := 0
	for _, t := range raw {
		if t.Multiplier <= 0 {
			return nil, fmt.Errorf("multiplier %v must be positive", t.Multiplier)
		}
		if t.Below < 0 {
			return nil, fmt.Errorf("tier bound %v must not be negative", t.Below)
		}
		pt := priceTier{
			below:      decimal.NewFromFloat(t.Below),
			open:       t.Below == 0,
			multiplier: decimal.NewFromFloat(t.Multiplier),
		}
		if pt.open {
			open++
		}
		tiers = append(tiers, pt)
	}
	if open > 1 {
		return nil, errors.New("more than one open pricing tier")
	}
	sort.SliceStable(tiers, func(i, j int) bool {
		if tiers[i].open != tiers[j].open {
			return !tiers[i].open
		}
		return tiers[i].below.LessThan(tiers[j].below)
	})
	return tiers, nil
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

// Multiplier returns the markup of the band containing wholesale. A price
// equal to a band's bound belongs to the next band up.
func (e *PriceEngine) Multiplier(wholesale decimal.Decimal, category string) (decimal.Decimal, error) {
	tiers := e.tiers
	if t, ok := e.categories[categoryKey(category)]; ok {
		tiers = t
	}
	for _, t := range tiers {
		if t.open || wholesale.LessThan(t.below) {
			return t.multiplier, nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w %s", ErrNoPricingTier, wholesale.StringFixed(2))
}

// Price rounds retail to cents (half up) and checks the margin floor on the
// rounded value. A result under the floor comes back together with
// ErrBelowMarginFloor so callers can log it.
func (e *PriceEngine) Price(wholesale decimal.Decimal, category string) (PriceResult, error) {
	if !wholesale.IsPositive() {
		return PriceResult{}, fmt.Errorf("%w: %s", ErrInvalidWholesale, wholesale.String())
	}
	multiplier, err := e.Multiplier(wholesale, category)
	if err != nil {
		return PriceResult{}, err
	}

	retail := wholesale.Mul(multiplier).Round(2)
	margin := retail.Sub(wholesale).Div(wholesale).Mul(hundred)
	result := PriceResult{
		Retail:        retail,
		MarginPercent: margin.Round(2),
		Multiplier:    multiplier,
	}
	if margin.LessThan(e.floor) {
		return result, fmt.Errorf("%w: %s%% < %s%% (wholesale %s)",
			ErrBelowMarginFloor, margin.StringFixed(2), e.floor.String(), wholesale.StringFixed(2))
	}
	return result, nil
}

func (e *PriceEngine) MarginFloor() decimal.Decimal {
	return e.floor
}
