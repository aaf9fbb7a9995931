package reward

import (
	"fmt"
	"math"
	"time"

	"github.com/focusguard/focusguard/go/internal/models"
)

// Tier is one entry of the cosmetic rarity table.
type Tier struct {
	Rarity      models.Rarity `yaml:"rarity"`
	Probability float64       `yaml:"probability"`
}

// FocusBoost raises every rarity threshold as an owner's lifetime focus grows.
type FocusBoost struct {
	PerHundredMinutes float64 `yaml:"per_hundred_minutes"`
	Cap               float64 `yaml:"cap"`
}

// Policy holds the product-tunable reward constants.
type Policy struct {
	XPPerMinute int `yaml:"xp_per_minute"`
	XPPerLevel  int `yaml:"xp_per_level"`
	// Tiers are ordered rarest first; a draw past every tier falls to DefaultRarity.
	Tiers         []Tier        `yaml:"tiers"`
	DefaultRarity models.Rarity `yaml:"default_rarity"`
	FocusBoost    FocusBoost    `yaml:"focus_boost"`
	Timezone      string        `yaml:"timezone"`
}

// DefaultPolicy returns the stock reward constants.
func DefaultPolicy() Policy {
	return Policy{
		XPPerMinute: 10,
		XPPerLevel:  250,
		Tiers: []Tier{
			{Rarity: models.RarityLegendary, Probability: 0.05},
			{Rarity: models.RarityEpic, Probability: 0.15},
			{Rarity: models.RarityRare, Probability: 0.30},
		},
		DefaultRarity: models.RarityCommon,
		Timezone:      "UTC",
	}
}

// Validate checks the policy is internally consistent.
func (p Policy) Validate() error {
	if p.XPPerMinute <= 0 {
		return fmt.Errorf("xp_per_minute must be positive, got %d", p.XPPerMinute)
	}
	if p.XPPerLevel <= 0 {
		return fmt.Errorf("xp_per_level must be positive, got %d", p.XPPerLevel)
	}

	total := 0.0
	seen := make(map[models.Rarity]bool)
	for _, t := range p.Tiers {
		if _, _, ok := t.Rarity.VariantRange(); !ok {
			return fmt.Errorf("unknown rarity %q in tiers", t.Rarity)
		}
		if seen[t.Rarity] {
			return fmt.Errorf("rarity %q listed twice", t.Rarity)
		}
		seen[t.Rarity] = true
		if t.Probability < 0 || t.Probability > 1 {
			return fmt.Errorf("probability for %s must be within [0,1], got %v", t.Rarity, t.Probability)
		}
		total += t.Probability
	}
	if total > 1 {
		return fmt.Errorf("tier probabilities sum to %v, must not exceed 1", total)
	}

	if p.DefaultRarity != models.RarityNone && p.DefaultRarity != "" {
		if _, _, ok := p.DefaultRarity.VariantRange(); !ok {
			return fmt.Errorf("unknown default rarity %q", p.DefaultRarity)
		}
	}

	if p.FocusBoost.PerHundredMinutes < 0 || p.FocusBoost.Cap < 0 {
		return fmt.Errorf("focus boost must not be negative")
	}
	if total+p.FocusBoost.Cap > 1 {
		return fmt.Errorf("focus boost cap %v pushes thresholds past 1", p.FocusBoost.Cap)
	}

	if _, err := p.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the timezone used for calendar-day streaks.
func (p Policy) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// boost returns the threshold shift earned by lifetime focus time.
func (p Policy) boost(totalFocusSeconds int) float64 {
	if p.FocusBoost.PerHundredMinutes == 0 {
		return 0
	}
	minutes := float64(totalFocusSeconds) / 60
	return math.Min(p.FocusBoost.Cap, minutes/100*p.FocusBoost.PerHundredMinutes)
}

// Draw maps one uniform sample r in [0,1) to a rarity and a plant variant.
// The variant is taken from r's position inside the winning band so a single
// sample decides both.
func (p Policy) Draw(r float64, totalFocusSeconds int) (models.Rarity, int) {
	shift := p.boost(totalFocusSeconds)

	lower := 0.0
	upper := shift
	for _, t := range p.Tiers {
		upper += t.Probability
		if r < upper {
			return t.Rarity, variantIn(t.Rarity, r, lower, upper)
		}
		lower = upper
	}

	if p.DefaultRarity == "" || p.DefaultRarity == models.RarityNone {
		return models.RarityNone, 0
	}
	return p.DefaultRarity, variantIn(p.DefaultRarity, r, lower, 1)
}

func variantIn(rarity models.Rarity, r, lower, upper float64) int {
	lo, hi, ok := rarity.VariantRange()
	if !ok {
		return 0
	}
	width := upper - lower
	if width <= 0 {
		return lo
	}
	n := hi - lo + 1
	idx := int((r - lower) / width * float64(n))
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return lo + idx
}
