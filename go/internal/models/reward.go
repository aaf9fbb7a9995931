package models

import (
	"time"

	"github.com/google/uuid"
)

// Rarity is the tier of a cosmetic garden item.
type Rarity string

const (
	RarityNone      Rarity = "none"
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// variantRanges maps each rarity to its inclusive plant_type range.
var variantRanges = map[Rarity][2]int{
	RarityCommon:    {0, 12},
	RarityRare:      {13, 15},
	RarityEpic:      {16, 17},
	RarityLegendary: {18, 18},
}

// VariantRange returns the inclusive plant variant range for a rarity.
func (r Rarity) VariantRange() (lo, hi int, ok bool) {
	v, ok := variantRanges[r]
	return v[0], v[1], ok
}

// RarityForVariant classifies a plant variant back into its rarity tier.
func RarityForVariant(variant int) Rarity {
	for r, v := range variantRanges {
		if variant >= v[0] && variant <= v[1] {
			return r
		}
	}
	return RarityNone
}

// StreakDelta is the change applied to a streak by one completion.
type StreakDelta int

const (
	StreakReset     StreakDelta = -1
	StreakUnchanged StreakDelta = 0
	StreakExtended  StreakDelta = 1
)

// MaxGrowthStage is a fully grown plant. Items are granted at stage 0.
const MaxGrowthStage = 5

// GardenItem is a cosmetic reward granted for a completed session.
type GardenItem struct {
	ID          uuid.UUID `json:"id"`
	OwnerID     string    `json:"owner_id"`
	SessionID   uuid.UUID `json:"session_id"`
	PlantNum    int       `json:"plant_num"`  // sequential per owner
	PlantType   int       `json:"plant_type"` // variant within the rarity range
	Rarity      Rarity    `json:"rarity"`
	GrowthStage int       `json:"growth_stage"`
	CreatedAt   time.Time `json:"created_at"`
}

// RewardOutcome is produced exactly once per completed session.
type RewardOutcome struct {
	SessionID     uuid.UUID   `json:"session_id"`
	OwnerID       string      `json:"owner_id"`
	XPAwarded     int         `json:"xp_awarded"`
	LevelBefore   int         `json:"level_before"`
	LevelAfter    int         `json:"level_after"`
	StreakDelta   StreakDelta `json:"streak_delta"`
	CurrentStreak int         `json:"current_streak"`
	ItemGranted   *GardenItem `json:"item_granted,omitempty"`
	CreatedAt     time.Time   `json:"created_at"`
}

// LeveledUp reports whether the award crossed at least one level boundary.
func (o *RewardOutcome) LeveledUp() bool {
	return o.LevelAfter > o.LevelBefore
}
