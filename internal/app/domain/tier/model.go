// Package tier defines the purchasable membership tiers.
package tier

// ID identifies a membership tier.
type ID string

// Known tier identifiers, ordered by price.
const (
	Regular ID = "regular"
	Elite   ID = "elite"
	God     ID = "god"
)

// Definition describes a purchasable tier. Definitions are loaded once at
// startup and never mutated.
type Definition struct {
	ID              ID       `json:"id" yaml:"id"`
	DisplayName     string   `json:"displayName" yaml:"display_name"`
	PriceMinorUnits int64    `json:"amount" yaml:"price_minor_units"`
	Currency        string   `json:"currency" yaml:"currency"`
	Features        []string `json:"features" yaml:"features"`
}

// Rank returns the price-ordering rank of a tier id. Higher rank means a more
// expensive tier; unknown ids rank below every known tier.
func Rank(id ID) int {
	switch id {
	case Regular:
		return 1
	case Elite:
		return 2
	case God:
		return 3
	default:
		return 0
	}
}
