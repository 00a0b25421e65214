package domain

// RewardDefinition is a static catalog entry. The catalog is held
// server-side and is the only source of truth for reward costs; a
// client-supplied cost is an assertion to be checked, never trusted.
type RewardDefinition struct {
	Title       string `json:"title"` // unique key
	Cost        int64  `json:"cost"`  // always positive
	Description string `json:"description,omitempty"`
}
