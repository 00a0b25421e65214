package service

import (
	"sort"

	"commute-rewards/config"
	"commute-rewards/internal/core/domain"
	"commute-rewards/internal/core/ports"
)

// defaultRewards is the built-in catalog used when no rewards are configured.
var defaultRewards = []domain.RewardDefinition{
	{Title: "₹50 Ride Voucher", Cost: 200, Description: "₹50 off your next metro or bus ride"},
	{Title: "₹100 Ride Voucher", Cost: 380, Description: "₹100 off your next metro or bus ride"},
	{Title: "Free Coffee", Cost: 100, Description: "One free coffee at partner campus cafes"},
	{Title: "Canteen Meal Coupon", Cost: 150, Description: "One subsidized meal at the campus canteen"},
	{Title: "Movie Ticket Discount", Cost: 500, Description: "₹150 off a weekend movie ticket"},
}

// catalogService is the authoritative reward catalog. Costs configured on the
// server are the only costs that count; client-claimed costs are checked
// against this and never trusted.
type catalogService struct {
	byTitle map[string]domain.RewardDefinition
}

func NewCatalogService(cfg config.CatalogConfig) ports.RewardCatalog {
	byTitle := make(map[string]domain.RewardDefinition, len(defaultRewards))
	for _, r := range defaultRewards {
		byTitle[r.Title] = r
	}
	// Config entries override or extend the built-ins.
	for title, cost := range cfg.Rewards {
		if cost <= 0 {
			continue
		}
		def, ok := byTitle[title]
		if !ok {
			def = domain.RewardDefinition{Title: title}
		}
		def.Cost = cost
		byTitle[title] = def
	}
	return &catalogService{byTitle: byTitle}
}

func (s *catalogService) Lookup(title string) (domain.RewardDefinition, bool) {
	def, ok := s.byTitle[title]
	return def, ok
}

func (s *catalogService) List() []domain.RewardDefinition {
	out := make([]domain.RewardDefinition, 0, len(s.byTitle))
	for _, def := range s.byTitle {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Cost != out[j].Cost {
			return out[i].Cost < out[j].Cost
		}
		return out[i].Title < out[j].Title
	})
	return out
}
