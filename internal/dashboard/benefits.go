package dashboard

import (
	"sort"

	"github.com/Ge9Nico/SWYM/internal/models"
)

// SortPolicies orders policies by creation time, then id. Policies that tie on both keep their input order.
func SortPolicies(policies []models.PolicyRecord) []models.PolicyRecord {
	out := make([]models.PolicyRecord, len(policies))
	copy(out, policies)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// DedupPerks flattens the perks of all policies and keeps one entry per name. Policies are
// visited in SortPolicies order and the last description seen for a name wins; the entry stays
// where the name first appeared.
func DedupPerks(policies []models.PolicyRecord) []models.Benefit {
	index := make(map[string]int)
	out := []models.Benefit{}
	for _, p := range SortPolicies(policies) {
		for _, perk := range p.Perks {
			if i, ok := index[perk.Name]; ok {
				out[i] = perk
				continue
			}
			index[perk.Name] = len(out)
			out = append(out, perk)
		}
	}
	return out
}
