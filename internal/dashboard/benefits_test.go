package dashboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Ge9Nico/SWYM/internal/models"
)

func TestDedupPerks_LastWriteWins(t *testing.T) {
	policies := []models.PolicyRecord{
		{Perks: []models.Benefit{{Name: "A", Description: "x"}}},
		{Perks: []models.Benefit{{Name: "A", Description: "y"}}},
	}
	assert.Equal(t, []models.Benefit{{Name: "A", Description: "y"}}, DedupPerks(policies))
}

func TestDedupPerks_OrderedByCreation(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	older := models.PolicyRecord{ID: "z", CreatedAt: t0, Perks: []models.Benefit{
		{Name: "Gym", Description: "old"},
		{Name: "Travel", Description: "worldwide"},
	}}
	newer := models.PolicyRecord{ID: "a", CreatedAt: t0.Add(time.Hour), Perks: []models.Benefit{
		{Name: "Dental", Description: "basic"},
		{Name: "Gym", Description: "new"},
	}}

	got := DedupPerks([]models.PolicyRecord{newer, older})
	assert.Equal(t, []models.Benefit{
		{Name: "Gym", Description: "new"},
		{Name: "Travel", Description: "worldwide"},
		{Name: "Dental", Description: "basic"},
	}, got)
}

func TestDedupPerks_TieBrokenByID(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	b := models.PolicyRecord{ID: "b", CreatedAt: t0, Perks: []models.Benefit{{Name: "A", Description: "from b"}}}
	a := models.PolicyRecord{ID: "a", CreatedAt: t0, Perks: []models.Benefit{{Name: "A", Description: "from a"}}}

	assert.Equal(t, "from b", DedupPerks([]models.PolicyRecord{b, a})[0].Description)
}

func TestDedupPerks_Empty(t *testing.T) {
	assert.Empty(t, DedupPerks(nil))
	assert.NotNil(t, DedupPerks(nil))
}
