// internal/selection/gender.go
package selection

import (
	"strings"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

// NormalizeGender treats a blank gender as Unisex.
func NormalizeGender(gender string) string {
	if strings.TrimSpace(gender) == "" {
		return models.GenderUnisex
	}
	return gender
}

// MatchesGender reports whether a product belongs under a gender filter.
// No filter and "All" match everything, "Unisex" matches only unisex
// products, and any other filter matches its own gender plus unisex.
func MatchesGender(p models.Product, filter string) bool {
	if filter == "" || filter == models.GenderAll {
		return true
	}

	gender := NormalizeGender(p.Gender)
	if filter == models.GenderUnisex {
		return gender == models.GenderUnisex
	}
	if gender == models.GenderUnisex {
		return true
	}
	return gender == filter
}

func filterByGender(products []models.Product, filter string) []models.Product {
	if filter == "" || filter == models.GenderAll {
		return products
	}
	out := make([]models.Product, 0, len(products))
	for _, p := range products {
		if MatchesGender(p, filter) {
			out = append(out, p)
		}
	}
	return out
}
