// internal/creator/colors.go
package creator

import (
	"sort"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
)

// VariantColors lists the distinct non-empty colours of a style's variants,
// sorted.
func VariantColors(variants []models.Variant) []string {
	seen := make(map[string]struct{}, len(variants))
	out := make([]string, 0, len(variants))
	for _, v := range variants {
		if v.Colour == "" {
			continue
		}
		if _, ok := seen[v.Colour]; ok {
			continue
		}
		seen[v.Colour] = struct{}{}
		out = append(out, v.Colour)
	}
	sort.Strings(out)
	return out
}

// AvailableColors returns the colours a user may pick for a style. Admins
// see every variant colour. Creators see only the colours published for the
// style, intersected with the variant colours when those are known; an
// unpublished style offers nothing.
func AvailableColors(mode models.UserMode, variants []models.Variant, published *models.PublishedProduct) []string {
	variantColors := VariantColors(variants)
	if mode != models.UserModeCreator {
		return variantColors
	}
	if published == nil {
		return []string{}
	}

	if len(variantColors) == 0 {
		return uniqueSorted(published.SelectedColors)
	}

	allowed := make(map[string]struct{}, len(published.SelectedColors))
	for _, c := range published.SelectedColors {
		allowed[c] = struct{}{}
	}
	out := make([]string, 0, len(allowed))
	for _, c := range variantColors {
		if _, ok := allowed[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

// InitialSelection picks the colours preselected on a product page: the saved
// selection for admins, and for creators the in-progress workflow colours
// when the workflow is for the same style. Colours outside available are
// dropped.
func InitialSelection(mode models.UserMode, styleCode string, saved *models.SavedProduct, workflow *models.CreatorWorkflowData, available []string) []string {
	var picked []string
	switch mode {
	case models.UserModeCreator:
		if workflow != nil && workflow.SelectedProduct.StyleCode == styleCode {
			picked = workflow.SelectedColors
		}
	default:
		if saved != nil && saved.StyleCode == styleCode {
			picked = saved.SelectedColors
		}
	}
	return intersect(picked, available)
}

func intersect(values, allowed []string) []string {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := set[v]; ok {
			out = append(out, v)
			delete(set, v)
		}
	}
	return out
}

func uniqueSorted(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
