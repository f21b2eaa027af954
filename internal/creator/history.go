// internal/creator/history.go
package creator

import "github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"

// StyleGroup is the generated images of one style, newest first.
type StyleGroup struct {
	StyleCode string                       `json:"styleCode"`
	StyleName string                       `json:"styleName"`
	Images    []models.GeneratedImageEntry `json:"images"`
}

// GroupByStyle groups a newest-first history by style code. Groups are
// ordered by their most recent image.
func GroupByStyle(entries []models.GeneratedImageEntry) []StyleGroup {
	index := make(map[string]int)
	var groups []StyleGroup
	for _, e := range entries {
		code := e.Product.StyleCode
		i, ok := index[code]
		if !ok {
			i = len(groups)
			index[code] = i
			groups = append(groups, StyleGroup{StyleCode: code, StyleName: e.Product.StyleName})
		}
		groups[i].Images = append(groups[i].Images, e)
	}
	return groups
}
