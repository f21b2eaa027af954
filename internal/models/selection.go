// internal/models/selection.go
package models

import "time"

// SavedProduct is an entry of the admin working set.
type SavedProduct struct {
	StyleCode      string    `json:"styleCode" validate:"required,style_code"`
	StyleName      string    `json:"styleName"`
	ProductType    string    `json:"productType"`
	SelectedColors []string  `json:"selectedColors" validate:"required,min=1,dive,required"`
	Timestamp      time.Time `json:"timestamp"`
}

type PublishedProduct struct {
	SavedProduct
	Published   bool      `json:"published"`
	PublishedAt time.Time `json:"publishedAt"`
}

type ProductRef struct {
	StyleCode   string `json:"styleCode" validate:"required,style_code"`
	StyleName   string `json:"styleName"`
	ProductType string `json:"productType"`
	Gender      string `json:"gender,omitempty"`
}

// Ref summarises a catalog product for workflow and history records.
func (p Product) Ref() ProductRef {
	return ProductRef{
		StyleCode:   p.StyleCode,
		StyleName:   p.StyleName,
		ProductType: p.ProductType,
		Gender:      p.Gender,
	}
}

// CreatorWorkflowData is the in-progress state of the creator wizard. Images
// are data URLs or remote URLs.
type CreatorWorkflowData struct {
	SelectedProduct ProductRef `json:"selectedProduct"`
	SelectedColors  []string   `json:"selectedColors" validate:"required,min=1,dive,required"`
	ModelImage      string     `json:"modelImage,omitempty"`
	LogoImage       string     `json:"logoImage,omitempty"`
	Prompt          string     `json:"prompt,omitempty"`
}

type ImageSource string

const (
	ImageSourceBase64 ImageSource = "base64"
	ImageSourceURL    ImageSource = "url"
)

// GeneratedImageAsset is one per-colour render hosted by the generator.
type GeneratedImageAsset struct {
	Color string `json:"color,omitempty"`
	URL   string `json:"url"`
	Key   string `json:"key,omitempty"`
}

type GeneratedImageEntry struct {
	ID             string                 `json:"id"`
	Image          string                 `json:"image"`
	Prompt         string                 `json:"prompt"`
	CreatedAt      time.Time              `json:"createdAt"`
	Product        ProductRef             `json:"product"`
	SelectedColors []string               `json:"selectedColors"`
	Source         ImageSource            `json:"source,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
	Assets         []GeneratedImageAsset  `json:"assets,omitempty"`
}
