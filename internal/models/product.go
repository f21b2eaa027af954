// internal/models/product.go
package models

import (
	"encoding/json"
	"strings"
)

// Product is a catalog style as returned by the AS Colour catalog.
type Product struct {
	StyleCode          string `json:"styleCode"`
	StyleName          string `json:"styleName"`
	Description        string `json:"description"`
	ShortDescription   string `json:"shortDescription"`
	PrintingTechniques string `json:"printingTechniques"`
	FabricWeight       string `json:"fabricWeight"`
	Composition        string `json:"composition"`
	WebID              int    `json:"webId"`
	ProductType        string `json:"productType"`
	ProductWeight      string `json:"productWeight"`
	CoreRange          string `json:"coreRange"`
	Fit                string `json:"fit"`
	Gender             string `json:"gender"`
	ProductSpecURL     string `json:"productSpecURL"`
	SizeGuideURL       string `json:"sizeGuideURL"`
	WebsiteURL         string `json:"websiteURL"`
	UpdatedAt          string `json:"updatedAt"`
}

type ProductImage struct {
	StyleCode    string `json:"styleCode"`
	ImageType    string `json:"imageType"`
	URLStandard  string `json:"urlStandard"`
	URLThumbnail string `json:"urlThumbnail"`
	URLTiny      string `json:"urlTiny"`
	URLZoom      string `json:"urlZoom"`
}

// URL returns the best available resolution, standard first.
func (i ProductImage) URL() string {
	if i.URLStandard != "" {
		return i.URLStandard
	}
	return i.URLThumbnail
}

// PrimaryImage picks the image used to represent a product: MAIN, then FRONT,
// then any typed image that is not a back view, then anything with a
// thumbnail, then the first image.
func PrimaryImage(images []ProductImage) (ProductImage, bool) {
	if len(images) == 0 {
		return ProductImage{}, false
	}
	for _, want := range []string{"MAIN", "FRONT"} {
		for _, img := range images {
			if img.ImageType == want {
				return img, true
			}
		}
	}
	for _, img := range images {
		if img.ImageType != "" && !strings.Contains(img.ImageType, "BACK") {
			return img, true
		}
	}
	for _, img := range images {
		if img.URLThumbnail != "" {
			return img, true
		}
	}
	return images[0], true
}

type Variant struct {
	SKU       string `json:"sku"`
	StyleCode string `json:"styleCode"`
	Colour    string `json:"colour"`
	Size      string `json:"size"`
}

// InventoryItem keeps unknown upstream fields in Extra.
type InventoryItem struct {
	SKU       string                 `json:"sku"`
	Size      string                 `json:"size,omitempty"`
	Color     string                 `json:"color,omitempty"`
	Quantity  *int                   `json:"quantity,omitempty"`
	Available *bool                  `json:"available,omitempty"`
	Extra     map[string]interface{} `json:"-"`
}

func (i *InventoryItem) UnmarshalJSON(data []byte) error {
	type plain InventoryItem
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	var all map[string]interface{}
	if err := json.Unmarshal(data, &all); err != nil {
		return err
	}
	for _, known := range []string{"sku", "size", "color", "quantity", "available"} {
		delete(all, known)
	}
	if len(all) > 0 {
		p.Extra = all
	}
	*i = InventoryItem(p)
	return nil
}

// Colour is one entry of the global colour lookup.
type Colour struct {
	Colour string `json:"colour"`
	Hex    string `json:"hex"`
	Hex2   string `json:"hex2,omitempty"`
}

type Swatch struct {
	Hex  string `json:"hex"`
	Hex2 string `json:"hex2,omitempty"`
}

const UnknownSwatchHex = "#d4d4d4"

// ColourMap indexes colours by uppercase name, dropping entries without a
// name or a primary hex.
func ColourMap(colours []Colour) map[string]Swatch {
	out := make(map[string]Swatch, len(colours))
	for _, c := range colours {
		if c.Colour == "" || c.Hex == "" {
			continue
		}
		out[strings.ToUpper(c.Colour)] = Swatch{Hex: c.Hex, Hex2: c.Hex2}
	}
	return out
}

// SwatchStyle renders a CSS background for a colour name: a gradient for
// two-tone colours, a solid fill otherwise.
func SwatchStyle(swatches map[string]Swatch, colour string) string {
	s, ok := swatches[strings.ToUpper(colour)]
	if !ok {
		return "background-color: " + UnknownSwatchHex
	}
	if s.Hex2 != "" {
		return "background-image: linear-gradient(135deg, " + s.Hex + ", " + s.Hex2 + ")"
	}
	return "background-color: " + s.Hex
}
