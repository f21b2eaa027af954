// internal/models/common.go
package models

import "encoding/json"

// Envelope is the {data, success, message} shape the proxy hands back for list
// endpoints.
type Envelope[T any] struct {
	Data    T      `json:"data"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// GenerateEnvelope is the proxy's response to an image generation request.
type GenerateEnvelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// Enums
type UserMode string

const (
	UserModeAdmin   UserMode = "admin"
	UserModeCreator UserMode = "creator"
)

func (m UserMode) Valid() bool {
	return m == UserModeAdmin || m == UserModeCreator
}

// Toggle returns the other mode.
func (m UserMode) Toggle() UserMode {
	if m == UserModeCreator {
		return UserModeAdmin
	}
	return UserModeCreator
}

const (
	GenderAll    = "All"
	GenderMen    = "Men"
	GenderWomen  = "Women"
	GenderKids   = "Kids | Youth"
	GenderUnisex = "Unisex"
)

// GenderOptions lists the explicit gender filters offered to users.
var GenderOptions = []string{GenderMen, GenderWomen, GenderKids, GenderUnisex}

// ProductWeights is the fixed set of weight classes.
var ProductWeights = []string{"Light Weight", "Mid Weight", "Heavy Weight"}

// KnownCategories is the display order of product types.
var KnownCategories = []string{
	"T-Shirts",
	"Longsleeve T-Shirts",
	"Crew Sweatshirts",
	"Zip Sweatshirts",
	"Singlets / Tanks",
	"Hooded Sweatshirts",
	"Trackpants",
	"Shorts",
	"Shirts",
	"Dresses",
	"Bags",
	"Headwear",
	"Underwear",
	"Socks",
	"Aprons",
	"Belts",
}
