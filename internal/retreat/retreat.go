// Package retreat serves the public retreat catalogue: destinations, retreat
// listings with filters, detail pages, and departure availability.
package retreat

import (
	"time"

	"github.com/shopspring/decimal"
)

// Destination is a surf destination grouping retreats.
type Destination struct {
	ID          string `json:"id"`
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	CountryCode string `json:"countryCode"`
	Description string `json:"description,omitempty"`
}

// ListItem is a retreat entry in listing responses.
type ListItem struct {
	ID              string          `json:"id"`
	Slug            string          `json:"slug"`
	Title           string          `json:"title"`
	Summary         string          `json:"summary,omitempty"`
	DestinationSlug string          `json:"destination"`
	CountryCode     string          `json:"countryCode"`
	PriceFrom       decimal.Decimal `json:"priceFrom"`
	Currency        string          `json:"currency"`
	HeroImage       *string         `json:"heroImage,omitempty"`
	SkillLevels     []string        `json:"skillLevels"`
}

// Package is a bookable room/board option within a retreat.
type Package struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	MaxGuests   int             `json:"maxGuests"`
}

// Departure is a dated departure with remaining capacity.
type Departure struct {
	ID         string    `json:"id"`
	StartDate  time.Time `json:"startDate"`
	EndDate    time.Time `json:"endDate"`
	SpotsTotal int       `json:"spotsTotal"`
	SpotsLeft  int       `json:"spotsLeft"`
}

// Detail aggregates the full retreat payload.
type Detail struct {
	ListItem
	Description string      `json:"description"`
	Destination Destination `json:"destinationInfo"`
	Packages    []Package   `json:"packages"`
	Departures  []Departure `json:"departures"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// ListParams captures filters for the retreat listing.
type ListParams struct {
	Query       string
	Destination string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	Month       string // YYYY-MM, limits to retreats with a departure that month
	Skill       string // beginner, intermediate, advanced
	Sort        string // price_asc, price_desc, newest
	Page        int
	Limit       int
}

// ListResult contains list data and pagination metadata.
type ListResult struct {
	Items []ListItem
	Total int64
	Page  int
	Limit int
}
