package model

import "time"

// Role distinguishes the two professional types on the marketplace.
type Role string

const (
	// RoleVendor is a building-materials supplier.
	RoleVendor Role = "vendor"
	// RoleTrade is an installation/service professional.
	RoleTrade Role = "trade"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleVendor || r == RoleTrade
}

// ProfileStatus tracks a professional's lifecycle. Profiles are never hard
// deleted; suspension flips the status instead.
type ProfileStatus string

const (
	ProfileActive    ProfileStatus = "active"
	ProfileSuspended ProfileStatus = "suspended"
)

// DefaultServiceRadiusMiles applies when a professional registers without a
// declared radius.
const DefaultServiceRadiusMiles = 50.0

// Profile is a professional's registration record. Geohash is derived from
// Location and must be recomputed whenever the ZIP (and therefore Location)
// changes. Vendors declare ProductCategories, trades declare TradeCategories;
// Categories selects the right field by role.
type Profile struct {
	ID           string        `json:"id"`
	Email        string        `json:"email"`
	DisplayName  string        `json:"display_name"`
	BusinessName string        `json:"business_name,omitempty"`
	Role         Role          `json:"role"`
	Status       ProfileStatus `json:"status"`

	ZIP      string   `json:"zip"`
	Location GeoPoint `json:"location"`
	Geohash  string   `json:"geohash"`

	ServiceRadiusMiles float64 `json:"service_radius_miles"`

	ProductCategories []string `json:"product_categories,omitempty"`
	TradeCategories   []string `json:"trade_categories,omitempty"`

	Rating      float64 `json:"rating"`
	ReviewCount int     `json:"review_count"`
	Verified    bool    `json:"verified"`

	CreatedAt  time.Time `json:"created_at"`
	LastActive time.Time `json:"last_active"`
}

// Categories returns the role-appropriate category list. A profile whose
// list is empty matches no lead.
func (p *Profile) Categories() []string {
	switch p.Role {
	case RoleVendor:
		return p.ProductCategories
	case RoleTrade:
		return p.TradeCategories
	default:
		return nil
	}
}

// SetCategories assigns the role-appropriate category field.
func (p *Profile) SetCategories(cats []string) {
	switch p.Role {
	case RoleVendor:
		p.ProductCategories = cats
	case RoleTrade:
		p.TradeCategories = cats
	}
}
