package entity

import "time"

const DefaultColor = "#2563EBCC"

// Store is a tenant storefront owned by one user.
type Store struct {
	ID          int64     `db:"id" json:"id"`
	UserID      int64     `db:"user_id" json:"user_id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description"`
	Color       string    `db:"color" json:"color"`
	Slug        string    `db:"slug" json:"slug"`
	LogoURL     *string   `db:"logo_url" json:"logo_url"`
	Domain      *string   `db:"domain" json:"domain"`
	IsActive    bool      `db:"is_active" json:"is_active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Patch lists the fields a store owner may change. Nil means unchanged.
type Patch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Color       *string `json:"color"`
	Slug        *string `json:"slug"`
	LogoURL     *string `json:"logo_url"`
	Domain      *string `json:"domain"`
}

// Apply copies the set fields of p onto s. Slug is handled by the caller.
func (p Patch) Apply(s *Store) {
	if p.Name != nil {
		s.Name = *p.Name
	}
	if p.Description != nil {
		s.Description = p.Description
	}
	if p.Color != nil {
		s.Color = *p.Color
	}
	if p.LogoURL != nil {
		s.LogoURL = p.LogoURL
	}
	if p.Domain != nil {
		s.Domain = p.Domain
	}
}
