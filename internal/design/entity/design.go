package entity

import (
	"encoding/json"
	"time"

	"github.com/ovaphlow/pitchfork/service-shop-go/pkg/database"
)

// Design is the JSON storefront configuration of a store. One per store.
type Design struct {
	ID          int64          `db:"id" json:"id"`
	StoreID     int64          `db:"store_id" json:"store_id"`
	DesignData  database.JSONB `db:"design_data" json:"design_data"`
	Theme       database.JSONB `db:"theme" json:"theme"`
	CustomCSS   *string        `db:"custom_css" json:"custom_css"`
	IsPublished bool           `db:"is_published" json:"is_published"`
	Version     int            `db:"version" json:"version"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updated_at"`
}

// NewDesign returns the empty, unpublished design a store starts with.
func NewDesign(storeID int64) *Design {
	return &Design{StoreID: storeID, DesignData: database.JSONB(`{}`), Version: 1}
}

// Patch lists the editable design fields. Nil means unchanged.
type Patch struct {
	DesignData  database.JSONB `json:"design_data"`
	Theme       database.JSONB `json:"theme"`
	CustomCSS   *string        `json:"custom_css"`
	IsPublished *bool          `json:"is_published"`
}

// Apply copies the set fields of p onto d. A JSON null design_data resets it
// to an empty object.
func (p Patch) Apply(d *Design) {
	if p.DesignData != nil {
		if p.DesignData.IsNull() {
			d.DesignData = database.JSONB(`{}`)
		} else {
			d.DesignData = p.DesignData
		}
	}
	if p.Theme != nil {
		if p.Theme.IsNull() {
			d.Theme = nil
		} else {
			d.Theme = p.Theme
		}
	}
	if p.CustomCSS != nil {
		d.CustomCSS = p.CustomCSS
	}
	if p.IsPublished != nil {
		d.IsPublished = *p.IsPublished
	}
}

// StoreLogo returns the logo url the design editor stores under storeLogo
// (or store_logo), if any.
func (p Patch) StoreLogo() string {
	if len(p.DesignData) == 0 {
		return ""
	}
	var dd struct {
		StoreLogo  string `json:"storeLogo"`
		StoreLogo2 string `json:"store_logo"`
	}
	if err := json.Unmarshal(p.DesignData, &dd); err != nil {
		return ""
	}
	if dd.StoreLogo != "" {
		return dd.StoreLogo
	}
	return dd.StoreLogo2
}

// Published is the public view of a store with a published design.
type Published struct {
	ID           int64          `json:"id"`
	Name         string         `json:"name"`
	Slug         string         `json:"slug"`
	Description  *string        `json:"description"`
	Color        string         `json:"color"`
	LogoURL      *string        `json:"logo_url"`
	Domain       *string        `json:"domain"`
	DesignData   database.JSONB `json:"design_data"`
	Theme        database.JSONB `json:"theme"`
	CustomCSS    *string        `json:"custom_css"`
	Version      int            `json:"version"`
	Published    bool           `json:"published"`
	PublishedURL string         `json:"published_url"`
}
