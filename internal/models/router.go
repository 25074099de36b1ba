package models

import "time"

// Router is a media-relay resource with a geographic position. Capacity is
// tracked per media kind in RouterService rows.
type Router struct {
	ID          string   `gorm:"primaryKey;size:36" json:"_id"`
	Url         string   `gorm:"uniqueIndex;size:500;not null" json:"url"`
	Path        string   `gorm:"size:200" json:"path"`
	ApiServer   string   `gorm:"size:100;index" json:"apiServer"`
	CountryCode string   `gorm:"size:10" json:"countryCode"`
	City        string   `gorm:"size:100" json:"city"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Router) TableName() string { return "routers" }

// HasPosition reports whether the router advertised a geographic position.
// Routers without one are only picked when nothing better exists.
func (r *Router) HasPosition() bool {
	return r.Lat != nil && r.Lng != nil
}

// RouterService is the remaining capacity of one Router for one media kind.
type RouterService struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	RouterID string `gorm:"size:36;index;uniqueIndex:idx_router_kind,priority:1;not null" json:"routerId"`
	Kind     string `gorm:"size:50;uniqueIndex:idx_router_kind,priority:2;not null" json:"kind"`
	Capacity int    `gorm:"default:0" json:"capacity"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (RouterService) TableName() string { return "router_services" }
