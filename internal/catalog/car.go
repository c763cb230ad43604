// Package catalog provides the vehicle catalog: the Car model, its Postgres
// repository, and search with make/model normalization.
package catalog

import (
	"time"

	"github.com/google/uuid"
)

// Car is one catalog entry.
type Car struct {
	ID        uuid.UUID  `json:"id"`
	StockID   string     `json:"stock_id"`
	Make      string     `json:"make"`
	Model     string     `json:"model"`
	Year      int        `json:"year"`
	Price     float64    `json:"price"`
	KM        int        `json:"km"`
	Version   string     `json:"version,omitempty"`
	Bluetooth bool       `json:"bluetooth"`
	CarPlay   bool       `json:"car_play"`
	Length    *float64   `json:"length,omitempty"`
	Width     *float64   `json:"width,omitempty"`
	Height    *float64   `json:"height,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"-"`
}

// Filter narrows a catalog search. Zero values mean "no constraint".
type Filter struct {
	Make     string
	Model    string
	Year     int
	MinYear  int
	MaxYear  int
	MinPrice float64
	MaxPrice float64
	Limit    int
}
