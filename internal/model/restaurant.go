package model

import "time"

// Restaurant represents a venue that accepts table reservations.
// Restaurants are never hard-deleted: deactivation clears IsActive so
// that historical reservations keep a valid reference.
//
// Fields:
//  ID            – primary key identifier.
//  Name          – display name.
//  Description   – optional free-form description.
//  Cuisine       – cuisine label used for browsing filters.
//  Phone, Email  – contact details (optional).
//  StreetAddress – street line of the address.
//  City, State   – locality used for browsing filters.
//  ZipCode       – postal code.
//  Country       – country name (defaults to USA).
//  PriceRange    – price tier such as "$$".
//  Rating        – aggregate rating maintained elsewhere.
//  IsActive      – whether the restaurant accepts bookings.
//  CreatedAt     – creation timestamp.
//  UpdatedAt     – last update timestamp.
type Restaurant struct {
	ID            uint64    `json:"id"`             // restaurants.id
	Name          string    `json:"name"`           // restaurants.name
	Description   *string   `json:"description"`    // restaurants.description (nullable)
	Cuisine       string    `json:"cuisine"`        // restaurants.cuisine
	Phone         *string   `json:"phone"`          // restaurants.phone (nullable)
	Email         *string   `json:"email"`          // restaurants.email (nullable)
	StreetAddress string    `json:"street_address"` // restaurants.street_address
	City          string    `json:"city"`           // restaurants.city
	State         string    `json:"state"`          // restaurants.state
	ZipCode       string    `json:"zip_code"`       // restaurants.zip_code
	Country       string    `json:"country"`        // restaurants.country
	PriceRange    string    `json:"price_range"`    // restaurants.price_range
	Rating        float64   `json:"rating"`         // restaurants.rating
	IsActive      bool      `json:"is_active"`      // restaurants.is_active
	CreatedAt     time.Time `json:"created_at"`     // restaurants.created_at
	UpdatedAt     time.Time `json:"updated_at"`     // restaurants.updated_at
}

// Table is a bookable seating resource inside a restaurant. TableNumber
// is unique within its restaurant. IsAvailable removes the table from
// the bookable pool without touching reservations that already point
// at it.
type Table struct {
	ID           uint64    `json:"id"`            // restaurant_tables.id
	RestaurantID uint64    `json:"restaurant_id"` // restaurant_tables.restaurant_id
	TableNumber  string    `json:"table_number"`  // restaurant_tables.table_number
	Capacity     int       `json:"capacity"`      // restaurant_tables.capacity
	IsAvailable  bool      `json:"is_available"`  // restaurant_tables.is_available
	CreatedAt    time.Time `json:"created_at"`    // restaurant_tables.created_at
}

// OpeningHours describes one weekday of a restaurant's schedule.
// DayOfWeek follows time.Weekday (0 = Sunday). OpenTime and CloseTime
// are "HH:MM" strings and are empty when IsClosed is set.
type OpeningHours struct {
	DayOfWeek int    `json:"day_of_week"` // restaurant_hours.day_of_week
	OpenTime  string `json:"open_time"`   // restaurant_hours.open_time
	CloseTime string `json:"close_time"`  // restaurant_hours.close_time
	IsClosed  bool   `json:"is_closed"`   // restaurant_hours.is_closed
}

// RestaurantFilter narrows restaurant listings. Empty fields are ignored.
// Search matches name or description.
type RestaurantFilter struct {
	Cuisine string
	City    string
	Search  string
	Limit   int
}

// RestaurantPatch carries optional metadata changes for a restaurant.
// Nil fields are left untouched.
type RestaurantPatch struct {
	Name          *string
	Description   *string
	Cuisine       *string
	Phone         *string
	Email         *string
	StreetAddress *string
	City          *string
	State         *string
	ZipCode       *string
	Country       *string
	PriceRange    *string
}

// Empty reports whether the patch changes nothing.
func (p RestaurantPatch) Empty() bool {
	return p.Name == nil && p.Description == nil && p.Cuisine == nil &&
		p.Phone == nil && p.Email == nil && p.StreetAddress == nil &&
		p.City == nil && p.State == nil && p.ZipCode == nil &&
		p.Country == nil && p.PriceRange == nil
}

// TablePatch carries optional changes to a table.
type TablePatch struct {
	Capacity    *int
	IsAvailable *bool
}
