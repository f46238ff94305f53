package handler

// This file defines the public browsing API: restaurant listings, details
// and the availability check. These routes require no authentication.

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/model"
)

// DefaultRestaurantLimit caps restaurant listings when no limit is given.
const DefaultRestaurantLimit = 20

// RestaurantHandler serves restaurant browsing and administration.
type RestaurantHandler struct {
	Store    RestaurantStore   // restaurant catalog
	Resolver *booking.Resolver // availability queries
}

// NewRestaurantHandler constructs a RestaurantHandler and panics if any
// dependency is nil.
func NewRestaurantHandler(store RestaurantStore, resolver *booking.Resolver) *RestaurantHandler {
	if store == nil || resolver == nil {
		panic("nil dependency passed to NewRestaurantHandler")
	}
	return &RestaurantHandler{Store: store, Resolver: resolver}
}

// RestaurantDetail is a restaurant with its weekly hours and the tables
// currently offered for booking.
type RestaurantDetail struct {
	model.Restaurant
	Hours  []model.OpeningHours `json:"hours"`
	Tables []model.Table        `json:"tables"`
}

// ListRestaurants handles GET /v1/restaurants. Optional query parameters
// cuisine, city and search filter the result; limit caps it.
func (h *RestaurantHandler) ListRestaurants(c echo.Context) error {
	limit, err := queryInt(c, "limit", DefaultRestaurantLimit)
	if err != nil {
		return writeError(c, err)
	}
	if limit <= 0 || limit > 100 {
		return writeError(c, fmt.Errorf("%w: limit must be between 1 and 100", booking.ErrInvalidInput))
	}
	f := model.RestaurantFilter{
		Cuisine: c.QueryParam("cuisine"),
		City:    c.QueryParam("city"),
		Search:  c.QueryParam("search"),
		Limit:   limit,
	}
	items, err := h.Store.ListRestaurants(c.Request().Context(), f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// GetRestaurant handles GET /v1/restaurants/:id. Inactive restaurants are
// reported as not found.
func (h *RestaurantHandler) GetRestaurant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	ctx := c.Request().Context()
	r, err := h.Store.GetRestaurant(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	if !r.IsActive {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "restaurant not found"})
	}
	hours, err := h.Store.GetHours(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	tables, err := h.Store.GetTables(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	bookable := make([]model.Table, 0, len(tables))
	for _, t := range tables {
		if t.IsAvailable {
			bookable = append(bookable, t)
		}
	}
	return c.JSON(http.StatusOK, RestaurantDetail{Restaurant: *r, Hours: hours, Tables: bookable})
}

// CheckAvailability handles GET /v1/restaurants/:id/availability with the
// required query parameters date (YYYY-MM-DD), time (HH:MM) and
// party_size. The response lists the free tables that fit the party,
// smallest first.
func (h *RestaurantHandler) CheckAvailability(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	date, clock := c.QueryParam("date"), c.QueryParam("time")
	sizeParam := "party_size"
	if c.QueryParam(sizeParam) == "" {
		sizeParam = "partySize"
	}
	party, err := queryInt(c, sizeParam, 0)
	if err != nil {
		return writeError(c, err)
	}
	if date == "" || clock == "" || party == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "date, time and party_size are required"})
	}
	av, err := h.Resolver.Check(c.Request().Context(), id, date, clock, party)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, av)
}
