package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/model"
)

type createRestaurantRequest struct {
	Name          string  `json:"name" validate:"required,max=255"`
	Description   *string `json:"description"`
	Cuisine       string  `json:"cuisine" validate:"required,max=100"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Email         *string `json:"email" validate:"omitempty,email"`
	StreetAddress string  `json:"street_address" validate:"required,max=255"`
	City          string  `json:"city" validate:"required,max=100"`
	State         string  `json:"state" validate:"required,max=50"`
	ZipCode       string  `json:"zip_code" validate:"required,max=20"`
	Country       string  `json:"country" validate:"omitempty,max=50"`
	PriceRange    string  `json:"price_range" validate:"required,oneof=$ $$ $$$ $$$$"`
}

type updateRestaurantRequest struct {
	Name          *string `json:"name" validate:"omitempty,min=1,max=255"`
	Description   *string `json:"description"`
	Cuisine       *string `json:"cuisine" validate:"omitempty,min=1,max=100"`
	Phone         *string `json:"phone" validate:"omitempty,max=20"`
	Email         *string `json:"email" validate:"omitempty,email"`
	StreetAddress *string `json:"street_address" validate:"omitempty,min=1,max=255"`
	City          *string `json:"city" validate:"omitempty,min=1,max=100"`
	State         *string `json:"state" validate:"omitempty,min=1,max=50"`
	ZipCode       *string `json:"zip_code" validate:"omitempty,min=1,max=20"`
	Country       *string `json:"country" validate:"omitempty,min=1,max=50"`
	PriceRange    *string `json:"price_range" validate:"omitempty,oneof=$ $$ $$$ $$$$"`
}

type tableRequest struct {
	TableNumber string `json:"table_number" validate:"required,max=20"`
	Capacity    int    `json:"capacity" validate:"required,min=1,max=50"`
	IsAvailable *bool  `json:"is_available"`
}

type tablePatchRequest struct {
	Capacity    *int  `json:"capacity" validate:"omitempty,min=1,max=50"`
	IsAvailable *bool `json:"is_available"`
}

type hoursEntry struct {
	DayOfWeek int    `json:"day_of_week" validate:"min=0,max=6"`
	OpenTime  string `json:"open_time" validate:"omitempty,clock"`
	CloseTime string `json:"close_time" validate:"omitempty,clock"`
	IsClosed  bool   `json:"is_closed"`
}

type hoursRequest struct {
	Hours []hoursEntry `json:"hours" validate:"required,max=7,dive"`
}

// CreateRestaurant handles POST /v1/restaurants (admin). New restaurants
// are active immediately.
func (h *RestaurantHandler) CreateRestaurant(c echo.Context) error {
	var req createRestaurantRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	r := &model.Restaurant{
		Name:          strings.TrimSpace(req.Name),
		Description:   req.Description,
		Cuisine:       req.Cuisine,
		Phone:         req.Phone,
		Email:         req.Email,
		StreetAddress: req.StreetAddress,
		City:          req.City,
		State:         req.State,
		ZipCode:       req.ZipCode,
		Country:       req.Country,
		PriceRange:    req.PriceRange,
		IsActive:      true,
	}
	if err := h.Store.CreateRestaurant(c.Request().Context(), r); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// UpdateRestaurant handles PUT /v1/restaurants/:id (admin).
func (h *RestaurantHandler) UpdateRestaurant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req updateRestaurantRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	r, err := h.Store.UpdateRestaurant(c.Request().Context(), id, model.RestaurantPatch(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// DeleteRestaurant handles DELETE /v1/restaurants/:id (admin). The
// restaurant is deactivated, not removed, so its reservations keep
// their reference.
func (h *RestaurantHandler) DeleteRestaurant(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Store.DeactivateRestaurant(c.Request().Context(), id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddTable handles POST /v1/restaurants/:id/tables (admin).
func (h *RestaurantHandler) AddTable(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req tableRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	t := &model.Table{
		RestaurantID: id,
		TableNumber:  strings.TrimSpace(req.TableNumber),
		Capacity:     req.Capacity,
		IsAvailable:  req.IsAvailable == nil || *req.IsAvailable,
	}
	if err := h.Store.AddTable(c.Request().Context(), t); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// UpdateTable handles PUT /v1/restaurants/:id/tables/:tableId (admin).
// Existing reservations keep their table; the change only affects
// future admission.
func (h *RestaurantHandler) UpdateTable(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	tableID, err := pathID(c, "tableId")
	if err != nil {
		return writeError(c, err)
	}
	var req tablePatchRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	t, err := h.Store.UpdateTable(c.Request().Context(), id, tableID, model.TablePatch(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, t)
}

// SetHours handles PUT /v1/restaurants/:id/hours (admin). The body
// replaces the whole weekly schedule.
func (h *RestaurantHandler) SetHours(c echo.Context) error {
	id, err := pathID(c, "id")
	if err != nil {
		return writeError(c, err)
	}
	var req hoursRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	hours, err := normalizeHours(req.Hours)
	if err != nil {
		return writeError(c, err)
	}
	if err := h.Store.SetHours(c.Request().Context(), id, hours); err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": hours})
}

func normalizeHours(in []hoursEntry) ([]model.OpeningHours, error) {
	seen := make(map[int]bool, len(in))
	out := make([]model.OpeningHours, 0, len(in))
	for _, e := range in {
		if seen[e.DayOfWeek] {
			return nil, fmt.Errorf("%w: day %d listed twice", booking.ErrInvalidInput, e.DayOfWeek)
		}
		seen[e.DayOfWeek] = true
		if e.IsClosed {
			out = append(out, model.OpeningHours{DayOfWeek: e.DayOfWeek, IsClosed: true})
			continue
		}
		open, err := model.ParseSlot("2000-01-01", e.OpenTime)
		if err != nil {
			return nil, fmt.Errorf("%w: day %d needs open_time", booking.ErrInvalidInput, e.DayOfWeek)
		}
		closing, err := model.ParseSlot("2000-01-01", e.CloseTime)
		if err != nil {
			return nil, fmt.Errorf("%w: day %d needs close_time", booking.ErrInvalidInput, e.DayOfWeek)
		}
		if closing.Time <= open.Time {
			return nil, fmt.Errorf("%w: day %d closes before it opens", booking.ErrInvalidInput, e.DayOfWeek)
		}
		out = append(out, model.OpeningHours{DayOfWeek: e.DayOfWeek, OpenTime: open.Time, CloseTime: closing.Time})
	}
	return out, nil
}
