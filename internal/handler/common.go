// Package handler exposes the HTTP handlers of the reservation API.
// Handlers parse and validate requests, call into the booking core or
// the restaurant store, and translate errors to status codes in one
// place (writeError).
package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
)

// RestaurantStore is the restaurant catalog as the HTTP layer sees it.
// Both repository.RestaurantRepo and repository.MemoryStore satisfy it.
type RestaurantStore interface {
	booking.Catalog
	ListRestaurants(ctx context.Context, f model.RestaurantFilter) ([]model.Restaurant, error)
	CreateRestaurant(ctx context.Context, r *model.Restaurant) error
	UpdateRestaurant(ctx context.Context, id uint64, p model.RestaurantPatch) (*model.Restaurant, error)
	DeactivateRestaurant(ctx context.Context, id uint64) error
	AddTable(ctx context.Context, t *model.Table) error
	UpdateTable(ctx context.Context, restaurantID, tableID uint64, p model.TablePatch) (*model.Table, error)
	GetHours(ctx context.Context, restaurantID uint64) ([]model.OpeningHours, error)
	SetHours(ctx context.Context, restaurantID uint64, hours []model.OpeningHours) error
}

// RequestValidator plugs go-playground/validator into Echo so handlers
// can call c.Validate on bound request bodies.
type RequestValidator struct {
	v *validator.Validate
}

// NewRequestValidator returns a validator with the custom tags used by
// request types registered.
func NewRequestValidator() *RequestValidator {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	_ = v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := model.ParseSlot("2000-01-01", fl.Field().String())
		return err == nil
	})
	return &RequestValidator{v: v}
}

// Validate implements echo.Validator.
func (rv *RequestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %s", booking.ErrInvalidInput, fe.Field(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", booking.ErrInvalidInput, err)
	}
	return nil
}

// bindValid binds the request body into dst and validates it.
func bindValid(c echo.Context, dst interface{}) error {
	if err := c.Bind(dst); err != nil {
		return fmt.Errorf("%w: invalid request body", booking.ErrInvalidInput)
	}
	return c.Validate(dst)
}

// pathID parses a positive integer path parameter.
func pathID(c echo.Context, name string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid %s", booking.ErrInvalidInput, name)
	}
	return id, nil
}

// queryInt parses an optional integer query parameter. def is returned
// when the parameter is absent.
func queryInt(c echo.Context, name string, def int) (int, error) {
	s := c.QueryParam(name)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer", booking.ErrInvalidInput, name)
	}
	return n, nil
}

// writeError maps domain and storage errors to HTTP responses with a
// JSON body {"error": "..."}. Unknown errors are logged and reported as
// 500 without details.
func writeError(c echo.Context, err error) error {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, middleware.ErrNoActor):
		status = http.StatusUnauthorized
	case errors.Is(err, booking.ErrInvalidInput), errors.Is(err, booking.ErrInvalidTemporal),
		errors.Is(err, repository.ErrNoChange):
		status = http.StatusBadRequest
	case errors.Is(err, booking.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, booking.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, booking.ErrInvalidState), errors.Is(err, booking.ErrNoAvailability),
		errors.Is(err, repository.ErrConflict):
		status = http.StatusConflict
	}
	if status == http.StatusInternalServerError {
		c.Logger().Errorf("%s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(status, echo.Map{"error": "internal server error"})
	}
	return c.JSON(status, echo.Map{"error": err.Error()})
}
