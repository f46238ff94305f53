package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/middleware"
	"github.com/iliyamo/table-reservation/internal/model"
)

// ReservationHandler exposes the reservation lifecycle to customers and
// staff. Authorization beyond "is authenticated" is decided by the
// booking manager, so handlers only pass the caller along.
type ReservationHandler struct {
	Manager *booking.Manager
}

// NewReservationHandler constructs a ReservationHandler. manager must be
// non-nil.
func NewReservationHandler(manager *booking.Manager) *ReservationHandler {
	if manager == nil {
		panic("nil manager passed to NewReservationHandler")
	}
	return &ReservationHandler{Manager: manager}
}

type createReservationRequest struct {
	RestaurantID    uint64  `json:"restaurant_id" validate:"required"`
	Date            string  `json:"reservation_date" validate:"required,datetime=2006-01-02"`
	Time            string  `json:"reservation_time" validate:"required,clock"`
	PartySize       int     `json:"party_size" validate:"required,min=1,max=50"`
	SpecialRequests *string `json:"special_requests" validate:"omitempty,max=1000"`
}

type updateReservationRequest struct {
	Date            *string `json:"reservation_date" validate:"omitempty,datetime=2006-01-02"`
	Time            *string `json:"reservation_time" validate:"omitempty,clock"`
	PartySize       *int    `json:"party_size" validate:"omitempty,min=1,max=50"`
	SpecialRequests *string `json:"special_requests" validate:"omitempty,max=1000"`
}

// Create handles POST /v1/reservations. The caller becomes the owner and
// the smallest free table that fits the party is assigned.
func (h *ReservationHandler) Create(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	var req createReservationRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.CreateReservation(c.Request().Context(), actor, booking.CreateRequest{
		RestaurantID:    req.RestaurantID,
		Date:            req.Date,
		Time:            req.Time,
		PartySize:       req.PartySize,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// ListMine handles GET /v1/my-reservations. Query parameters: status and
// upcoming=true.
func (h *ReservationHandler) ListMine(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	f, err := reservationFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.Manager.ListMyReservations(c.Request().Context(), actor, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Get handles GET /v1/reservations/:id.
func (h *ReservationHandler) Get(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.GetReservation(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PUT /v1/reservations/:id. Only the owner may change a
// reservation; moving it re-runs the availability check.
func (h *ReservationHandler) Update(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	var req updateReservationRequest
	if err := bindValid(c, &req); err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.UpdateReservation(c.Request().Context(), actor, id, model.ReservationPatch(req))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Cancel handles PUT /v1/reservations/:id/cancel. The owner or an admin
// may cancel; the reservation is kept with status cancelled.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.CancelReservation(c.Request().Context(), actor, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Confirm handles PUT /v1/reservations/:id/confirm.
func (h *ReservationHandler) Confirm(c echo.Context) error {
	return h.transition(c, model.StatusConfirmed)
}

// Complete handles PUT /v1/reservations/:id/complete.
func (h *ReservationHandler) Complete(c echo.Context) error {
	return h.transition(c, model.StatusCompleted)
}

// NoShow handles PUT /v1/reservations/:id/no-show.
func (h *ReservationHandler) NoShow(c echo.Context) error {
	return h.transition(c, model.StatusNoShow)
}

func (h *ReservationHandler) transition(c echo.Context, target model.Status) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	res, err := h.Manager.SetReservationStatus(c.Request().Context(), actor, id, target)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Upcoming handles GET /v1/reservations/upcoming?limit=n.
func (h *ReservationHandler) Upcoming(c echo.Context) error {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return writeError(c, err)
	}
	limit, err := queryInt(c, "limit", 0)
	if err != nil {
		return writeError(c, err)
	}
	items, err := h.Manager.ListUpcomingReservations(c.Request().Context(), actor, limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// ListByRestaurant handles GET /v1/restaurants/:id/reservations.
// Query parameters: status, date and upcoming=true.
func (h *ReservationHandler) ListByRestaurant(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	f, err := reservationFilter(c)
	if err != nil {
		return writeError(c, err)
	}
	f.Date = c.QueryParam("date")
	items, err := h.Manager.ListRestaurantReservations(c.Request().Context(), actor, id, f)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items, "count": len(items)})
}

// Statistics handles GET /v1/restaurants/:id/statistics with the
// required query parameters from and to (YYYY-MM-DD, inclusive).
func (h *ReservationHandler) Statistics(c echo.Context) error {
	actor, id, err := actorAndID(c)
	if err != nil {
		return writeError(c, err)
	}
	from, to := c.QueryParam("from"), c.QueryParam("to")
	if from == "" || to == "" {
		return writeError(c, fmt.Errorf("%w: from and to are required", booking.ErrInvalidInput))
	}
	stats, err := h.Manager.Statistics(c.Request().Context(), actor, id, from, to)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, stats)
}

func actorAndID(c echo.Context) (model.Actor, uint64, error) {
	actor, err := middleware.ActorFrom(c)
	if err != nil {
		return model.Actor{}, 0, err
	}
	id, err := pathID(c, "id")
	if err != nil {
		return model.Actor{}, 0, err
	}
	return actor, id, nil
}

func reservationFilter(c echo.Context) (model.ReservationFilter, error) {
	f := model.ReservationFilter{Status: model.Status(c.QueryParam("status"))}
	if s := c.QueryParam("upcoming"); s != "" {
		up, err := strconv.ParseBool(s)
		if err != nil {
			return f, fmt.Errorf("%w: upcoming must be a boolean", booking.ErrInvalidInput)
		}
		f.Upcoming = up
	}
	return f, nil
}
