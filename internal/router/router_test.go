package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-reservation/internal/booking"
	"github.com/iliyamo/table-reservation/internal/handler"
	"github.com/iliyamo/table-reservation/internal/model"
	"github.com/iliyamo/table-reservation/internal/repository"
	"github.com/iliyamo/table-reservation/internal/utils"
)

const secret = "router-test-secret"

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

type testAPI struct {
	t      *testing.T
	e      *echo.Echo
	store  *repository.MemoryStore
	rid    uint64
	tables map[string]uint64
}

func newAPI(t *testing.T) *testAPI {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	r := &model.Restaurant{Name: "Trattoria", Cuisine: "Italian", StreetAddress: "1 Main St",
		City: "Boston", State: "MA", ZipCode: "02110", PriceRange: "$$", IsActive: true}
	require.NoError(t, store.CreateRestaurant(ctx, r))
	tables := map[string]uint64{}
	for i, capacity := range []int{2, 4} {
		tb := &model.Table{RestaurantID: r.ID, TableNumber: fmt.Sprintf("T%d", i+1), Capacity: capacity, IsAvailable: true}
		require.NoError(t, store.AddTable(ctx, tb))
		tables[tb.TableNumber] = tb.ID
	}

	mgr := booking.NewManager(store, store, booking.Options{Clock: func() time.Time { return fixedNow }})
	e := echo.New()
	e.Validator = handler.NewRequestValidator()
	RegisterRoutes(e, Deps{
		Restaurants:  handler.NewRestaurantHandler(store, mgr.Resolver()),
		Reservations: handler.NewReservationHandler(mgr),
		Health:       handler.Health(nil),
		JWTSecret:    secret,
	})
	return &testAPI{t: t, e: e, store: store, rid: r.ID, tables: tables}
}

func (a *testAPI) token(userID uint64, role string) string {
	a.t.Helper()
	tok, err := utils.NewAccessToken(secret, userID, role, 15)
	require.NoError(a.t, err)
	return tok.Token
}

func (a *testAPI) call(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (a *testAPI) book(token string, party int) *httptest.ResponseRecorder {
	return a.call(http.MethodPost, "/v1/reservations", token, echo.Map{
		"restaurant_id":    a.rid,
		"reservation_date": "2024-06-02",
		"reservation_time": "19:00",
		"party_size":       party,
	})
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.call(http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestHealthReportsFailingDependency(t *testing.T) {
	e := echo.New()
	e.GET("/healthz", handler.Health(map[string]handler.Pinger{
		"db": handler.PingFunc(func(context.Context) error { return fmt.Errorf("connection refused") }),
	}))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "connection refused")
}

func TestBrowse(t *testing.T) {
	a := newAPI(t)

	rec := a.call(http.MethodGet, "/v1/restaurants?city=boston", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[struct {
		Items []model.Restaurant `json:"items"`
		Count int                `json:"count"`
	}](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Trattoria", list.Items[0].Name)

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/restaurants?limit=0", "", nil).Code)

	rec = a.call(http.MethodGet, fmt.Sprintf("/v1/restaurants/%d", a.rid), "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[handler.RestaurantDetail](t, rec)
	assert.Len(t, detail.Tables, 2)

	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/restaurants/999", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/restaurants/abc", "", nil).Code)
}

func TestAvailabilityEndpoint(t *testing.T) {
	a := newAPI(t)
	base := fmt.Sprintf("/v1/restaurants/%d/availability", a.rid)

	rec := a.call(http.MethodGet, base+"?date=2024-06-02&time=19:00&party_size=3", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	av := decode[booking.Availability](t, rec)
	assert.True(t, av.Available)
	require.Len(t, av.Tables, 1)
	assert.Equal(t, "T2", av.Tables[0].TableNumber)

	rec = a.call(http.MethodGet, base+"?date=2024-06-02&time=19:00&partySize=1", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[booking.Availability](t, rec).Tables, 2)

	rec = a.call(http.MethodGet, base+"?date=2024-06-02&time=19:00&party_size=9", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"available":false,"tables":[]}`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, base+"?date=2024-06-02", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, base+"?date=June&time=19:00&party_size=2", "", nil).Code)
}

func TestReservationFlow(t *testing.T) {
	a := newAPI(t)
	alice, bob, carol := a.token(1, model.RoleCustomer), a.token(2, model.RoleCustomer), a.token(3, model.RoleCustomer)

	rec := a.book(alice, 2)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	first := decode[model.Reservation](t, rec)
	require.NotNil(t, first.TableID)
	assert.Equal(t, a.tables["T1"], *first.TableID)
	assert.Equal(t, model.StatusConfirmed, first.Status)
	assert.Equal(t, uint64(1), first.UserID)

	rec = a.book(bob, 2)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, a.tables["T2"], *decode[model.Reservation](t, rec).TableID)

	rec = a.book(carol, 2)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "no tables available")

	rec = a.call(http.MethodPut, fmt.Sprintf("/v1/reservations/%d/cancel", first.ID), alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusCancelled, decode[model.Reservation](t, rec).Status)

	rec = a.book(carol, 2)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, a.tables["T1"], *decode[model.Reservation](t, rec).TableID)

	rec = a.call(http.MethodGet, "/v1/my-reservations", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":1`)

	rec = a.call(http.MethodGet, "/v1/my-reservations?status=confirmed", alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":0`)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/my-reservations?status=seated", alice, nil).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodGet, "/v1/my-reservations?upcoming=maybe", alice, nil).Code)
}

func TestReservationUpdate(t *testing.T) {
	a := newAPI(t)
	alice, bob := a.token(1, model.RoleCustomer), a.token(2, model.RoleCustomer)

	res := decode[model.Reservation](t, a.book(alice, 2))
	path := fmt.Sprintf("/v1/reservations/%d", res.ID)

	rec := a.call(http.MethodPut, path, alice, echo.Map{"party_size": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, a.tables["T2"], *decode[model.Reservation](t, rec).TableID)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, path, bob, echo.Map{"party_size": 2}).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, path, alice, echo.Map{}).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, path, alice, echo.Map{"reservation_time": "7pm"}).Code)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, path, alice, echo.Map{"reservation_date": "2024-05-01"}).Code)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, path, alice, echo.Map{"party_size": 6}).Code)

	rec = a.call(http.MethodGet, path, alice, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 4, decode[model.Reservation](t, rec).PartySize)
}

func TestReservationAuthorization(t *testing.T) {
	a := newAPI(t)
	alice, bob, admin := a.token(1, model.RoleCustomer), a.token(2, model.RoleCustomer), a.token(99, model.RoleAdmin)

	assert.Equal(t, http.StatusUnauthorized, a.book("", 2).Code)

	res := decode[model.Reservation](t, a.book(alice, 2))
	path := fmt.Sprintf("/v1/reservations/%d", res.ID)

	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, path, bob, nil).Code)
	assert.Equal(t, http.StatusOK, a.call(http.MethodGet, path, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, "/v1/reservations/12345", admin, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, path+"/confirm", alice, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPut, path+"/cancel", bob, nil).Code)

	rec := a.call(http.MethodPut, path+"/confirm", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusConfirmed, decode[model.Reservation](t, rec).Status)

	rec = a.call(http.MethodPut, path+"/complete", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.StatusCompleted, decode[model.Reservation](t, rec).Status)

	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, path+"/cancel", alice, nil).Code)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPut, path+"/no-show", admin, nil).Code)
}

func TestCreateValidation(t *testing.T) {
	a := newAPI(t)
	alice := a.token(1, model.RoleCustomer)

	cases := []struct {
		name string
		body echo.Map
		want int
	}{
		{"missing restaurant", echo.Map{"reservation_date": "2024-06-02", "reservation_time": "19:00", "party_size": 2}, http.StatusBadRequest},
		{"bad time", echo.Map{"restaurant_id": a.rid, "reservation_date": "2024-06-02", "reservation_time": "25:00", "party_size": 2}, http.StatusBadRequest},
		{"zero party", echo.Map{"restaurant_id": a.rid, "reservation_date": "2024-06-02", "reservation_time": "19:00", "party_size": 0}, http.StatusBadRequest},
		{"past slot", echo.Map{"restaurant_id": a.rid, "reservation_date": "2024-06-01", "reservation_time": "11:00", "party_size": 2}, http.StatusBadRequest},
		{"unknown restaurant", echo.Map{"restaurant_id": 777, "reservation_date": "2024-06-02", "reservation_time": "19:00", "party_size": 2}, http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.call(http.MethodPost, "/v1/reservations", alice, tc.body)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestStaffViews(t *testing.T) {
	a := newAPI(t)
	alice, admin := a.token(1, model.RoleCustomer), a.token(99, model.RoleAdmin)
	decode[model.Reservation](t, a.book(alice, 2))
	decode[model.Reservation](t, a.book(alice, 3))

	rec := a.call(http.MethodGet, "/v1/reservations/upcoming?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodGet, "/v1/reservations/upcoming", alice, nil).Code)

	rec = a.call(http.MethodGet, fmt.Sprintf("/v1/restaurants/%d/reservations?date=2024-06-02", a.rid), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"count":2`)

	rec = a.call(http.MethodGet, fmt.Sprintf("/v1/restaurants/%d/statistics?from=2024-06-01&to=2024-06-30", a.rid), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[model.ReservationStats](t, rec)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 2, stats.Confirmed)
	assert.InDelta(t, 2.5, stats.AvgPartySize, 0.001)

	assert.Equal(t, http.StatusBadRequest,
		a.call(http.MethodGet, fmt.Sprintf("/v1/restaurants/%d/statistics?from=2024-06-01", a.rid), admin, nil).Code)
}

func TestCatalogManagement(t *testing.T) {
	a := newAPI(t)
	alice, admin := a.token(1, model.RoleCustomer), a.token(99, model.RoleAdmin)

	body := echo.Map{"name": "Sushi Bar", "cuisine": "Japanese", "street_address": "2 Elm St",
		"city": "Boston", "state": "MA", "zip_code": "02111", "price_range": "$$$"}
	assert.Equal(t, http.StatusForbidden, a.call(http.MethodPost, "/v1/restaurants", alice, body).Code)

	rec := a.call(http.MethodPost, "/v1/restaurants", admin, body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[model.Restaurant](t, rec)
	assert.True(t, created.IsActive)
	assert.Equal(t, "USA", created.Country)
	base := fmt.Sprintf("/v1/restaurants/%d", created.ID)

	bad := echo.Map{"name": "X", "cuisine": "Y", "street_address": "Z", "city": "C", "state": "S", "zip_code": "1", "price_range": "cheap"}
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPost, "/v1/restaurants", admin, bad).Code)

	rec = a.call(http.MethodPut, base, admin, echo.Map{"price_range": "$$"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "$$", decode[model.Restaurant](t, rec).PriceRange)
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, base, admin, echo.Map{}).Code)

	rec = a.call(http.MethodPost, base+"/tables", admin, echo.Map{"table_number": "A1", "capacity": 4})
	require.Equal(t, http.StatusCreated, rec.Code)
	table := decode[model.Table](t, rec)
	assert.True(t, table.IsAvailable)
	assert.Equal(t, http.StatusConflict, a.call(http.MethodPost, base+"/tables", admin, echo.Map{"table_number": "A1", "capacity": 2}).Code)

	rec = a.call(http.MethodPut, fmt.Sprintf("%s/tables/%d", base, table.ID), admin, echo.Map{"is_available": false})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decode[model.Table](t, rec).IsAvailable)

	hours := echo.Map{"hours": []echo.Map{
		{"day_of_week": 0, "is_closed": true},
		{"day_of_week": 5, "open_time": "17:00", "close_time": "23:00"},
	}}
	assert.Equal(t, http.StatusOK, a.call(http.MethodPut, base+"/hours", admin, hours).Code)
	backwards := echo.Map{"hours": []echo.Map{{"day_of_week": 1, "open_time": "22:00", "close_time": "10:00"}}}
	assert.Equal(t, http.StatusBadRequest, a.call(http.MethodPut, base+"/hours", admin, backwards).Code)

	rec = a.call(http.MethodGet, base, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	detail := decode[handler.RestaurantDetail](t, rec)
	assert.Len(t, detail.Hours, 2)
	assert.Empty(t, detail.Tables)

	assert.Equal(t, http.StatusNoContent, a.call(http.MethodDelete, base, admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, base, "", nil).Code)
	assert.Equal(t, http.StatusNotFound, a.call(http.MethodGet, base+"/availability?date=2024-06-02&time=19:00&party_size=2", "", nil).Code)
}
