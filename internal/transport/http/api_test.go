package http_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap/zaptest"

	"github.com/Additional-Code/ordertrack/internal/cache"
	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/database/dbtest"
	customerrepo "github.com/Additional-Code/ordertrack/internal/repository/customer"
	orderrepo "github.com/Additional-Code/ordertrack/internal/repository/order"
	eventrepo "github.com/Additional-Code/ordertrack/internal/repository/trackingevent"
	httpserver "github.com/Additional-Code/ordertrack/internal/server/http"
	customersvc "github.com/Additional-Code/ordertrack/internal/service/customer"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
	customertransport "github.com/Additional-Code/ordertrack/internal/transport/http/customer"
	ordertransport "github.com/Additional-Code/ordertrack/internal/transport/http/order"
	eventtransport "github.com/Additional-Code/ordertrack/internal/transport/http/trackingevent"
)

type page struct {
	Count    int               `json:"count"`
	Next     *string           `json:"next"`
	Previous *string           `json:"previous"`
	Results  []json.RawMessage `json:"results"`
}

type apiError struct {
	Error   string         `json:"error"`
	Kind    string         `json:"kind"`
	Details map[string]any `json:"details"`
}

type orderBody struct {
	ID             int64     `json:"id"`
	TrackingNumber string    `json:"tracking_number"`
	Status         string    `json:"status"`
	UpdatedAt      time.Time `json:"updated_at"`
	Customer       *struct {
		ID          int64  `json:"id"`
		Name        string `json:"name"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer"`
}

type eventBody struct {
	ID      int64   `json:"id"`
	Order   int64   `json:"order"`
	Status  string  `json:"status"`
	Comment *string `json:"comment"`
}

type APISuite struct {
	suite.Suite

	e *echo.Echo
}

func TestAPISuite(t *testing.T) {
	suite.Run(t, new(APISuite))
}

func (s *APISuite) SetupTest() {
	t := s.T()
	conns := dbtest.Open(t)
	logger := zaptest.NewLogger(t)
	cfg := config.Config{
		API:           config.API{BasePath: "/app", PageSize: 10, MaxPageSize: 50},
		Observability: config.Observability{ServiceName: "ordertrack"},
	}

	orders := ordersvc.NewService(ordersvc.Params{
		Repository: orderrepo.NewRepository(conns),
		Customers:  customerrepo.NewRepository(conns),
		Events:     eventrepo.NewRepository(conns),
		Cache:      cache.Noop(),
		Config:     cfg,
		Logger:     logger,
	})
	customers := customersvc.NewService(customersvc.Params{
		Repository: customerrepo.NewRepository(conns),
		Orders:     orders,
		Logger:     logger,
	})

	s.e = httpserver.NewEcho(cfg, nil, logger)
	customertransport.Register(s.e, customertransport.NewHandler(customers, cfg))
	ordertransport.Register(s.e, ordertransport.NewHandler(orders, cfg))
	eventtransport.Register(s.e, eventtransport.NewHandler(orders, cfg))
}

func (s *APISuite) do(method, target string, body any) *httptest.ResponseRecorder {
	var req *http.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, target, nil)
	case url.Values:
		req = httptest.NewRequest(method, target, strings.NewReader(b.Encode()))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationForm)
	default:
		raw, err := json.Marshal(b)
		s.Require().NoError(err)
		req = httptest.NewRequest(method, target, strings.NewReader(string(raw)))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](s *APISuite, rec *httptest.ResponseRecorder) T {
	var out T
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (s *APISuite) createCustomer(name string) int64 {
	rec := s.do(http.MethodPost, "/app/customers/", map[string]string{"name": name, "phone_number": "+15550100"})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return decode[struct {
		ID int64 `json:"id"`
	}](s, rec).ID
}

func (s *APISuite) createOrder(number string, customerID int64) orderBody {
	rec := s.do(http.MethodPost, "/app/orders/", map[string]any{"tracking_number": number, "customer_id": customerID})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	return decode[orderBody](s, rec)
}

func (s *APISuite) TestOrderLifecycle() {
	customerID := s.createCustomer("Jane Doe")

	created := s.createOrder("TRACK123", customerID)
	s.Equal("CREATED", created.Status)
	s.Require().NotNil(created.Customer)
	s.Equal("Jane Doe", created.Customer.Name)

	rec := s.do(http.MethodPatch, fmt.Sprintf("/app/orders/%d/", created.ID), map[string]string{"status": "PICKED"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	s.Equal("PICKED", decode[orderBody](s, rec).Status)

	rec = s.do(http.MethodGet, fmt.Sprintf("/app/tracking-events/?order=%d", created.ID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	events := decode[page](s, rec)
	s.Require().Equal(1, events.Count)
	var event eventBody
	s.Require().NoError(json.Unmarshal(events.Results[0], &event))
	s.Equal("PICKED", event.Status)
	s.Equal(created.ID, event.Order)
	s.Require().NotNil(event.Comment)
	s.Equal("Status changed from CREATED to PICKED", *event.Comment)

	rec = s.do(http.MethodGet, fmt.Sprintf("/app/tracking-events/%d/", event.ID), nil)
	s.Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPatch, fmt.Sprintf("/app/orders/%d", created.ID), map[string]string{"status": "DELIVERED"})
	s.Require().Equal(http.StatusOK, rec.Code, "trailing slash is optional: %s", rec.Body.String())
	s.Equal("DELIVERED", decode[orderBody](s, rec).Status)
}

func (s *APISuite) TestInvalidTransitionIsRejected() {
	customerID := s.createCustomer("Jane Doe")
	created := s.createOrder("TRACK123", customerID)

	rec := s.do(http.MethodPatch, fmt.Sprintf("/app/orders/%d/", created.ID), map[string]string{"status": "DELIVERED"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	body := decode[apiError](s, rec)
	s.Equal("Invalid status transition from CREATED to DELIVERED", body.Error)
	s.Equal("bad_request", body.Kind)
	s.Equal("CREATED", body.Details["from"])

	rec = s.do(http.MethodGet, fmt.Sprintf("/app/orders/%d/", created.ID), nil)
	s.Equal("CREATED", decode[orderBody](s, rec).Status)

	rec = s.do(http.MethodGet, fmt.Sprintf("/app/tracking-events/?order=%d", created.ID), nil)
	s.Equal(0, decode[page](s, rec).Count)
}

func (s *APISuite) TestNullFieldsAreRejected() {
	customerID := s.createCustomer("Jane Doe")
	created := s.createOrder("TRACK123", customerID)
	target := fmt.Sprintf("/app/orders/%d/", created.ID)

	for _, field := range []string{"status", "tracking_number", "customer_id"} {
		rec := s.do(http.MethodPatch, target, map[string]any{field: nil})
		s.Require().Equal(http.StatusBadRequest, rec.Code, field)
		body := decode[apiError](s, rec)
		s.Equal("This field may not be null.", body.Error)
		s.Equal(field, body.Details["field"])
	}

	rec := s.do(http.MethodPost, "/app/orders/", map[string]any{"tracking_number": "TRACK124", "customer_id": customerID, "status": nil})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("status", decode[apiError](s, rec).Details["field"])

	rec = s.do(http.MethodGet, target, nil)
	current := decode[orderBody](s, rec)
	s.Equal("CREATED", current.Status)
	s.True(created.UpdatedAt.Equal(current.UpdatedAt), "rejected requests leave the order untouched")
}

func (s *APISuite) TestFullUpdateRequiresFields() {
	customerID := s.createCustomer("Jane Doe")
	created := s.createOrder("TRACK123", customerID)
	target := fmt.Sprintf("/app/orders/%d/", created.ID)

	rec := s.do(http.MethodPut, target, map[string]string{"status": "PICKED"})
	s.Require().Equal(http.StatusBadRequest, rec.Code)
	s.Equal("tracking_number", decode[apiError](s, rec).Details["field"])

	rec = s.do(http.MethodPut, target, map[string]any{"tracking_number": "TRACK999", "customer_id": customerID, "status": "PICKED"})
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	updated := decode[orderBody](s, rec)
	s.Equal("TRACK999", updated.TrackingNumber)
	s.Equal("PICKED", updated.Status)
}

func (s *APISuite) TestCreateOrderErrors() {
	customerID := s.createCustomer("Jane Doe")
	s.createOrder("TRACK123", customerID)

	cases := map[string]struct {
		body    map[string]any
		message string
	}{
		"duplicate":        {map[string]any{"tracking_number": "TRACK123", "customer_id": customerID}, "order with this tracking number already exists."},
		"unknown customer": {map[string]any{"tracking_number": "TRACK2", "customer_id": 999}, `Invalid pk "999" - object does not exist.`},
		"missing customer": {map[string]any{"tracking_number": "TRACK2"}, "customer_id is required"},
		"bad status":       {map[string]any{"tracking_number": "TRACK2", "customer_id": customerID, "status": "LOST"}, "Invalid status value"},
	}
	for name, tc := range cases {
		s.Run(name, func() {
			rec := s.do(http.MethodPost, "/app/orders/", tc.body)
			s.Equal(http.StatusBadRequest, rec.Code)
			s.Equal(tc.message, decode[apiError](s, rec).Error)
		})
	}
}

func (s *APISuite) TestCreateOrderFromForm() {
	customerID := s.createCustomer("Jane Doe")
	rec := s.do(http.MethodPost, "/app/orders/", url.Values{
		"tracking_number": {"FORM1"},
		"customer_id":     {fmt.Sprint(customerID)},
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())
	s.Equal("FORM1", decode[orderBody](s, rec).TrackingNumber)
}

func (s *APISuite) TestOrderListFiltersAndSearch() {
	jane := s.createCustomer("Jane Doe")
	john := s.createCustomer("John Smith")
	first := s.createOrder("TRACK-A", jane)
	s.createOrder("TRACK-B", john)
	s.Require().Equal(http.StatusOK, s.do(http.MethodPatch, fmt.Sprintf("/app/orders/%d/", first.ID), map[string]string{"status": "PICKED"}).Code)

	count := func(target string) int {
		rec := s.do(http.MethodGet, target, nil)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		return decode[page](s, rec).Count
	}
	s.Equal(2, count("/app/orders/"))
	s.Equal(1, count("/app/orders/?status=PICKED"))
	s.Equal(1, count(fmt.Sprintf("/app/orders/?customer=%d", john)))
	s.Equal(1, count("/app/orders/?search=smith"))
	s.Equal(2, count("/app/orders/?search=track"))
	s.Equal(0, count("/app/orders/?search=track+nobody"))

	s.createOrder("A_1", jane)
	s.createOrder("AB1", jane)
	s.createOrder("C%9", jane)
	s.Equal(1, count("/app/orders/?search=A_1"), "underscore is not a wildcard")
	s.Equal(1, count("/app/orders/?search=_"))
	s.Equal(1, count("/app/orders/?search=%25"), "percent is not a wildcard")

	rec := s.do(http.MethodGet, "/app/orders/?status=LOST", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
	rec = s.do(http.MethodGet, "/app/orders/?customer=abc", nil)
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *APISuite) TestPagination() {
	for i := 0; i < 12; i++ {
		s.createCustomer(fmt.Sprintf("Customer %02d", i))
	}

	rec := s.do(http.MethodGet, "/app/customers/?page_size=5&page=2", nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	body := decode[page](s, rec)
	s.Equal(12, body.Count)
	s.Len(body.Results, 5)
	s.Require().NotNil(body.Next)
	s.Contains(*body.Next, "page=3")
	s.Contains(*body.Next, "page_size=5")
	s.Require().NotNil(body.Previous)
	s.NotContains(*body.Previous, "page=")

	rec = s.do(http.MethodGet, "/app/customers/", nil)
	body = decode[page](s, rec)
	s.Len(body.Results, 10)
	s.Nil(body.Previous)

	rec = s.do(http.MethodGet, "/app/customers/?page_size=500", nil)
	s.Len(decode[page](s, rec).Results, 12)

	for _, target := range []string{"/app/customers/?page=4&page_size=5", "/app/customers/?page=abc", "/app/customers/?page=0"} {
		rec = s.do(http.MethodGet, target, nil)
		s.Equal(http.StatusNotFound, rec.Code, target)
		s.Equal("Invalid page.", decode[apiError](s, rec).Error)
	}
}

func (s *APISuite) TestDelete() {
	customerID := s.createCustomer("Jane Doe")
	created := s.createOrder("TRACK123", customerID)
	target := fmt.Sprintf("/app/orders/%d/", created.ID)

	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, target, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, target, nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodDelete, target, nil).Code)

	other := s.createOrder("TRACK456", customerID)
	s.Equal(http.StatusNoContent, s.do(http.MethodDelete, fmt.Sprintf("/app/customers/%d/", customerID), nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, fmt.Sprintf("/app/orders/%d/", other.ID), nil).Code)
}

func (s *APISuite) TestCustomerUpdate() {
	customerID := s.createCustomer("Jane Doe")
	target := fmt.Sprintf("/app/customers/%d/", customerID)

	rec := s.do(http.MethodPut, target, map[string]string{"name": "Jane Roe"})
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(http.MethodPatch, target, map[string]string{"name": "Jane Roe"})
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Contains(rec.Body.String(), `"name":"Jane Roe"`)
	s.Contains(rec.Body.String(), `"phone_number":"+15550100"`)
}

func (s *APISuite) TestUnknownIDs() {
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/app/orders/abc/", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/app/customers/77/", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodGet, "/app/tracking-events/77/", nil).Code)
	s.Equal(http.StatusNotFound, s.do(http.MethodPatch, "/app/orders/999/", map[string]any{"customer_id": 12345}).Code)
}

func (s *APISuite) TestHealth() {
	rec := s.do(http.MethodGet, "/health", nil)
	s.Equal(http.StatusOK, rec.Code)
	s.JSONEq(`{"status":"ok"}`, rec.Body.String())
	s.Len(rec.Header().Get(echo.HeaderXRequestID), 36, "request ids are uuids")
}
