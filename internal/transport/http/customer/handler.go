package customer

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/dto"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/pagination"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/request"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/response"
	repo "github.com/Additional-Code/ordertrack/internal/repository/customer"
	service "github.com/Additional-Code/ordertrack/internal/service/customer"
	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

// Handler exposes customer endpoints over HTTP.
type Handler struct {
	svc *service.Service
	api config.API
}

// NewHandler constructs a customer Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, api: cfg.API}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group(path.Join(h.api.BasePath, "customers"))
	g.GET("/", h.list)
	g.POST("/", h.create)
	g.GET("/:id/", h.getByID)
	g.PUT("/:id/", func(c echo.Context) error { return h.update(c, false) })
	g.PATCH("/:id/", func(c echo.Context) error { return h.update(c, true) })
	g.DELETE("/:id/", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page, err := pagination.Parse(c, h.api)
	if err != nil {
		return b.WithError(err).Build()
	}
	id, err := request.OptionalInt64(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	customers, count, err := h.svc.List(c.Request().Context(), repo.Filter{
		ID:          id,
		Name:        request.OptionalString(c, "name"),
		PhoneNumber: request.OptionalString(c, "phone_number"),
		Search:      c.QueryParam("search"),
		Ordering:    request.Ordering(c),
		Page:        page.Window(),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	meta, err := pagination.Build(c, page, count)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithPage(meta, dto.FromCustomers(customers)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	customer, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCustomer(customer)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.CustomerRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}

	customer := &entity.Customer{}
	if payload.Name != nil {
		customer.Name = *payload.Name
	}
	if payload.PhoneNumber != nil {
		customer.PhoneNumber = *payload.PhoneNumber
	}
	if err := h.svc.Create(c.Request().Context(), customer); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusCreated).WithData(dto.FromCustomer(customer)).Build()
}

func (h *Handler) update(c echo.Context, partial bool) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.CustomerRequest
	if err := c.Bind(&payload); err != nil {
		return b.WithError(errorbank.BadRequest("invalid payload", errorbank.WithCause(err))).Build()
	}
	if !partial && (payload.Name == nil || payload.PhoneNumber == nil) {
		return b.WithError(errorbank.BadRequest("name and phone_number are required")).Build()
	}

	customer, err := h.svc.Update(c.Request().Context(), id, service.Changes{
		Name:        payload.Name,
		PhoneNumber: payload.PhoneNumber,
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromCustomer(customer)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}
