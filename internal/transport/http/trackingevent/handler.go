package trackingevent

import (
	"path"

	"github.com/labstack/echo/v4"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/dto"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/pagination"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/request"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/response"
	eventrepo "github.com/Additional-Code/ordertrack/internal/repository/trackingevent"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
)

// Handler exposes the read-only tracking event log.
type Handler struct {
	svc *ordersvc.Service
	api config.API
}

// NewHandler constructs a tracking event Handler.
func NewHandler(svc *ordersvc.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, api: cfg.API}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group(path.Join(h.api.BasePath, "tracking-events"))
	g.GET("/", h.list)
	g.GET("/:id/", h.getByID)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page, err := pagination.Parse(c, h.api)
	if err != nil {
		return b.WithError(err).Build()
	}
	orderID, err := request.OptionalInt64(c, "order")
	if err != nil {
		return b.WithError(err).Build()
	}

	events, count, err := h.svc.ListEvents(c.Request().Context(), eventrepo.Filter{
		OrderID: orderID,
		Page:    page.Window(),
	})
	if err != nil {
		return b.WithError(err).Build()
	}
	meta, err := pagination.Build(c, page, count)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithPage(meta, dto.FromTrackingEvents(events)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}
	event, err := h.svc.GetEvent(c.Request().Context(), id)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromTrackingEvent(event)).Build()
}
