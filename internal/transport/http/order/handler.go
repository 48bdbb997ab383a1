package order

import (
	"net/http"
	"path"

	"github.com/labstack/echo/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/ordertrack/internal/config"
	"github.com/Additional-Code/ordertrack/internal/dto"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/pagination"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/request"
	"github.com/Additional-Code/ordertrack/internal/presentation/http/response"
	repo "github.com/Additional-Code/ordertrack/internal/repository/order"
	service "github.com/Additional-Code/ordertrack/internal/service/order"
	"github.com/Additional-Code/ordertrack/pkg/errorbank"
)

var httpTracer = otel.Tracer("github.com/Additional-Code/ordertrack/transport/http/order")

// Handler exposes order endpoints over HTTP.
type Handler struct {
	svc *service.Service
	api config.API
}

// NewHandler constructs an order Handler.
func NewHandler(svc *service.Service, cfg config.Config) *Handler {
	return &Handler{svc: svc, api: cfg.API}
}

// Register routes with provided Echo instance.
func Register(e *echo.Echo, h *Handler) {
	g := e.Group(path.Join(h.api.BasePath, "orders"))
	g.GET("/", h.list)
	g.POST("/", h.create)
	g.GET("/:id/", h.getByID)
	g.PUT("/:id/", h.replace)
	g.PATCH("/:id/", h.patch)
	g.DELETE("/:id/", h.delete)
}

func (h *Handler) list(c echo.Context) error {
	b := response.New(c)

	page, err := pagination.Parse(c, h.api)
	if err != nil {
		return b.WithError(err).Build()
	}
	customerID, err := request.OptionalInt64(c, "customer")
	if err != nil {
		return b.WithError(err).Build()
	}
	filter := repo.Filter{
		CustomerID: customerID,
		Search:     c.QueryParam("search"),
		Ordering:   request.Ordering(c),
		Page:       page.Window(),
	}
	if raw := request.OptionalString(c, "status"); raw != nil {
		status := entity.OrderStatus(*raw)
		filter.Status = &status
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.list")
	defer span.End()

	orders, count, err := h.svc.List(ctx, filter)
	if err != nil {
		return b.WithError(err).Build()
	}
	meta, err := pagination.Build(c, page, count)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithPage(meta, dto.FromOrders(orders)).Build()
}

func (h *Handler) getByID(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.getByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order, err := h.svc.Get(ctx, id)
	if err != nil {
		return b.WithError(err).Build()
	}

	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) create(c echo.Context) error {
	b := response.New(c)

	var payload dto.OrderRequest
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if err := requireFields(payload); err != nil {
		return b.WithError(err).Build()
	}

	order := &entity.Order{
		TrackingNumber: *payload.TrackingNumber,
		CustomerID:     *payload.CustomerID,
	}
	if payload.Status != nil {
		order.Status = entity.OrderStatus(*payload.Status)
		if !order.Status.Valid() {
			return b.WithError(errorbank.BadRequest("Invalid status value", errorbank.WithField("status"))).Build()
		}
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.create")
	span.SetAttributes(
		attribute.String("order.tracking_number", order.TrackingNumber),
	)
	defer span.End()

	if err := h.svc.Create(ctx, order); err != nil {
		return b.WithError(err).Build()
	}

	return b.WithStatus(http.StatusCreated).WithData(dto.FromOrder(order)).Build()
}

func bind(c echo.Context, payload *dto.OrderRequest) error {
	if err := c.Bind(payload); err != nil {
		return errorbank.BadRequest("invalid payload", errorbank.WithCause(err))
	}
	if field, ok := payload.NullField(); ok {
		return errorbank.BadRequest("This field may not be null.", errorbank.WithField(field))
	}
	return nil
}

func (h *Handler) replace(c echo.Context) error {
	return h.update(c, false)
}

func (h *Handler) patch(c echo.Context) error {
	return h.update(c, true)
}

func (h *Handler) update(c echo.Context, partial bool) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	var payload dto.OrderRequest
	if err := bind(c, &payload); err != nil {
		return b.WithError(err).Build()
	}
	if !partial {
		if err := requireFields(payload); err != nil {
			return b.WithError(err).Build()
		}
	}

	changes := service.Changes{
		TrackingNumber: payload.TrackingNumber,
		CustomerID:     payload.CustomerID,
	}
	if payload.Status != nil {
		status := entity.OrderStatus(*payload.Status)
		changes.Status = &status
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.update", trace.WithAttributes(
		attribute.Int64("order.id", id),
		attribute.Bool("partial", partial),
	))
	defer span.End()

	order, err := h.svc.Update(ctx, id, changes)
	if err != nil {
		return b.WithError(err).Build()
	}
	return b.WithData(dto.FromOrder(order)).Build()
}

func (h *Handler) delete(c echo.Context) error {
	b := response.New(c)

	id, err := request.ID(c, "id")
	if err != nil {
		return b.WithError(err).Build()
	}

	ctx, span := httpTracer.Start(c.Request().Context(), "orders.delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	if err := h.svc.Delete(ctx, id); err != nil {
		return b.WithError(err).Build()
	}
	return b.WithStatus(http.StatusNoContent).Build()
}

func requireFields(payload dto.OrderRequest) error {
	switch {
	case payload.TrackingNumber == nil:
		return errorbank.BadRequest("tracking_number is required", errorbank.WithField("tracking_number"))
	case payload.CustomerID == nil:
		return errorbank.BadRequest("customer_id is required", errorbank.WithField("customer_id"))
	}
	return nil
}
