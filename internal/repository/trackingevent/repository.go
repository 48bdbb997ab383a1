package trackingevent

import (
	"context"
	"database/sql"
	"errors"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/ordertrack/internal/database"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/ordertrack/repository/trackingevent")

// ErrNotFound is returned when a tracking event is missing.
var ErrNotFound = errors.New("tracking event not found")

// Filter narrows event listings.
type Filter struct {
	OrderID *int64
	Page    repository.Page
}

// Repository is a read-only view over order tracking events. Events are written by the
// order repository as part of a status transition.
type Repository struct {
	reader *bun.DB
}

// NewRepository wires a repository backed by the read connection.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{reader: conns.Reader}
}

// GetByID fetches a single event.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.OrderTrackingEvent, error) {
	ctx, span := repoTracer.Start(ctx, "TrackingEventRepository.GetByID", trace.WithAttributes(attribute.Int64("event.id", id)))
	defer span.End()

	event := new(entity.OrderTrackingEvent)
	err := r.reader.NewSelect().Model(event).Where("e.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return event, nil
}

// List returns events newest first.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.OrderTrackingEvent, int, error) {
	ctx, span := repoTracer.Start(ctx, "TrackingEventRepository.List")
	defer span.End()

	var events []entity.OrderTrackingEvent
	q := r.reader.NewSelect().Model(&events)
	if f.OrderID != nil {
		q = q.Where("e.order_id = ?", *f.OrderID)
	}
	q = q.Order("e.timestamp DESC", "e.id DESC")
	q = f.Page.Apply(q)

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return events, count, nil
}
