package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Additional-Code/ordertrack/internal/database"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/repository"
)

var repoTracer = otel.Tracer("github.com/Additional-Code/ordertrack/repository/order")

var (
	// ErrNotFound is returned when an order is missing.
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateTrackingNumber is returned when another order already owns the tracking number.
	ErrDuplicateTrackingNumber = errors.New("tracking number already exists")
)

var orderingColumns = map[string]string{
	"created_at": "o.created_at",
	"updated_at": "o.updated_at",
	"status":     "o.status",
}

// Filter narrows order listings.
type Filter struct {
	Status     *entity.OrderStatus
	CustomerID *int64
	Search     string
	Ordering   []string
	Page       repository.Page
}

// MutateFunc edits a locked order in place. A non-nil event is appended in the same
// transaction; returning an error rolls everything back.
type MutateFunc func(order *entity.Order) (*entity.OrderTrackingEvent, error)

// Repository encapsulates read/write access for orders.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{
		writer: conns.Writer,
		reader: conns.Reader,
	}
}

// Create persists a new order using the write connection.
func (r *Repository) Create(ctx context.Context, order *entity.Order) error {
	if order == nil {
		return errors.New("nil order")
	}
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Create", trace.WithAttributes(attribute.String("order.tracking_number", order.TrackingNumber)))
	defer span.End()

	_, err := r.writer.NewInsert().Model(order).Exec(ctx)
	if repository.IsUniqueViolation(err) {
		return ErrDuplicateTrackingNumber
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

// GetByID fetches an order and its customer, using the read replica when available.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.GetByID", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	order := new(entity.Order)
	err := r.reader.NewSelect().Model(order).Relation("Customer").Where("o.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetStatus(codes.Error, "not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return order, nil
}

// List returns one page of orders matching f together with the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Order, int, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.List")
	defer span.End()

	var orders []entity.Order
	q := r.reader.NewSelect().Model(&orders).Relation("Customer")
	if f.Status != nil {
		q = q.Where("o.status = ?", *f.Status)
	}
	if f.CustomerID != nil {
		q = q.Where("o.customer_id = ?", *f.CustomerID)
	}
	q = repository.ApplySearch(q, []string{"o.tracking_number", "customer.name"}, repository.SearchTerms(f.Search))
	q = repository.ApplyOrdering(q, f.Ordering, orderingColumns, []string{"o.created_at DESC"}, "o.id DESC")
	q = f.Page.Apply(q)

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return orders, count, nil
}

// TrackingNumberTaken reports whether an order other than excludeID uses number.
func (r *Repository) TrackingNumberTaken(ctx context.Context, number string, excludeID int64) (bool, error) {
	q := r.writer.NewSelect().Model((*entity.Order)(nil)).Where("o.tracking_number = ?", number)
	if excludeID > 0 {
		q = q.Where("o.id <> ?", excludeID)
	}
	return q.Exists(ctx)
}

// Mutate loads the order under a row lock, lets fn decide and edit it, then writes the order
// and the optional tracking event as one transaction.
func (r *Repository) Mutate(ctx context.Context, id int64, fn MutateFunc) (*entity.Order, error) {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Mutate", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	var updated *entity.Order
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		order := new(entity.Order)
		q := tx.NewSelect().Model(order).Where("o.id = ?", id)
		if repository.SupportsRowLocks(tx) {
			q = q.For("UPDATE")
		}
		if err := q.Scan(ctx); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lock order: %w", err)
		}

		event, err := fn(order)
		if err != nil {
			return err
		}

		if _, err := tx.NewUpdate().Model(order).WherePK().Exec(ctx); err != nil {
			if repository.IsUniqueViolation(err) {
				return ErrDuplicateTrackingNumber
			}
			return fmt.Errorf("update order: %w", err)
		}

		if event != nil {
			event.OrderID = order.ID
			if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
				return fmt.Errorf("insert tracking event: %w", err)
			}
		}

		customer := new(entity.Customer)
		if err := tx.NewSelect().Model(customer).Where("c.id = ?", order.CustomerID).Scan(ctx); err != nil {
			return fmt.Errorf("load customer: %w", err)
		}
		order.Customer = customer
		updated = order
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "mutate failed")
		}
		return nil, err
	}
	return updated, nil
}

// Delete removes the order and its tracking events.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := repoTracer.Start(ctx, "OrderRepository.Delete", trace.WithAttributes(attribute.Int64("order.id", id)))
	defer span.End()

	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*entity.OrderTrackingEvent)(nil)).Where("order_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete tracking events: %w", err)
		}
		res, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete order: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
	}
	return err
}
