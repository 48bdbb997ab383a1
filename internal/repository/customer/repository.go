package customer

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

var repoTracer = otel.Tracer("github.com/Additional-Code/ordertrack/repository/customer")

// ErrNotFound is returned when a customer is missing.
var ErrNotFound = errors.New("customer not found")

var orderingColumns = map[string]string{
	"id":   "c.id",
	"name": "c.name",
}

// Filter narrows customer listings. Exact-match fields are ignored when nil.
type Filter struct {
	ID          *int64
	Name        *string
	PhoneNumber *string
	Search      string
	Ordering    []string
	Page        repository.Page
}

// Repository encapsulates read/write access for customers.
type Repository struct {
	writer *bun.DB
	reader *bun.DB
}

// NewRepository wires a repository backed by configured database connections.
func NewRepository(conns *database.Connections) *Repository {
	return &Repository{writer: conns.Writer, reader: conns.Reader}
}

// Create persists a new customer.
func (r *Repository) Create(ctx context.Context, customer *entity.Customer) error {
	if customer == nil {
		return errors.New("nil customer")
	}
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Create")
	defer span.End()

	if _, err := r.writer.NewInsert().Model(customer).Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
		return err
	}
	return nil
}

// GetByID fetches a customer by primary key.
func (r *Repository) GetByID(ctx context.Context, id int64) (*entity.Customer, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.GetByID", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	customer := new(entity.Customer)
	err := r.reader.NewSelect().Model(customer).Where("c.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return customer, nil
}

// List returns one page of customers matching f together with the total match count.
func (r *Repository) List(ctx context.Context, f Filter) ([]entity.Customer, int, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.List")
	defer span.End()

	var customers []entity.Customer
	q := r.reader.NewSelect().Model(&customers)
	if f.ID != nil {
		q = q.Where("c.id = ?", *f.ID)
	}
	if f.Name != nil {
		q = q.Where("c.name = ?", *f.Name)
	}
	if f.PhoneNumber != nil {
		q = q.Where("c.phone_number = ?", *f.PhoneNumber)
	}
	q = repository.ApplySearch(q, []string{"c.name", "c.phone_number"}, repository.SearchTerms(f.Search))
	q = repository.ApplyOrdering(q, f.Ordering, orderingColumns, []string{"c.id DESC"}, "c.id DESC")
	q = f.Page.Apply(q)

	count, err := q.ScanAndCount(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, 0, err
	}
	return customers, count, nil
}

// Update writes all customer columns.
func (r *Repository) Update(ctx context.Context, customer *entity.Customer) error {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Update", trace.WithAttributes(attribute.Int64("customer.id", customer.ID)))
	defer span.End()

	if _, err := r.writer.NewUpdate().Model(customer).WherePK().Exec(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	return nil
}

// OrderIDs lists the identifiers of the customer's orders.
func (r *Repository) OrderIDs(ctx context.Context, id int64) ([]int64, error) {
	var ids []int64
	err := r.reader.NewSelect().Model((*entity.Order)(nil)).Column("o.id").Where("o.customer_id = ?", id).Scan(ctx, &ids)
	return ids, err
}

// Delete removes the customer together with its orders and their tracking events.
// It returns the identifiers of the removed orders.
func (r *Repository) Delete(ctx context.Context, id int64) ([]int64, error) {
	ctx, span := repoTracer.Start(ctx, "CustomerRepository.Delete", trace.WithAttributes(attribute.Int64("customer.id", id)))
	defer span.End()

	var orderIDs []int64
	err := r.writer.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if err := tx.NewSelect().Model((*entity.Order)(nil)).Column("o.id").Where("o.customer_id = ?", id).Scan(ctx, &orderIDs); err != nil {
			return fmt.Errorf("select orders: %w", err)
		}
		if len(orderIDs) > 0 {
			if _, err := tx.NewDelete().Model((*entity.OrderTrackingEvent)(nil)).Where("order_id IN (?)", bun.In(orderIDs)).Exec(ctx); err != nil {
				return fmt.Errorf("delete tracking events: %w", err)
			}
			if _, err := tx.NewDelete().Model((*entity.Order)(nil)).Where("customer_id = ?", id).Exec(ctx); err != nil {
				return fmt.Errorf("delete orders: %w", err)
			}
		}
		res, err := tx.NewDelete().Model((*entity.Customer)(nil)).Where("id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete customer: %w", err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "delete failed")
		}
		return nil, err
	}
	return orderIDs, nil
}
