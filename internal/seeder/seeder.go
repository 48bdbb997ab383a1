package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/Additional-Code/ordertrack/internal/database"
	"github.com/Additional-Code/ordertrack/internal/entity"
	ordersvc "github.com/Additional-Code/ordertrack/internal/service/order"
)

// Module provides the Seeder.
var Module = fx.Provide(New)

// Seeder performs database seeding for local/dev setups.
type Seeder struct {
	db     *bun.DB
	logger *zap.Logger
}

// New constructs a Seeder backed by the primary database connection.
func New(conns *database.Connections, logger *zap.Logger) *Seeder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Seeder{db: conns.Writer, logger: logger}
}

type sampleOrder struct {
	trackingNumber string
	path           []entity.OrderStatus
}

var samples = []struct {
	name   string
	phone  string
	orders []sampleOrder
}{
	{
		name:  "Ada Lovelace",
		phone: "+15550100",
		orders: []sampleOrder{
			{trackingNumber: "TRACK-1000"},
			{trackingNumber: "TRACK-1001", path: []entity.OrderStatus{entity.StatusPicked}},
		},
	},
	{
		name:  "Grace Hopper",
		phone: "+15550101",
		orders: []sampleOrder{
			{trackingNumber: "TRACK-1002", path: []entity.OrderStatus{entity.StatusPicked, entity.StatusDelivered}},
		},
	},
}

// Orders seeds example customers and orders when their tracking numbers are not taken yet.
// Seeded orders walk the transition table and get one tracking event per step.
func (s *Seeder) Orders(ctx context.Context) error {
	seeded := 0
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, sample := range samples {
			var customer *entity.Customer
			for _, so := range sample.orders {
				exists, err := tx.NewSelect().Model((*entity.Order)(nil)).
					Where("tracking_number = ?", so.trackingNumber).
					Exists(ctx)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if customer == nil {
					customer = &entity.Customer{Name: sample.name, PhoneNumber: sample.phone}
					if _, err := tx.NewInsert().Model(customer).Exec(ctx); err != nil {
						return err
					}
				}
				if err := seedOrder(ctx, tx, customer.ID, so); err != nil {
					return err
				}
				seeded++
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("seeded orders", zap.Int("count", seeded))
	return nil
}

func seedOrder(ctx context.Context, tx bun.Tx, customerID int64, so sampleOrder) error {
	now := time.Now().UTC()
	order := &entity.Order{
		TrackingNumber: so.trackingNumber,
		CustomerID:     customerID,
		Status:         entity.StatusCreated,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if _, err := tx.NewInsert().Model(order).Exec(ctx); err != nil {
		return err
	}

	for _, next := range so.path {
		if !ordersvc.CanTransition(order.Status, next) {
			return fmt.Errorf("seed %s: invalid transition %s to %s", so.trackingNumber, order.Status, next)
		}
		comment := ordersvc.StatusComment(order.Status, next)
		event := &entity.OrderTrackingEvent{
			OrderID:   order.ID,
			Status:    next,
			Comment:   &comment,
			Timestamp: now,
		}
		if _, err := tx.NewInsert().Model(event).Exec(ctx); err != nil {
			return err
		}
		order.Status = next
	}

	if len(so.path) > 0 {
		if _, err := tx.NewUpdate().Model(order).Column("status").WherePK().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}
