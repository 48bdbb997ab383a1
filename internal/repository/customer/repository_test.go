package customer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/ordertrack/internal/database/dbtest"
	"github.com/Additional-Code/ordertrack/internal/entity"
	"github.com/Additional-Code/ordertrack/internal/repository/customer"
	orderrepo "github.com/Additional-Code/ordertrack/internal/repository/order"
	eventrepo "github.com/Additional-Code/ordertrack/internal/repository/trackingevent"
)

func names(customers []entity.Customer) []string {
	out := make([]string, 0, len(customers))
	for _, c := range customers {
		out = append(out, c.Name)
	}
	return out
}

func TestList(t *testing.T) {
	repo := customer.NewRepository(dbtest.Open(t))
	ctx := context.Background()
	for _, c := range []*entity.Customer{
		{Name: "Ada Lovelace", PhoneNumber: "+15550100"},
		{Name: "Grace Hopper", PhoneNumber: "+15550101"},
		{Name: "Alan Turing", PhoneNumber: "+44207"},
	} {
		require.NoError(t, repo.Create(ctx, c))
	}

	name := "Grace Hopper"
	phone := "+44207"
	cases := map[string]struct {
		filter customer.Filter
		want   []string
	}{
		"default newest first": {customer.Filter{}, []string{"Alan Turing", "Grace Hopper", "Ada Lovelace"}},
		"exact name":           {customer.Filter{Name: &name}, []string{"Grace Hopper"}},
		"exact phone":          {customer.Filter{PhoneNumber: &phone}, []string{"Alan Turing"}},
		"search any field":     {customer.Filter{Search: "5550"}, []string{"Grace Hopper", "Ada Lovelace"}},
		"search every term":    {customer.Filter{Search: "a 0101"}, []string{"Grace Hopper"}},
		"order by name":        {customer.Filter{Ordering: []string{"name"}}, []string{"Ada Lovelace", "Alan Turing", "Grace Hopper"}},
		"order by name desc":   {customer.Filter{Ordering: []string{"-name"}}, []string{"Grace Hopper", "Alan Turing", "Ada Lovelace"}},
	}

	for label, tc := range cases {
		t.Run(label, func(t *testing.T) {
			got, count, err := repo.List(ctx, tc.filter)
			require.NoError(t, err)
			assert.Equal(t, tc.want, names(got))
			assert.Equal(t, len(tc.want), count)
		})
	}
}

func TestUpdate(t *testing.T) {
	repo := customer.NewRepository(dbtest.Open(t))
	ctx := context.Background()
	c := &entity.Customer{Name: "Ada", PhoneNumber: "1"}
	require.NoError(t, repo.Create(ctx, c))

	c.PhoneNumber = "2"
	require.NoError(t, repo.Update(ctx, c))
	require.NoError(t, repo.Update(ctx, c), "writing unchanged values is not an error")

	got, err := repo.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, "2", got.PhoneNumber)
}

func TestDeleteCascades(t *testing.T) {
	conns := dbtest.Open(t)
	repo := customer.NewRepository(conns)
	orders := orderrepo.NewRepository(conns)
	events := eventrepo.NewRepository(conns)
	ctx := context.Background()

	owner := &entity.Customer{Name: "Ada", PhoneNumber: "1"}
	other := &entity.Customer{Name: "Grace", PhoneNumber: "2"}
	require.NoError(t, repo.Create(ctx, owner))
	require.NoError(t, repo.Create(ctx, other))

	now := time.Now().UTC()
	var owned []int64
	for _, number := range []string{"A-1", "A-2"} {
		o := &entity.Order{TrackingNumber: number, CustomerID: owner.ID, Status: entity.StatusCreated, CreatedAt: now, UpdatedAt: now}
		require.NoError(t, orders.Create(ctx, o))
		_, err := orders.Mutate(ctx, o.ID, func(current *entity.Order) (*entity.OrderTrackingEvent, error) {
			current.Status = entity.StatusPicked
			return &entity.OrderTrackingEvent{Status: entity.StatusPicked, Timestamp: now}, nil
		})
		require.NoError(t, err)
		owned = append(owned, o.ID)
	}
	kept := &entity.Order{TrackingNumber: "G-1", CustomerID: other.ID, Status: entity.StatusCreated, CreatedAt: now, UpdatedAt: now}
	require.NoError(t, orders.Create(ctx, kept))

	ids, err := repo.OrderIDs(ctx, owner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, owned, ids)

	removed, err := repo.Delete(ctx, owner.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, owned, removed)

	_, err = repo.GetByID(ctx, owner.ID)
	assert.ErrorIs(t, err, customer.ErrNotFound)
	for _, id := range owned {
		_, err := orders.GetByID(ctx, id)
		assert.ErrorIs(t, err, orderrepo.ErrNotFound)
	}
	_, count, err := events.List(ctx, eventrepo.Filter{})
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = orders.GetByID(ctx, kept.ID)
	assert.NoError(t, err)

	_, err = repo.Delete(ctx, owner.ID)
	assert.ErrorIs(t, err, customer.ErrNotFound)
}
