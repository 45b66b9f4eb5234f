package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tdex-network/fiatln-daemon/internal/core/domain"
	"github.com/tdex-network/fiatln-daemon/internal/core/ports"
)

func TestOrderRepositoryImplementations(t *testing.T) {
	t.Run("testAddAndGetOrder", func(t *testing.T) {
		forEachRepoManager(t, testAddAndGetOrder)
	})
	t.Run("testGetOpenOrders", func(t *testing.T) {
		forEachRepoManager(t, testGetOpenOrders)
	})
	t.Run("testUpdateOrder", func(t *testing.T) {
		forEachRepoManager(t, testUpdateOrder)
	})
}

func testAddAndGetOrder(t *testing.T, repoManager ports.RepoManager) {
	repo := repoManager.OrderRepository()

	_, err := repo.GetOrder(ctx, 1)
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	buyOrder, sellOrder := addRandomOrders(t, repoManager)
	require.Positive(t, buyOrder.ID)
	// Ids come from a single sequence for both kinds.
	require.Greater(t, sellOrder.ID, buyOrder.ID)

	for _, expected := range []*domain.Order{buyOrder, sellOrder} {
		order, err := repo.GetOrder(ctx, expected.ID)
		require.NoError(t, err)
		require.Equal(t, *expected, *order)
	}

	// A returned order is a copy.
	order, err := repo.GetOrder(ctx, buyOrder.ID)
	require.NoError(t, err)
	order.SetAmount(0)
	order.Offer.Conditions[domain.ConditionCltvExpiryDelta] = domain.Range{Min: 1, Max: 1}

	order, err = repo.GetOrder(ctx, buyOrder.ID)
	require.NoError(t, err)
	require.Equal(t, *buyOrder, *order)

	orders, err := repo.GetAllOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)
	require.Equal(t, buyOrder.ID, orders[0].ID)
	require.Equal(t, sellOrder.ID, orders[1].ID)
}

func testGetOpenOrders(t *testing.T, repoManager ports.RepoManager) {
	repo := repoManager.OrderRepository()

	statuses := []domain.OrderStatus{
		domain.OrderStatusActive,
		domain.OrderStatusCancelRequested,
		domain.OrderStatusCanceled,
		domain.OrderStatusCompleted,
	}
	ids := make(map[domain.OrderStatus]int64)
	for _, status := range statuses {
		order := makeRandomBuyOrder(t)
		order.Status = status
		require.NoError(t, repo.AddOrder(ctx, order))
		ids[status] = order.ID
	}

	orders, err := repo.GetOpenOrders(ctx)
	require.NoError(t, err)
	require.Len(t, orders, 2)

	openIDs := []int64{orders[0].ID, orders[1].ID}
	require.ElementsMatch(t, []int64{
		ids[domain.OrderStatusActive], ids[domain.OrderStatusCancelRequested],
	}, openIDs)
}

func testUpdateOrder(t *testing.T, repoManager ports.RepoManager) {
	repo := repoManager.OrderRepository()

	err := repo.UpdateOrder(ctx, 1, func(o *domain.Order) (*domain.Order, error) {
		return o, nil
	})
	require.ErrorIs(t, err, domain.ErrOrderNotFound)

	buyOrder, _ := addRandomOrders(t, repoManager)
	offerID := int64(42)

	err = repo.UpdateOrder(ctx, buyOrder.ID, func(o *domain.Order) (*domain.Order, error) {
		o.SetAmount(o.Amount / 2)
		o.RemoteOfferID = &offerID
		_, err := o.RequestCancel()
		return o, err
	})
	require.NoError(t, err)

	order, err := repo.GetOrder(ctx, buyOrder.ID)
	require.NoError(t, err)
	require.Equal(t, buyOrder.Amount/2, order.Amount)
	require.Equal(t, buyOrder.Amount/2, int64(order.Offer.Bid.MaxAmount))
	require.Equal(t, domain.OrderStatusCancelRequested, order.Status)
	require.NotNil(t, order.RemoteOfferID)
	require.Equal(t, offerID, *order.RemoteOfferID)

	// A failing update leaves the order untouched.
	failure := errors.New("failure")
	err = repo.UpdateOrder(ctx, buyOrder.ID, func(o *domain.Order) (*domain.Order, error) {
		o.Close()
		return nil, failure
	})
	require.ErrorIs(t, err, failure)

	updatedOrder, err := repo.GetOrder(ctx, buyOrder.ID)
	require.NoError(t, err)
	require.Equal(t, *order, *updatedOrder)

	err = repo.UpdateOrder(ctx, buyOrder.ID, func(o *domain.Order) (*domain.Order, error) {
		o.RemoteOfferID = nil
		return o, nil
	})
	require.NoError(t, err)

	order, err = repo.GetOrder(context.Background(), buyOrder.ID)
	require.NoError(t, err)
	require.Nil(t, order.RemoteOfferID)
}
