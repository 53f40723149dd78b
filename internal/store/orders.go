package store

import (
	"context"
	"time"

	"ms-checkout/internal/models"
)

// SaveOrder inserts the order or refreshes its contact and amount fields.
// created is true only for the first insert.
func (s *Store) SaveOrder(ctx context.Context, order *models.Order) (created bool, err error) {
	now := time.Now().UTC()
	order.UpdatedAt = now
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}

	res, err := s.db.NewInsert().
		Model(order).
		On("CONFLICT (id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.log.LogOrder("CREATED", order.ID, "order row inserted")
		return true, nil
	}

	_, err = s.db.NewUpdate().
		Model(order).
		Column("email", "name", "phone", "amount_total_minor", "currency", "status", "locale", "promo_code", "updated_at").
		WherePK().
		Exec(ctx)
	return false, err
}

func (s *Store) GetOrder(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := s.db.NewSelect().
		Model(&order).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// ListOrders returns the newest orders first.
func (s *Store) ListOrders(ctx context.Context, limit, offset int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	orders := []models.Order{}
	err := s.db.NewSelect().
		Model(&orders).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Scan(ctx)
	return orders, err
}

func (s *Store) CountOrders(ctx context.Context) (int, error) {
	return s.db.NewSelect().Model((*models.Order)(nil)).Count(ctx)
}

// LatestOrder returns ErrNotFound when no order was ever reconciled.
func (s *Store) LatestOrder(ctx context.Context) (*models.Order, error) {
	var order models.Order
	err := s.db.NewSelect().
		Model(&order).
		Order("created_at DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

func (s *Store) TicketsByOrder(ctx context.Context, orderID string) ([]models.Ticket, error) {
	tickets := []models.Ticket{}
	err := s.db.NewSelect().
		Model(&tickets).
		Where("order_id = ?", orderID).
		Order("ticket_index ASC").
		Scan(ctx)
	return tickets, err
}

func (s *Store) BottlesByOrder(ctx context.Context, orderID string) ([]models.OrderBottle, error) {
	bottles := []models.OrderBottle{}
	err := s.db.NewSelect().
		Model(&bottles).
		Where("order_id = ?", orderID).
		Order("position ASC").
		Scan(ctx)
	return bottles, err
}

// OrderView loads an order with its tickets and bottles.
func (s *Store) OrderView(ctx context.Context, id string) (*models.OrderView, error) {
	order, err := s.GetOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	tickets, err := s.TicketsByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	bottles, err := s.BottlesByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	return &models.OrderView{Order: *order, Tickets: tickets, Bottles: bottles}, nil
}
