package repository

import (
	"database/sql"
	"errors"
	"time"

	"ibtrade/internal/models"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает запись об ордере
func (r *OrderRepository) Create(order *models.OrderRecord) error {
	query := `
		INSERT INTO orders (order_id, account, symbol, side, quantity, workflow, status, error_message, created_at, filled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`

	order.CreatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		order.OrderID,
		order.Account,
		order.Symbol,
		order.Side,
		order.Quantity,
		order.Workflow,
		order.Status,
		order.ErrorMessage,
		order.CreatedAt,
		order.FilledAt,
	).Scan(&order.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByOrderID возвращает запись по идентификатору ордера шлюза
func (r *OrderRepository) GetByOrderID(orderID int64) (*models.OrderRecord, error) {
	query := `
		SELECT id, order_id, account, symbol, side, quantity, workflow, status, error_message, created_at, filled_at
		FROM orders
		WHERE order_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	order := &models.OrderRecord{}
	err := r.db.QueryRow(query, orderID).Scan(
		&order.ID,
		&order.OrderID,
		&order.Account,
		&order.Symbol,
		&order.Side,
		&order.Quantity,
		&order.Workflow,
		&order.Status,
		&order.ErrorMessage,
		&order.CreatedAt,
		&order.FilledAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// MarkFilled отмечает ордер исполненным
func (r *OrderRepository) MarkFilled(orderID int64) error {
	query := `
		UPDATE orders
		SET status = $1, filled_at = $2
		WHERE order_id = $3`

	result, err := r.db.Exec(query, models.OrderStatusFilled, time.Now(), orderID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// UpdateStatus обновляет статус ордера и текст ошибки
func (r *OrderRepository) UpdateStatus(orderID int64, status, errorMessage string) error {
	query := `
		UPDATE orders
		SET status = $1, error_message = $2
		WHERE order_id = $3`

	result, err := r.db.Exec(query, status, errorMessage, orderID)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

// GetRecent возвращает последние N ордеров
func (r *OrderRepository) GetRecent(limit int) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, order_id, account, symbol, side, quantity, workflow, status, error_message, created_at, filled_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetByAccount возвращает ордера счёта, свежие первыми
func (r *OrderRepository) GetByAccount(account string, limit int) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, order_id, account, symbol, side, quantity, workflow, status, error_message, created_at, filled_at
		FROM orders
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// scanOrders вычитывает записи ордеров из результата запроса
func scanOrders(rows *sql.Rows) ([]*models.OrderRecord, error) {
	var orders []*models.OrderRecord
	for rows.Next() {
		order := &models.OrderRecord{}
		err := rows.Scan(
			&order.ID,
			&order.OrderID,
			&order.Account,
			&order.Symbol,
			&order.Side,
			&order.Quantity,
			&order.Workflow,
			&order.Status,
			&order.ErrorMessage,
			&order.CreatedAt,
			&order.FilledAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}
