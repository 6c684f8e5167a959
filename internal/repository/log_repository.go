package repository

import (
	"database/sql"
	"time"

	"ibtrade/internal/models"
)

// LogRepository - работа с таблицей logs (журнал торговых событий)
type LogRepository struct {
	db *sql.DB
}

// NewLogRepository создает новый экземпляр репозитория
func NewLogRepository(db *sql.DB) *LogRepository {
	return &LogRepository{db: db}
}

// Create создает запись журнала
func (r *LogRepository) Create(entry *models.LogEntry) error {
	query := `
		INSERT INTO logs (level, message, account, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	entry.CreatedAt = time.Now()

	err := r.db.QueryRow(
		query,
		entry.Level,
		entry.Message,
		entry.Account,
		entry.CreatedAt,
	).Scan(&entry.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetRecent возвращает последние N записей журнала
func (r *LogRepository) GetRecent(limit int) ([]*models.LogEntry, error) {
	query := `
		SELECT id, level, message, account, created_at
		FROM logs
		ORDER BY created_at DESC
		LIMIT $1`

	rows, err := r.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLogs(rows)
}

// GetByAccount возвращает записи журнала по счёту
func (r *LogRepository) GetByAccount(account string, limit int) ([]*models.LogEntry, error) {
	query := `
		SELECT id, level, message, account, created_at
		FROM logs
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := r.db.Query(query, account, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLogs(rows)
}

// DeleteOlderThan удаляет записи старше отметки, возвращает количество
func (r *LogRepository) DeleteOlderThan(cutoff time.Time) (int64, error) {
	query := `DELETE FROM logs WHERE created_at < $1`

	result, err := r.db.Exec(query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// scanLogs вычитывает записи журнала из результата запроса
func scanLogs(rows *sql.Rows) ([]*models.LogEntry, error) {
	var entries []*models.LogEntry
	for rows.Next() {
		entry := &models.LogEntry{}
		err := rows.Scan(
			&entry.ID,
			&entry.Level,
			&entry.Message,
			&entry.Account,
			&entry.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return entries, nil
}
