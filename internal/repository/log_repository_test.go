package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"ibtrade/internal/models"
)

// ============================================================
// LogRepository Tests
// ============================================================

func TestLogRepositoryCreate(t *testing.T) {
	tests := []struct {
		name        string
		entry       *models.LogEntry
		mockSetup   func(mock sqlmock.Sqlmock)
		expectError bool
	}{
		{
			name: "success",
			entry: &models.LogEntry{
				Level:   models.LogLevelInfo,
				Message: "order 100 filled",
				Account: "DU1111111",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO logs`).
					WithArgs(models.LogLevelInfo, "order 100 filled", "DU1111111", sqlmock.AnyArg()).
					WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
			},
			expectError: false,
		},
		{
			name: "database error",
			entry: &models.LogEntry{
				Level:   models.LogLevelError,
				Message: "boom",
			},
			mockSetup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`INSERT INTO logs`).
					WithArgs(models.LogLevelError, "boom", "", sqlmock.AnyArg()).
					WillReturnError(errors.New("database error"))
			},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, err := sqlmock.New()
			if err != nil {
				t.Fatalf("failed to create mock: %v", err)
			}
			defer db.Close()

			tt.mockSetup(mock)

			repo := NewLogRepository(db)
			err = repo.Create(tt.entry)

			if tt.expectError && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.expectError && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.expectError && tt.entry.ID != 7 {
				t.Errorf("ID = %d, want 7", tt.entry.ID)
			}

			if err := mock.ExpectationsWereMet(); err != nil {
				t.Errorf("unmet expectations: %v", err)
			}
		})
	}
}

func TestLogRepositoryGetRecent(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "level", "message", "account", "created_at"}).
		AddRow(2, models.LogLevelWarn, "workflow aborted: insufficient cash", "DU1111111", now).
		AddRow(1, models.LogLevelInfo, "order 100 filled", "DU1111111", now.Add(-time.Minute))

	mock.ExpectQuery(`SELECT (.+) FROM logs`).
		WithArgs(100).
		WillReturnRows(rows)

	repo := NewLogRepository(db)
	entries, err := repo.GetRecent(100)
	if err != nil {
		t.Fatalf("GetRecent() error = %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("GetRecent() returned %d entries, want 2", len(entries))
	}
	if entries[0].Level != models.LogLevelWarn {
		t.Errorf("first entry level = %s, want warn", entries[0].Level)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLogRepositoryGetByAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	rows := sqlmock.NewRows([]string{"id", "level", "message", "account", "created_at"}).
		AddRow(1, models.LogLevelInfo, "order placed", "DU2222222", time.Now())

	mock.ExpectQuery(`SELECT (.+) FROM logs`).
		WithArgs("DU2222222", 10).
		WillReturnRows(rows)

	repo := NewLogRepository(db)
	entries, err := repo.GetByAccount("DU2222222", 10)
	if err != nil {
		t.Fatalf("GetByAccount() error = %v", err)
	}
	if len(entries) != 1 || entries[0].Account != "DU2222222" {
		t.Errorf("GetByAccount() = %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestLogRepositoryDeleteOlderThan(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	defer db.Close()

	cutoff := time.Now().Add(-30 * 24 * time.Hour)
	mock.ExpectExec(`DELETE FROM logs`).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 42))

	repo := NewLogRepository(db)
	deleted, err := repo.DeleteOlderThan(cutoff)
	if err != nil {
		t.Fatalf("DeleteOlderThan() error = %v", err)
	}
	if deleted != 42 {
		t.Errorf("DeleteOlderThan() = %d, want 42", deleted)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
