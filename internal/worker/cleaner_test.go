package worker

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/anthology/autoposter/internal/store"
)

func TestCleanerCycle(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec("DELETE FROM editor").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`DELETE FROM to_publish\s+WHERE published = true`).
		WillReturnResult(sqlmock.NewResult(0, 2))
	// Prepared rows without a usable caption are dead: they can never pass
	// the delivery guards.
	mock.ExpectExec(`DELETE FROM to_publish\s+WHERE published = false\s+AND prepare = true`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// With the queue drained of its announced successor, the chain flag
	// must flip back so planning resumes.
	mock.ExpectExec(`UPDATE published\s+SET next = false`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	c := NewCleaner(store.New(db))
	c.runOnce(context.Background())

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
