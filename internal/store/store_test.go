package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
)

func setupTestDB(t *testing.T) (*Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	return New(db), mock, func() { db.Close() }
}

func TestChainOpen(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// Empty ledger: first run, planning allowed.
	mock.ExpectQuery("SELECT next").WillReturnError(sql.ErrNoRows)
	open, err := st.ChainOpen(context.Background())
	if err != nil {
		t.Fatalf("ChainOpen error: %v", err)
	}
	if !open {
		t.Error("empty ledger should open the chain")
	}

	// next=false on the newest row: planning allowed.
	mock.ExpectQuery("SELECT next").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(false))
	open, _ = st.ChainOpen(context.Background())
	if !open {
		t.Error("next=false should open the chain")
	}

	// next=true: a successor is queued, planning inhibited.
	mock.ExpectQuery("SELECT next").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(true))
	open, _ = st.ChainOpen(context.Background())
	if open {
		t.Error("next=true should inhibit planning")
	}
}

func TestCloseChainGuardedBySuccessor(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// The queue check is part of the statement itself, so closing the
	// chain and verifying a successor exists cannot be torn apart.
	mock.ExpectExec(`UPDATE published\s+SET next = true\s+WHERE id = \(SELECT MAX\(id\) FROM published\)\s+AND EXISTS`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := st.CloseChain(context.Background()); err != nil {
		t.Fatalf("CloseChain error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestReopenChainOnlyWhenQueueEmpty(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectExec(`UPDATE published\s+SET next = false\s+WHERE id = \(SELECT MAX\(id\) FROM published\)\s+AND next = true\s+AND NOT EXISTS`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	n, err := st.ReopenChain(context.Background())
	if err != nil {
		t.Fatalf("ReopenChain error: %v", err)
	}
	if n != 1 {
		t.Errorf("reopened rows = %d, want 1", n)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestSelectWinnerEmpty(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, final_score").WillReturnError(sql.ErrNoRows)

	winner, err := st.SelectWinner(context.Background())
	if err != nil {
		t.Fatalf("SelectWinner error: %v", err)
	}
	if winner != nil {
		t.Errorf("expected no winner, got %+v", winner)
	}
}

func TestSelectWinner(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, final_score").
		WillReturnRows(sqlmock.NewRows([]string{"id", "final_score", "time-best", "time-expire"}).
			AddRow(7, 8.45, 9, 3))

	winner, err := st.SelectWinner(context.Background())
	if err != nil {
		t.Fatalf("SelectWinner error: %v", err)
	}
	if winner == nil || winner.ID != 7 || winner.FinalScore != 8.45 {
		t.Errorf("winner = %+v, want id=7 score=8.45", winner)
	}
}

func TestMoveToQueueTransactional(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO to_publish").
		WithArgs(int64(1756025000), int64(7)).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("DELETE FROM editor").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := st.MoveToQueue(context.Background(), 7, 1756025000); err != nil {
		t.Fatalf("MoveToQueue error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMoveToQueueMissingWinner(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO to_publish").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	if err := st.MoveToQueue(context.Background(), 99, 1756025000); err == nil {
		t.Error("MoveToQueue should fail when the winner vanished")
	}
}

func TestResetRoundFlagsLeavesLT(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	// The reset statement must not mention the lt flag.
	mock.ExpectExec(`SET mt = false, "time" = false, analyzed = false`).
		WillReturnResult(sqlmock.NewResult(0, 12))

	if err := st.ResetRoundFlags(context.Background()); err != nil {
		t.Fatalf("ResetRoundFlags error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestTimePendingScansBestTimes(t *testing.T) {
	st, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, post_time, expire, best_times").
		WillReturnRows(sqlmock.NewRows([]string{"id", "post_time", "expire", "best_times"}).
			AddRow(1, time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC), 7, pq.Int64Array{9, 15}))

	rows, err := st.TimePending(context.Background())
	if err != nil {
		t.Fatalf("TimePending error: %v", err)
	}
	if len(rows) != 1 || len(rows[0].BestTimes) != 2 || rows[0].BestTimes[0] != 9 {
		t.Errorf("rows = %+v, want one row with best_times [9 15]", rows)
	}
}

func TestCategoryRoundTrip(t *testing.T) {
	cats := []Category{
		{Label: "classics", Weight: 0.6},
		{Label: "modern", Weight: 0.4},
	}
	decoded := decodeCategories(encodeCategories(cats))
	if len(decoded) != 2 || decoded[0].Label != "classics" || decoded[1].Weight != 0.4 {
		t.Errorf("round trip = %+v, want %+v", decoded, cats)
	}

	// Malformed elements are skipped, not fatal.
	partial := decodeCategories(pq.StringArray{`{"label":"ok","weight":1}`, `not json`})
	if len(partial) != 1 || partial[0].Label != "ok" {
		t.Errorf("partial decode = %+v, want the single valid element", partial)
	}
}
