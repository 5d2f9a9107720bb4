package api

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/anthology/autoposter/internal/config"
	"github.com/anthology/autoposter/internal/store"
)

func TestStatusEndpoint(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count", "analyzed"}).AddRow(12, 4))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(300))
	mock.ExpectQuery("SELECT next").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(false))
	mock.ExpectQuery(`SELECT "lt-topic"`).
		WillReturnRows(sqlmock.NewRows([]string{"lt-topic", "lt-mood", "lt-updated-at"}).
			AddRow("{}", "{}", 1756000000))

	s := New(store.New(db), config.Default().Server)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/api/status", nil)
	s.http.Handler.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status code = %d, want 200", rec.Code)
	}

	var got store.PipelineStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("response is not valid JSON: %v", err)
	}
	if got.EditorTotal != 12 || got.QueuePending != 2 || !got.ChainOpen {
		t.Errorf("status = %+v, want editor_total=12 queue_pending=2 chain_open=true", got)
	}
	if got.LTUpdatedAt != 1756000000 {
		t.Errorf("lt_updated_at = %d, want 1756000000", got.LTUpdatedAt)
	}
}
