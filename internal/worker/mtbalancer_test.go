package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/anthology/autoposter/internal/classifier"
	"github.com/anthology/autoposter/internal/store"
)

type fakeClassifier struct {
	dist       []store.Category
	divScore   int
	categorize error
	diversify  error
}

func (f *fakeClassifier) Categorize(ctx context.Context, kind classifier.Kind, values []string) ([]store.Category, error) {
	if f.categorize != nil {
		return nil, f.categorize
	}
	return f.dist, nil
}

func (f *fakeClassifier) Diversify(ctx context.Context, kind classifier.Kind, current []store.Category, candidate string) (int, error) {
	if f.diversify != nil {
		return 0, f.diversify
	}
	return f.divScore, nil
}

func TestMTBalancerAuthorSentinel(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT topic, mood, author").
		WillReturnRows(sqlmock.NewRows([]string{"topic", "mood", "author"}).
			AddRow("love, loss", "sad", "pushkin"))

	// Distribution upsert into the empty state table.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT COUNT").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec("INSERT INTO state").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	// One candidate with an author, one without.
	mock.ExpectQuery("SELECT id, topic, mood, author").
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "mood", "author"}).
			AddRow(1, "war", "grim", "tolstoy").
			AddRow(2, "love", "light", nil))

	mock.ExpectExec("UPDATE editor").
		WithArgs(8, 8, 8, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE editor").
		WithArgs(8, 8, -1, int64(2)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cl := &fakeClassifier{
		dist:     []store.Category{{Label: "classics", Weight: 1}},
		divScore: 8,
	}
	m := NewMTBalancer(store.New(db), cl, 20)

	if err := m.RunRound(context.Background()); err != nil {
		t.Fatalf("RunRound error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestMTBalancerClassifierFailureDefaults(t *testing.T) {
	db, mock, cleanup := setupTestDB(t)
	defer cleanup()

	mock.ExpectQuery("SELECT topic, mood, author").
		WillReturnRows(sqlmock.NewRows([]string{"topic", "mood", "author"}).
			AddRow("love", "sad", "pushkin"))

	// Categorization failed, so no distribution reaches the state table
	// and the upsert is skipped entirely.

	mock.ExpectQuery("SELECT id, topic, mood, author").
		WillReturnRows(sqlmock.NewRows([]string{"id", "topic", "mood", "author"}).
			AddRow(1, "war", "grim", "tolstoy"))

	// Empty distributions degrade every dimension to the neutral default;
	// the author is present, so no sentinel.
	mock.ExpectExec("UPDATE editor").
		WithArgs(defaultScore, defaultScore, defaultScore, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	cl := &fakeClassifier{categorize: errors.New("model unavailable"), divScore: 9}
	m := NewMTBalancer(store.New(db), cl, 20)

	if err := m.RunRound(context.Background()); err != nil {
		t.Fatalf("RunRound error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}
