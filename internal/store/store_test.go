package store

import (
	"context"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"

	core "github.com/rcabanilla/gridseer/internal/agent/core"
)

func TestSearchPages(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectQuery(`SELECT url, title, source, content`).
		WithArgs("%WESM prices%", searchPageLimit).
		WillReturnRows(sqlmock.NewRows([]string{"url", "title", "source", "content"}).
			AddRow("https://wesm.ph/report", "Spot market report", "wesm.ph", "June prices rose").
			AddRow("https://doe.gov.ph/plan", "Power development plan", "doe.gov.ph", nil))

	docs, err := st.SearchPages(context.Background(), "WESM prices")
	if err != nil {
		t.Fatalf("SearchPages: %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 pages, got %d", len(docs))
	}
	if docs[0].URL != "https://wesm.ph/report" || docs[0].Content != "June prices rose" {
		t.Fatalf("unexpected first page: %+v", docs[0])
	}
	if docs[1].Content != "" {
		t.Fatalf("NULL content should scan to empty string: %+v", docs[1])
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertPagesConflictIsDeclaredKind(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`INSERT INTO cached_pages`).
		WithArgs("https://erc.gov.ph/case", "ERC case", "erc.gov.ph", "ruling text").
		WillReturnError(&pq.Error{Code: "23505"})

	err = st.InsertPages(context.Background(), []core.EnergyDocument{
		{URL: "https://erc.gov.ph/case", Title: "ERC case", Source: "erc.gov.ph", Content: "ruling text"},
	})
	if !errors.Is(err, core.ErrPageConflict) {
		t.Fatalf("expected ErrPageConflict, got %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestInsertPagesOtherErrorPassesThrough(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	mock.ExpectExec(`INSERT INTO cached_pages`).
		WillReturnError(&pq.Error{Code: "53300", Message: "too many connections"})

	err = st.InsertPages(context.Background(), []core.EnergyDocument{{URL: "https://x.ph", Title: "t"}})
	if err == nil || errors.Is(err, core.ErrPageConflict) {
		t.Fatalf("non-unique violation must not map to ErrPageConflict: %v", err)
	}
}

func TestUpsertPagesUsesSnippetWhenContentEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	st := &Store{DB: db}

	query := regexp.QuoteMeta("ON CONFLICT (url) DO UPDATE SET")
	mock.ExpectExec(query).
		WithArgs("https://ngcp.ph/advisory", "Grid advisory", "ngcp.ph", "yellow alert issued").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = st.UpsertPages(context.Background(), []core.EnergyDocument{
		{URL: "https://ngcp.ph/advisory", Title: "Grid advisory", Source: "ngcp.ph", Snippet: "yellow alert issued"},
	})
	if err != nil {
		t.Fatalf("UpsertPages: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
