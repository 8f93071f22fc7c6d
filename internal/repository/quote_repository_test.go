package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"pipe-company/internal/domain"

	"github.com/google/uuid"
)

func newTestQuote(productID *uuid.UUID, productName string) *domain.QuoteRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.QuoteRequest{
		ID:           uuid.New(),
		CustomerName: "Riley Contractor",
		Email:        "riley@build.example",
		Phone:        "+1 555 0100",
		Company:      "Riley Build",
		Message:      "Need pricing for a site job",
		Status:       domain.QuoteStatusNew,
		Items: []domain.QuoteItem{
			{ProductID: productID, ProductName: productName, Quantity: 40, Notes: "cut to 6m"},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestQuoteRepository_Lifecycle(t *testing.T) {
	repo := NewQuoteRepository(testDB)
	ctx := context.Background()

	quote := newTestQuote(nil, "Custom bend")
	if err := repo.Create(ctx, quote); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { repo.Delete(ctx, quote.ID) })

	got, err := repo.FindByID(ctx, quote.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.CustomerName != quote.CustomerName || len(got.Items) != 1 || got.Items[0].Quantity != 40 {
		t.Errorf("unexpected quote %+v", got)
	}

	if err := repo.UpdateStatus(ctx, quote.ID, domain.QuoteStatusInReview, "called back"); err != nil {
		t.Fatal(err)
	}

	list, total, err := repo.List(ctx, domain.QuoteStatusInReview, 1, 50)
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, q := range list {
		if q.ID == quote.ID {
			found = q.AdminNotes == "called back" && len(q.Items) == 1
		}
		if q.Status != domain.QuoteStatusInReview {
			t.Errorf("status filter leaked %s", q.Status)
		}
	}
	if !found || total < 1 {
		t.Errorf("updated quote missing from filtered list (total %d)", total)
	}

	if err := repo.UpdateStatus(ctx, uuid.New(), domain.QuoteStatusClosed, ""); !errors.Is(err, ErrQuoteNotFound) {
		t.Errorf("expected ErrQuoteNotFound, got %v", err)
	}
}

func TestQuoteRepository_RejectsInvalidRows(t *testing.T) {
	repo := NewQuoteRepository(testDB)
	ctx := context.Background()

	quote := newTestQuote(nil, "Elbow")
	quote.Items[0].Quantity = 0
	if err := repo.Create(ctx, quote); err == nil {
		t.Fatal("quantity check constraint should reject zero")
	}
	if _, err := repo.FindByID(ctx, quote.ID); !errors.Is(err, ErrQuoteNotFound) {
		t.Errorf("rolled back quote should not exist, got %v", err)
	}

	bad := newTestQuote(nil, "Elbow")
	bad.Status = "archived"
	if err := repo.Create(ctx, bad); err == nil {
		t.Fatal("status check constraint should reject unknown statuses")
	}
}
