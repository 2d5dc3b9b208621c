package postgres

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/sylwiakmieciak/madebyu-sub000/pkg/errors"
	"github.com/sylwiakmieciak/madebyu-sub000/pkg/pagination"

	"github.com/sylwiakmieciak/madebyu-sub000/internal/domain"
)

func sampleReview() *domain.Review {
	return &domain.Review{
		ID: "rev-1", SellerID: "seller-1", BuyerID: "buyer-1", OrderID: "order-1",
		Rating: 5, Comment: "Beautiful work", CreatedAt: fixedTime(),
	}
}

func TestReviewRepository_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs("rev-1", "seller-1", "buyer-1", "order-1", 5, "Beautiful work", rv.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), rv))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Create_DuplicateIsConflict(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs("rev-1", "seller-1", "buyer-1", "order-1", 5, "Beautiful work", rv.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "reviews_order_seller_key"})

	err := repo.Create(context.Background(), rv)
	assert.ErrorIs(t, err, apperrors.ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_Exists(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs("order-1", "seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	ok, err := repo.Exists(context.Background(), "order-1", "seller-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ReviewedSellers(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("SELECT seller_id FROM reviews").
		WithArgs("order-1").
		WillReturnRows(pgxmock.NewRows([]string{"seller_id"}).AddRow("seller-1").AddRow("seller-3"))

	sellers, err := repo.ReviewedSellers(context.Background(), "order-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"seller-1", "seller-3"}, sellers)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_SellerStats(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("COUNT\\(\\*\\) FILTER").
		WithArgs("seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"r1", "r2", "r3", "r4", "r5"}).AddRow(0, 0, 1, 1, 1))

	stats, err := repo.SellerStats(context.Background(), "seller-1")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalReviews)
	assert.Equal(t, 4.0, stats.AverageRating)
	assert.Equal(t, 1, stats.Distribution[5])
	assert.Equal(t, 0, stats.Distribution[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListBySeller(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)
	rv := sampleReview()

	mock.ExpectQuery("FROM reviews").
		WithArgs("seller-1", 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seller_id", "buyer_id", "order_id", "rating", "comment", "created_at", "total_count"}).
			AddRow(rv.ID, rv.SellerID, rv.BuyerID, rv.OrderID, rv.Rating, rv.Comment, rv.CreatedAt, 1))

	reviews, total, err := repo.ListBySeller(context.Background(), "seller-1", pagination.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, reviews, 1)
	assert.Equal(t, *rv, reviews[0])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReviewRepository_ListBySeller_PastLastPage(t *testing.T) {
	mock := newMock(t)
	repo := NewReviewRepository(mock)

	mock.ExpectQuery("FROM reviews").
		WithArgs("seller-1", 10, 10).
		WillReturnRows(pgxmock.NewRows([]string{"id", "seller_id", "buyer_id", "order_id", "rating", "comment", "created_at", "total_count"}))
	mock.ExpectQuery(`SELECT count\(\*\) FROM reviews WHERE seller_id = \$1`).
		WithArgs("seller-1").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(7))

	reviews, total, err := repo.ListBySeller(context.Background(), "seller-1", pagination.Params{Page: 2, PerPage: 10})
	require.NoError(t, err)
	assert.Empty(t, reviews)
	assert.Equal(t, 7, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
