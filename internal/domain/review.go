package domain

import (
	"math"
	"time"
)

// Rating bounds.
const (
	MinRating = 1
	MaxRating = 5
)

// Review is a buyer's rating of one seller for one delivered order.
type Review struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	BuyerID   string    `json:"buyer_id"`
	OrderID   string    `json:"order_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// IsValidRating checks that r is an integer star rating.
func IsValidRating(r int) bool {
	return r >= MinRating && r <= MaxRating
}

// SellerStats is the aggregate rating of a seller.
type SellerStats struct {
	SellerID      string      `json:"seller_id"`
	AverageRating float64     `json:"average_rating"`
	TotalReviews  int         `json:"total_reviews"`
	Distribution  map[int]int `json:"distribution"`
}

// NewSellerStats builds stats from per-star counts, where counts[i] is the
// number of (i+1)-star reviews. The average is rounded to one decimal.
func NewSellerStats(sellerID string, counts [MaxRating]int) *SellerStats {
	stats := &SellerStats{SellerID: sellerID, Distribution: make(map[int]int, MaxRating)}
	sum := 0
	for i, n := range counts {
		star := i + 1
		stats.Distribution[star] = n
		stats.TotalReviews += n
		sum += star * n
	}
	if stats.TotalReviews > 0 {
		avg := float64(sum) / float64(stats.TotalReviews)
		stats.AverageRating = math.Round(avg*10) / 10
	}
	return stats
}
