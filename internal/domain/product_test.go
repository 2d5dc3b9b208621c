package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingProduct() *Product {
	return &Product{
		ID:               "p1",
		Status:           ProductStatusDraft,
		ModerationStatus: ModerationPending,
		StockQuantity:    4,
	}
}

func TestApprove_Publishes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	p := pendingProduct()

	p.Approve("mod-1", now)

	assert.Equal(t, ModerationApproved, p.ModerationStatus)
	assert.Equal(t, ProductStatusPublished, p.Status)
	require.NotNil(t, p.ModeratedBy)
	assert.Equal(t, "mod-1", *p.ModeratedBy)
	assert.Equal(t, now, *p.ModeratedAt)
	assert.Nil(t, p.RejectionReason)
	assert.True(t, p.ModerationConsistent())
}

func TestApprove_LeavesArchivedOrEmptyStockAlone(t *testing.T) {
	archived := pendingProduct()
	archived.Status = ProductStatusArchived
	archived.Approve("mod", time.Now())
	assert.Equal(t, ProductStatusArchived, archived.Status)
	assert.Equal(t, ModerationApproved, archived.ModerationStatus)

	empty := pendingProduct()
	empty.StockQuantity = 0
	empty.Approve("mod", time.Now())
	assert.Equal(t, ProductStatusDraft, empty.Status)
}

func TestReject_RequiresReason(t *testing.T) {
	p := pendingProduct()
	err := p.Reject("mod", "   ", time.Now())
	assert.ErrorIs(t, err, ErrRejectionReasonRequired)
	assert.Equal(t, ModerationPending, p.ModerationStatus)
	assert.Nil(t, p.ModeratedBy)
}

func TestReject_UnpublishesAndTrimsReason(t *testing.T) {
	p := pendingProduct()
	p.Approve("mod", time.Now())
	require.Equal(t, ProductStatusPublished, p.Status)

	require.NoError(t, p.Reject("mod-2", "  blurry photos ", time.Now()))

	assert.Equal(t, ModerationRejected, p.ModerationStatus)
	assert.Equal(t, ProductStatusDraft, p.Status)
	require.NotNil(t, p.RejectionReason)
	assert.Equal(t, "blurry photos", *p.RejectionReason)
	assert.Equal(t, "mod-2", *p.ModeratedBy)
	assert.True(t, p.ModerationConsistent())
}

func TestApproveRejectApprove_RoundTrip(t *testing.T) {
	p := pendingProduct()
	now := time.Now()

	p.Approve("m", now)
	assert.Equal(t, ProductStatusPublished, p.Status)

	require.NoError(t, p.Reject("m", "wrong category", now))
	assert.Equal(t, ProductStatusDraft, p.Status)

	p.Approve("m", now)
	assert.Equal(t, ProductStatusPublished, p.Status)
	assert.Nil(t, p.RejectionReason)
	assert.True(t, p.ModerationConsistent())
}

func TestModerationConsistent_DetectsBrokenRows(t *testing.T) {
	reason := "x"
	assert.False(t, (&Product{ModerationStatus: ModerationRejected}).ModerationConsistent())
	assert.False(t, (&Product{ModerationStatus: ModerationApproved, RejectionReason: &reason}).ModerationConsistent())
}

func TestIsPurchasable(t *testing.T) {
	p := &Product{Status: ProductStatusPublished, ModerationStatus: ModerationApproved}
	assert.True(t, p.IsPurchasable())
	p.ModerationStatus = ModerationPending
	assert.False(t, p.IsPurchasable())
	p.ModerationStatus = ModerationApproved
	p.Status = ProductStatusDraft
	assert.False(t, p.IsPurchasable())
}
