package auth

import (
	"context"
	"testing"

	"baklava-be/internal/apperror"

	"github.com/stretchr/testify/assert"
)

func TestContext(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		ac := Context{UserID: 7, Email: "shop@example.com", Role: RoleUser, Approval: ApprovalApproved}
		ctx := WithContext(context.Background(), ac)

		assert.Equal(t, ac, FromContext(ctx))
		assert.Equal(t, Anonymous, FromContext(context.Background()))
	})

	t.Run("Approval", func(t *testing.T) {
		assert.True(t, Context{UserID: 1, Role: RoleUser, Approval: ApprovalApproved}.IsApproved())
		assert.False(t, Context{UserID: 1, Role: RoleUser, Approval: ApprovalPending}.IsApproved())
		assert.False(t, Context{UserID: 1, Role: RoleUser, Approval: ApprovalRequestDocs}.IsApproved())
		assert.True(t, Context{UserID: 1, Role: RoleAdmin}.IsApproved())
		assert.False(t, Anonymous.IsApproved())
	})
}

func TestRequire(t *testing.T) {
	buyer := Context{UserID: 2, Role: RoleUser, Approval: ApprovalPending}
	admin := Context{UserID: 1, Role: RoleAdmin, Approval: ApprovalApproved}

	assert.True(t, apperror.Is(RequireUser(Anonymous), apperror.KindUnauthenticated))
	assert.NoError(t, RequireUser(buyer))

	assert.True(t, apperror.Is(RequireAdmin(buyer), apperror.KindForbidden))
	assert.True(t, apperror.Is(RequireAdmin(Anonymous), apperror.KindUnauthenticated))
	assert.NoError(t, RequireAdmin(admin))

	assert.ErrorIs(t, RequireApproved(buyer), ErrAccountNotReady)
	assert.NoError(t, RequireApproved(admin))
}

func TestApprovalStatusValid(t *testing.T) {
	assert.True(t, ApprovalRequestDocs.Valid())
	assert.False(t, ApprovalStatus("banned").Valid())
}
