package services

import (
	"context"
	"testing"
	"time"

	"github.com/dmitrijs2005/addonkeeper/internal/common"
	"github.com/dmitrijs2005/addonkeeper/internal/logging"
	"github.com/dmitrijs2005/addonkeeper/internal/server/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type subjectRecorder struct{ added []string }

func (r *subjectRecorder) Add(subject string) { r.added = append(r.added, subject) }

func newSessionService(t *testing.T) (*SessionService, *store, *subjectRecorder) {
	t.Helper()
	s := newStore()
	subjects := &subjectRecorder{}
	svc := NewSessionService(nil, &fakeRepoManager{s}, newTestVault(), subjects, "jwt-secret", time.Hour, logging.Nop{})
	return svc, s, subjects
}

func TestRegister(t *testing.T) {
	svc, s, subjects := newSessionService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "  Operator@Example.com ", "hunter2")
	require.NoError(t, err)
	assert.Equal(t, "operator@example.com", acc.Email)
	assert.NotEmpty(t, acc.Verifier)
	assert.Equal(t, []string{acc.ID}, subjects.added)
	assert.Len(t, s.accounts, 1)

	_, err = svc.Register(ctx, "operator@example.com", "other")
	assert.ErrorIs(t, err, common.ErrAlreadyExists)

	_, err = svc.Register(ctx, "", "pw")
	assert.ErrorIs(t, err, common.ErrInvalidArgument)
}

func TestLoginLogout(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()

	acc, err := svc.Register(ctx, "op@example.com", "hunter2")
	require.NoError(t, err)

	token, err := svc.Login(ctx, "OP@example.com", "hunter2")
	require.NoError(t, err)
	id, err := auth.GetAccountIDFromToken(token, []byte("jwt-secret"))
	require.NoError(t, err)
	assert.Equal(t, acc.ID, id)
	assert.True(t, svc.Active(acc.ID))

	svc.Logout(ctx, acc.ID)
	assert.False(t, svc.Active(acc.ID))
}

func TestLogin_Rejected(t *testing.T) {
	svc, _, _ := newSessionService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, "op@example.com", "hunter2")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "op@example.com", "wrong")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)

	_, err = svc.Login(ctx, "nobody@example.com", "hunter2")
	assert.ErrorIs(t, err, common.ErrorUnauthorized)
}
