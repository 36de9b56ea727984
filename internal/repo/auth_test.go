package repo

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/edirooss/camrec/internal/domain/principal"
)

func newTestRepo(t *testing.T) (*PrincipalRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	log := zaptest.NewLogger(t)
	client := NewRedisClient(context.Background(), log, mr.Addr(), 0)
	t.Cleanup(func() { _ = client.Close() })
	return NewPrincipalRepository(log, client), mr
}

func TestPrincipalRepositoryRoundTrip(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	_, err := r.GetByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	require.NoError(t, r.Upsert(ctx, "tok-1", &principal.Principal{ID: "ops@example.com", Kind: principal.Admin}))
	raw, err := mr.Get("camrec:auth:bearer:tok-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"ops@example.com","kind":"admin"}`, raw)

	p, err := r.GetByToken(ctx, "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", p.ID)
	assert.Equal(t, principal.Admin, p.Kind)

	require.NoError(t, r.Revoke(ctx, "tok-1"))
	_, err = r.GetByToken(ctx, "tok-1")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)
}

func TestPrincipalRepositoryRejectsBadInput(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	assert.Error(t, r.Upsert(ctx, "", &principal.Principal{ID: "x"}))
	assert.Error(t, r.Upsert(ctx, "tok", nil))

	_, err := r.GetByToken(ctx, "")
	assert.ErrorIs(t, err, ErrPrincipalNotFound)

	require.NoError(t, mr.Set("camrec:auth:bearer:garbled", "{not json"))
	_, err = r.GetByToken(ctx, "garbled")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrPrincipalNotFound)
}

func TestPrincipalRepositoryRevokeAll(t *testing.T) {
	r, mr := newTestRepo(t)
	ctx := context.Background()

	for _, tok := range []string{"a", "b", "c"} {
		require.NoError(t, r.Upsert(ctx, tok, &principal.Principal{ID: tok + "@example.com", Kind: principal.Viewer}))
	}
	require.NoError(t, mr.Set("unrelated", "keep"))

	n, err := r.RevokeAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.True(t, mr.Exists("unrelated"))
}
