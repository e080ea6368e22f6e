package suppliers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestIndexer(t *testing.T) (*RedisSearchIndexer, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisSearchIndexer(client), mr
}

func TestRedisSearchIndexerRoundTrip(t *testing.T) {
	indexer, mr := newTestIndexer(t)
	ctx := context.Background()

	doc := SupplierDocument{
		ID:            uuid.New(),
		TenantID:      uuid.New(),
		DisplayName:   "Acme Trading Ltd",
		LegalName:     "Acme Trading Ltd",
		CompanyNumber: "01234567",
		CreatedAt:     time.Now(),
	}
	require.NoError(t, indexer.IndexSupplier(ctx, doc))

	got := mr.HGet("search:supplier:"+doc.ID.String(), "display_name")
	require.Equal(t, "Acme Trading Ltd", got)

	members, err := mr.SMembers("search:tenant:" + doc.TenantID.String())
	require.NoError(t, err)
	require.Equal(t, []string{doc.ID.String()}, members)

	require.NoError(t, indexer.RemoveSupplier(ctx, doc.TenantID, doc.ID))
	require.False(t, mr.Exists("search:supplier:"+doc.ID.String()))
	members, err = mr.SMembers("search:tenant:" + doc.TenantID.String())
	require.NoError(t, err)
	require.Empty(t, members)
}
