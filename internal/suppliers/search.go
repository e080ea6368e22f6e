package suppliers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SupplierDocument is the denormalized shape handed to the search
// collaborator. Indexing is fire-and-forget; failures are logged and
// swallowed by the caller.
type SupplierDocument struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	DisplayName   string
	LegalName     string
	CompanyNumber string
	VATNumber     string
	CreatedAt     time.Time
}

// SearchIndexer pushes supplier documents to the search collaborator.
type SearchIndexer interface {
	IndexSupplier(ctx context.Context, doc SupplierDocument) error
	RemoveSupplier(ctx context.Context, tenantID, id uuid.UUID) error
}

// RedisSearchIndexer maintains a per-tenant search projection in Redis:
// one hash per supplier plus a tenant membership set.
type RedisSearchIndexer struct {
	client *redis.Client
}

// NewRedisSearchIndexer constructs the indexer.
func NewRedisSearchIndexer(client *redis.Client) *RedisSearchIndexer {
	return &RedisSearchIndexer{client: client}
}

func supplierDocKey(id uuid.UUID) string {
	return "search:supplier:" + id.String()
}

func tenantIndexKey(tenantID uuid.UUID) string {
	return "search:tenant:" + tenantID.String()
}

func (s *RedisSearchIndexer) IndexSupplier(ctx context.Context, doc SupplierDocument) error {
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, supplierDocKey(doc.ID), map[string]any{
		"tenant_id":      doc.TenantID.String(),
		"display_name":   doc.DisplayName,
		"legal_name":     doc.LegalName,
		"company_number": doc.CompanyNumber,
		"vat_number":     doc.VATNumber,
		"created_at":     doc.CreatedAt.UTC().Format(time.RFC3339),
	})
	pipe.SAdd(ctx, tenantIndexKey(doc.TenantID), doc.ID.String())
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisSearchIndexer) RemoveSupplier(ctx context.Context, tenantID, id uuid.UUID) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, supplierDocKey(id))
	pipe.SRem(ctx, tenantIndexKey(tenantID), id.String())
	_, err := pipe.Exec(ctx)
	return err
}

// NoopSearchIndexer satisfies SearchIndexer when search is disabled.
type NoopSearchIndexer struct{}

func (NoopSearchIndexer) IndexSupplier(ctx context.Context, doc SupplierDocument) error {
	return nil
}

func (NoopSearchIndexer) RemoveSupplier(ctx context.Context, tenantID, id uuid.UUID) error {
	return nil
}
