package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/vendora/vendora/internal/suppliers"
)

const reindexPageSize = 200

// SearchReindexJob rebuilds the Redis search projection for one tenant,
// paging through the supplier table.
type SearchReindexJob struct {
	repo    suppliers.Repository
	indexer suppliers.SearchIndexer
	logger  *slog.Logger
}

// NewSearchReindexJob constructs the job handler.
func NewSearchReindexJob(repo suppliers.Repository, indexer suppliers.SearchIndexer, logger *slog.Logger) *SearchReindexJob {
	return &SearchReindexJob{repo: repo, indexer: indexer, logger: logger}
}

// Handle processes TaskSearchReindex tasks.
func (j *SearchReindexJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload SearchReindexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	indexed := 0
	for page := 1; ; page++ {
		batch, total, err := j.repo.ListSuppliers(ctx, payload.TenantID, suppliers.ListFilter{
			Page:  page,
			Limit: reindexPageSize,
		})
		if err != nil {
			return err
		}
		for _, sup := range batch {
			doc := suppliers.SupplierDocument{
				ID:            sup.ID,
				TenantID:      sup.TenantID,
				DisplayName:   sup.DisplayName,
				LegalName:     sup.LegalName,
				CompanyNumber: sup.CompanyNumber,
				VATNumber:     sup.VATNumber,
				CreatedAt:     sup.CreatedAt,
			}
			if err := j.indexer.IndexSupplier(ctx, doc); err != nil {
				return err
			}
			indexed++
		}
		if len(batch) < reindexPageSize || indexed >= total {
			break
		}
	}

	j.logger.Info("search reindex complete",
		slog.String("tenant_id", payload.TenantID.String()),
		slog.Int("indexed", indexed))
	return nil
}
