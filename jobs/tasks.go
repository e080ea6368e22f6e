package jobs

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskLogoFetch enriches a global supplier with a logo from its
	// primary domain.
	TaskLogoFetch = "supplier:logo_fetch"
	// TaskSearchReindex rebuilds the search projection for a tenant.
	TaskSearchReindex = "supplier:search_reindex"
)

// LogoFetchPayload identifies the global supplier to enrich.
type LogoFetchPayload struct {
	GlobalSupplierID uuid.UUID `json:"globalSupplierId"`
}

// NewLogoFetchTask constructs a logo-fetch task. The retry budget caps
// total delivery attempts at three.
func NewLogoFetchTask(payload LogoFetchPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskLogoFetch, data, asynq.Queue(QueueDefault), asynq.MaxRetry(2)), nil
}

// SearchReindexPayload selects the tenant whose suppliers get reindexed.
type SearchReindexPayload struct {
	TenantID uuid.UUID `json:"tenantId"`
}

// NewSearchReindexTask constructs a search-reindex task.
func NewSearchReindexTask(payload SearchReindexPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskSearchReindex, data, asynq.Queue(QueueDefault)), nil
}
