package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hibiken/asynq"

	"github.com/vendora/vendora/internal/suppliers"
)

const maxLogoAttempts = 3

// LogoFetchJob resolves a logo for a global supplier by probing its
// primary domain. Handlers receive their dependencies at construction so
// the worker binary can wire them once.
type LogoFetchJob struct {
	repo   suppliers.GlobalRepository
	client *http.Client
	logger *slog.Logger
}

// NewLogoFetchJob constructs the job handler.
func NewLogoFetchJob(repo suppliers.GlobalRepository, client *http.Client, logger *slog.Logger) *LogoFetchJob {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LogoFetchJob{repo: repo, client: client, logger: logger}
}

// Handle processes TaskLogoFetch tasks. Delivery attempts beyond the
// retry budget mark the record failed instead of erroring forever.
func (j *LogoFetchJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload LogoFetchPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	global, err := j.repo.GetGlobalSupplier(ctx, payload.GlobalSupplierID)
	if err != nil {
		if errors.Is(err, suppliers.ErrNotFound) {
			j.logger.Warn("logo fetch target missing", slog.String("global_supplier_id", payload.GlobalSupplierID.String()))
			return asynq.SkipRetry
		}
		return err
	}
	if global.LogoStatus == suppliers.LogoDone {
		return nil
	}
	if global.PrimaryDomain == "" {
		return j.fail(ctx, &global, asynq.SkipRetry)
	}

	attempts := global.LogoAttempts + 1
	if err := j.repo.UpdateGlobalLogo(ctx, global.ID, suppliers.LogoFetching, "", attempts); err != nil {
		return err
	}
	global.LogoAttempts = attempts

	logoURL, fetchErr := j.probe(ctx, global.PrimaryDomain)
	if fetchErr != nil {
		j.logger.Warn("logo fetch failed",
			slog.String("domain", global.PrimaryDomain),
			slog.Int("attempt", attempts),
			slog.Any("error", fetchErr))
		if attempts >= maxLogoAttempts {
			return j.fail(ctx, &global, asynq.SkipRetry)
		}
		return fetchErr
	}

	if err := j.repo.UpdateGlobalLogo(ctx, global.ID, suppliers.LogoDone, logoURL, attempts); err != nil {
		return err
	}
	j.logger.Info("logo fetched",
		slog.String("global_supplier_id", global.ID.String()),
		slog.String("logo_url", logoURL))
	return nil
}

// probe checks well-known logo locations on the domain and returns the
// first URL answering with an image.
func (j *LogoFetchJob) probe(ctx context.Context, domain string) (string, error) {
	candidates := []string{
		"https://" + domain + "/favicon.ico",
		"https://" + domain + "/apple-touch-icon.png",
	}
	var lastErr error
	for _, candidate := range candidates {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, candidate, nil)
		if err != nil {
			lastErr = err
			continue
		}
		resp, err := j.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return candidate, nil
		}
		lastErr = fmt.Errorf("logo probe %s: status %d", candidate, resp.StatusCode)
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("logo probe: no candidates for %s", domain)
	}
	return "", lastErr
}

func (j *LogoFetchJob) fail(ctx context.Context, global *suppliers.GlobalSupplier, terminal error) error {
	if err := j.repo.UpdateGlobalLogo(ctx, global.ID, suppliers.LogoFailed, "", global.LogoAttempts); err != nil {
		return err
	}
	return terminal
}
