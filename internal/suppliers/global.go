package suppliers

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vendora/vendora/internal/platform/db"
)

// Global resolver decision bands.
const (
	globalLinkThreshold   = 90
	globalReviewThreshold = 60
	globalVATNameFloor    = 0.70
	globalFuzzyFloor      = 0.85
	globalDomainCap       = 90

	defaultFuzzyScanLimit = 1000
	fuzzyScanPageSize     = 200
)

// LogoScheduler dispatches logo-fetch work for newly created global
// suppliers. Failures are logged and swallowed by the caller.
type LogoScheduler interface {
	ScheduleLogoFetch(ctx context.Context, globalSupplierIDs []uuid.UUID) error
}

// GlobalResolver maintains the cross-tenant canonical company registry.
type GlobalResolver struct {
	repo           GlobalRepository
	logos          LogoScheduler
	logger         *slog.Logger
	fuzzyScanLimit int
}

// NewGlobalResolver constructs a resolver. A fuzzyScanLimit of zero falls
// back to the default 1000-row cap.
func NewGlobalResolver(repo GlobalRepository, logos LogoScheduler, logger *slog.Logger, fuzzyScanLimit int) *GlobalResolver {
	if fuzzyScanLimit <= 0 {
		fuzzyScanLimit = defaultFuzzyScanLimit
	}
	return &GlobalResolver{repo: repo, logos: logos, logger: logger, fuzzyScanLimit: fuzzyScanLimit}
}

// Resolve finds or lazily creates the global supplier for a tenant supplier.
// Returns nil when the supplier should stay unlinked: a medium-confidence
// match pending review, or an identifier-less supplier that cannot seed a
// new global row. Callers treat the whole operation as best-effort.
func (r *GlobalResolver) Resolve(ctx context.Context, sup Supplier, domains []string) (*GlobalSupplier, error) {
	match, confidence, err := r.findBest(ctx, sup, domains)
	if err != nil {
		return nil, err
	}

	if match != nil {
		if confidence >= globalLinkThreshold {
			return match, nil
		}
		if confidence >= globalReviewThreshold {
			r.logger.Info("global supplier match pending review",
				slog.String("supplier_id", sup.ID.String()),
				slog.String("global_supplier_id", match.ID.String()),
				slog.Int("confidence", confidence))
			return nil, nil
		}
	}

	g, err := r.create(ctx, sup, domains)
	if errors.Is(err, ErrMissingIdentifier) {
		r.logger.Debug("global supplier not created",
			slog.String("supplier_id", sup.ID.String()),
			slog.Any("reason", err))
		return nil, nil
	}
	return g, err
}

func (r *GlobalResolver) findBest(ctx context.Context, sup Supplier, domains []string) (*GlobalSupplier, int, error) {
	// 1. Company number is globally authoritative.
	if sup.CompanyNumber != "" {
		g, err := r.repo.FindGlobalByCompanyNumber(ctx, sup.CompanyNumber)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, 0, err
		}
		if g != nil {
			return g, 100, nil
		}
	}

	// 2. VAT numbers are shared across trading names, so each VAT hit must
	// also clear a name-similarity bar before it is trusted.
	if sup.VATNumber != "" {
		matches, err := r.repo.FindGlobalsByVAT(ctx, sup.VATNumber)
		if err != nil {
			return nil, 0, err
		}
		for i := range matches {
			if NameSimilarity(sup.LegalName, matches[i].CanonicalName) >= globalVATNameFloor {
				return &matches[i], 95, nil
			}
		}
	}

	// 3. Contact domains.
	for _, domain := range domains {
		if !IsCorporateDomain(domain) {
			continue
		}
		g, err := r.repo.FindGlobalByDomain(ctx, domain)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return nil, 0, err
		}
		if g != nil {
			confidence := int(NameSimilarity(sup.LegalName, g.CanonicalName) * 100)
			if confidence > globalDomainCap {
				confidence = globalDomainCap
			}
			return g, confidence, nil
		}
	}

	// 4. Identifier-less suppliers get one bounded fuzzy-name scan.
	if sup.CompanyNumber == "" && sup.VATNumber == "" {
		return r.fuzzyScan(ctx, sup)
	}
	return nil, 0, nil
}

// fuzzyScan pages through global candidates up to the configured cap and
// keeps the best trigram similarity at or above the acceptance floor.
func (r *GlobalResolver) fuzzyScan(ctx context.Context, sup Supplier) (*GlobalSupplier, int, error) {
	var best *GlobalSupplier
	bestSim := 0.0
	scanned := 0
	for offset := 0; scanned < r.fuzzyScanLimit; offset += fuzzyScanPageSize {
		pageSize := fuzzyScanPageSize
		if remaining := r.fuzzyScanLimit - scanned; remaining < pageSize {
			pageSize = remaining
		}
		page, err := r.repo.ListGlobalCandidates(ctx, offset, pageSize)
		if err != nil {
			return nil, 0, err
		}
		for i := range page {
			sim := TrigramSimilarity(sup.LegalName, page[i].CanonicalName)
			if sim > bestSim {
				bestSim = sim
				best = &page[i]
			}
		}
		scanned += len(page)
		if len(page) < pageSize {
			break
		}
	}
	if best == nil || bestSim < globalFuzzyFloor {
		return nil, 0, nil
	}
	return best, int(bestSim * 100), nil
}

// create inserts a new global supplier. At least one identifier is required;
// fuzzy-only suppliers never seed the registry.
func (r *GlobalResolver) create(ctx context.Context, sup Supplier, domains []string) (*GlobalSupplier, error) {
	if sup.CompanyNumber == "" && sup.VATNumber == "" {
		return nil, ErrMissingIdentifier
	}

	primaryDomain := ""
	for _, d := range domains {
		if IsCorporateDomain(d) {
			primaryDomain = d
			break
		}
	}

	now := time.Now()
	global := GlobalSupplier{
		ID:            uuid.New(),
		CompanyNumber: sup.CompanyNumber,
		VATNumber:     sup.VATNumber,
		CanonicalName: sup.LegalName,
		PrimaryDomain: primaryDomain,
		LogoStatus:    LogoPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := r.repo.InsertGlobalSupplier(ctx, global); err != nil {
		// Another tenant registered the same company concurrently; link to
		// the row that won the race instead of failing the side effect.
		if uv, ok := db.AsUniqueViolation(err); ok && uv.Constraint == ConstraintGlobalCompanyNumber {
			return r.repo.FindGlobalByCompanyNumber(ctx, sup.CompanyNumber)
		}
		return nil, err
	}

	if r.logos != nil && primaryDomain != "" {
		if err := r.logos.ScheduleLogoFetch(ctx, []uuid.UUID{global.ID}); err != nil {
			r.logger.Warn("schedule logo fetch",
				slog.String("global_supplier_id", global.ID.String()),
				slog.Any("error", err))
		}
	}
	return &global, nil
}
