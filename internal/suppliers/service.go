package suppliers

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vendora/vendora/internal/platform/db"
)

// ServiceConfig tunes the ingestion decision thresholds.
type ServiceConfig struct {
	AutoAcceptThreshold int
	CreateThreshold     int
	IgnoreFloor         int
	SlugRetryAttempts   int
}

func (c ServiceConfig) withDefaults() ServiceConfig {
	if c.AutoAcceptThreshold <= 0 {
		c.AutoAcceptThreshold = DefaultAutoAcceptThreshold
	}
	if c.CreateThreshold <= 0 {
		c.CreateThreshold = DefaultCreateThreshold
	}
	if c.IgnoreFloor <= 0 {
		c.IgnoreFloor = DefaultIgnoreFloor
	}
	if c.SlugRetryAttempts <= 0 {
		c.SlugRetryAttempts = 3
	}
	return c
}

// Service orchestrates one ingestion call:
// validate -> quality-check -> match -> create/update/skip, with attribute
// merge, provenance tracking and best-effort post-commit side effects.
type Service struct {
	repo     Repository
	global   *GlobalResolver
	search   SearchIndexer
	validate *validator.Validate
	logger   *slog.Logger
	cfg      ServiceConfig
}

// NewService constructs the ingestion service. global and search may be nil;
// the corresponding side effects are then skipped.
func NewService(repo Repository, global *GlobalResolver, search SearchIndexer, logger *slog.Logger, cfg ServiceConfig) *Service {
	if search == nil {
		search = NoopSearchIndexer{}
	}
	return &Service{
		repo:     repo,
		global:   global,
		search:   search,
		validate: validator.New(),
		logger:   logger,
		cfg:      cfg.withDefaults(),
	}
}

// Ingest resolves one observation to a supplier record. Expected business
// outcomes (skip, insufficient data, pending review) come back as values;
// only malformed input and genuine persistence failures return errors.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (IngestResult, error) {
	req.Sanitize()
	if err := ValidateStructure(s.validate, &req); err != nil {
		return IngestResult{}, err
	}
	tenantID, err := uuid.Parse(req.TenantID)
	if err != nil {
		return IngestResult{}, &StructuralValidationError{Violations: []FieldViolation{{Field: "tenantId", Reason: "must be a valid UUID"}}}
	}

	quality := CheckQuality(req.Data)
	if !quality.Valid {
		return IngestResult{
			Success:  false,
			Action:   ActionSkipped,
			Warnings: quality.Warnings,
			Error:    strings.Join(quality.Errors, "; "),
		}, nil
	}

	// Substitute the cleaned identifier values back before matching.
	req.Data.Identifiers.CompanyNumber = quality.Enhanced.CompanyNumber
	req.Data.Identifiers.VATNumber = quality.Enhanced.VATNumber

	in := MatchInput{
		Name:            req.Data.Name,
		CompanyNumber:   quality.Enhanced.CompanyNumber,
		VATNumber:       quality.Enhanced.VATNumber,
		Addresses:       req.Data.Addresses,
		Contacts:        req.Data.Contacts,
		BankAccounts:    req.Data.BankAccounts,
		FieldConfidence: req.Data.Confidence,
	}

	candidates, err := s.repo.ListActiveCandidates(ctx, tenantID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("suppliers: load candidates: %w", err)
	}
	match := BestMatch(in, candidates)

	switch {
	case match.Supplier != nil && match.Confidence >= s.cfg.AutoAcceptThreshold:
		return s.update(ctx, req, in, match, quality.Warnings)
	case match.Supplier == nil || match.Confidence <= s.cfg.IgnoreFloor:
		return s.createOrSkip(ctx, tenantID, req, in, quality)
	default:
		return s.skipForReview(ctx, tenantID, req, match, quality.Warnings), nil
	}
}

// update merges the observation into the matched supplier: provenance upsert
// plus hash-deduplicated attribute merge, in one transaction.
func (s *Service) update(ctx context.Context, req IngestRequest, in MatchInput, match MatchResult, warnings []string) (IngestResult, error) {
	sup := *match.Supplier

	existing, err := s.repo.AttributeHashes(ctx, sup.ID)
	if err != nil {
		return IngestResult{}, fmt.Errorf("suppliers: load attribute hashes: %w", err)
	}
	attrs, err := buildAttributes(sup.ID, req)
	if err != nil {
		return IngestResult{}, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpsertDataSource(ctx, SupplierDataSource{
			SupplierID: sup.ID,
			SourceType: req.Source,
			SourceID:   req.SourceID,
		}); err != nil {
			return err
		}
		for _, attr := range attrs {
			if id, seen := existing[attr.Hash]; seen {
				if err := tx.BumpAttribute(ctx, id, AttributeRepeatIncrement); err != nil {
					return err
				}
				continue
			}
			if err := tx.InsertAttribute(ctx, attr); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return IngestResult{}, fmt.Errorf("suppliers: merge attributes: %w", err)
	}

	result := IngestResult{
		Success:    true,
		Action:     ActionUpdated,
		SupplierID: &sup.ID,
		MatchType:  match.Type,
		Confidence: match.Confidence,
		Warnings:   warnings,
	}
	result.GlobalSupplierID = sup.GlobalSupplierID

	s.runSideEffects(ctx, &sup, in, &result)
	return result, nil
}

// createOrSkip runs the creation-score gate and, when it passes, the
// slug-retried create transaction.
func (s *Service) createOrSkip(ctx context.Context, tenantID uuid.UUID, req IngestRequest, in MatchInput, quality QualityReport) (IngestResult, error) {
	score := CreationScore(in)
	if score < s.cfg.CreateThreshold {
		return IngestResult{
			Success:  false,
			Action:   ActionSkipped,
			Warnings: quality.Warnings,
			Error:    "insufficient data to create supplier",
		}, nil
	}

	now := time.Now()
	sup := Supplier{
		ID:            uuid.New(),
		TenantID:      tenantID,
		CompanyNumber: in.CompanyNumber,
		VATNumber:     in.VATNumber,
		LegalName:     req.Data.Name,
		DisplayName:   req.Data.Name,
		Status:        StatusActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	attrs, err := buildAttributes(sup.ID, req)
	if err != nil {
		return IngestResult{}, err
	}

	base := BaseSlug(req.Data.Name)
	var lastErr error
	created := false
	for attempt := 0; attempt < s.cfg.SlugRetryAttempts; attempt++ {
		err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
			// Re-read inside every attempt so a retry picks a fresh,
			// higher suffix.
			slugs, err := tx.ListSlugs(ctx, tenantID, base)
			if err != nil {
				return err
			}
			sup.Slug = NextSlug(base, slugs)
			if err := tx.InsertSupplier(ctx, sup); err != nil {
				return err
			}
			if err := tx.UpsertDataSource(ctx, SupplierDataSource{
				SupplierID: sup.ID,
				SourceType: req.Source,
				SourceID:   req.SourceID,
			}); err != nil {
				return err
			}
			for _, attr := range attrs {
				if err := tx.InsertAttribute(ctx, attr); err != nil {
					return err
				}
			}
			return nil
		})
		if err == nil {
			created = true
			break
		}
		uv, isUnique := db.AsUniqueViolation(err)
		if !isUnique {
			return IngestResult{}, fmt.Errorf("suppliers: create: %w", err)
		}
		if uv.Constraint != ConstraintTenantSlug {
			// Only slug collisions are transient; anything else is a real
			// duplicate surfaced to the caller.
			return IngestResult{}, translateUniqueViolation(uv, sup)
		}
		lastErr = err
		if attempt < s.cfg.SlugRetryAttempts-1 {
			sleepJitter(ctx)
		}
	}
	if !created {
		return IngestResult{}, fmt.Errorf("%w: %v", ErrSlugExhausted, lastErr)
	}

	result := IngestResult{
		Success:    true,
		Action:     ActionCreated,
		SupplierID: &sup.ID,
		MatchType:  MatchNone,
		Confidence: quality.Confidence,
		Warnings:   quality.Warnings,
	}
	s.runSideEffects(ctx, &sup, in, &result)
	return result, nil
}

// skipForReview persists a review candidate for a medium-confidence match
// and reports a successful skip.
func (s *Service) skipForReview(ctx context.Context, tenantID uuid.UUID, req IngestRequest, match MatchResult, warnings []string) IngestResult {
	review := MatchReview{
		ID:         uuid.New(),
		TenantID:   tenantID,
		SupplierID: match.Supplier.ID,
		SourceType: req.Source,
		SourceID:   req.SourceID,
		Name:       req.Data.Name,
		Confidence: match.Confidence,
		MatchType:  match.Type,
		CreatedAt:  time.Now(),
	}
	if err := s.repo.InsertMatchReview(ctx, review); err != nil {
		s.logger.Warn("persist match review",
			slog.String("supplier_id", match.Supplier.ID.String()),
			slog.Any("error", err))
	}
	return IngestResult{
		Success:    true,
		Action:     ActionSkipped,
		SupplierID: &match.Supplier.ID,
		MatchType:  match.Type,
		Confidence: match.Confidence,
		Warnings:   warnings,
	}
}

// runSideEffects dispatches the post-commit collaborator calls: global
// linking, search indexing. Each runs in its own error boundary; a failure
// is logged and never affects the committed ingestion.
func (s *Service) runSideEffects(ctx context.Context, sup *Supplier, in MatchInput, result *IngestResult) {
	var g errgroup.Group

	if s.global != nil && sup.GlobalSupplierID == nil {
		g.Go(func() error {
			global, err := s.global.Resolve(ctx, *sup, contactDomains(in.Contacts))
			if err != nil {
				s.logger.Warn("global supplier resolution",
					slog.String("supplier_id", sup.ID.String()),
					slog.Any("error", err))
				return nil
			}
			if global == nil {
				return nil
			}
			if err := s.repo.LinkGlobalSupplier(ctx, sup.ID, global.ID); err != nil {
				s.logger.Warn("link global supplier",
					slog.String("supplier_id", sup.ID.String()),
					slog.Any("error", err))
				return nil
			}
			result.GlobalSupplierID = &global.ID
			return nil
		})
	}

	g.Go(func() error {
		doc := SupplierDocument{
			ID:            sup.ID,
			TenantID:      sup.TenantID,
			DisplayName:   sup.DisplayName,
			LegalName:     sup.LegalName,
			CompanyNumber: sup.CompanyNumber,
			VATNumber:     sup.VATNumber,
			CreatedAt:     sup.CreatedAt,
		}
		if err := s.search.IndexSupplier(ctx, doc); err != nil {
			s.logger.Warn("index supplier",
				slog.String("supplier_id", sup.ID.String()),
				slog.Any("error", err))
		}
		return nil
	})

	_ = g.Wait()
}

// Get returns one supplier scoped to the tenant.
func (s *Service) Get(ctx context.Context, tenantID, id uuid.UUID) (Supplier, error) {
	return s.repo.GetSupplier(ctx, tenantID, id)
}

// List returns active suppliers for the tenant.
func (s *Service) List(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Supplier, int, error) {
	return s.repo.ListSuppliers(ctx, tenantID, filter)
}

// Delete soft-deletes a supplier and removes its search projection.
func (s *Service) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	if err := s.repo.SoftDeleteSupplier(ctx, tenantID, id); err != nil {
		return err
	}
	if err := s.search.RemoveSupplier(ctx, tenantID, id); err != nil {
		s.logger.Warn("remove supplier from search index",
			slog.String("supplier_id", id.String()),
			slog.Any("error", err))
	}
	return nil
}

func translateUniqueViolation(uv *db.UniqueViolation, sup Supplier) error {
	if uv.Constraint == ConstraintTenantCompanyNumber {
		return &DuplicateIdentifierError{Field: "company number", Value: sup.CompanyNumber}
	}
	return uv
}

// sleepJitter waits 50-100ms between slug retry attempts.
func sleepJitter(ctx context.Context) {
	delay := time.Duration(50+rand.IntN(51)) * time.Millisecond
	select {
	case <-ctx.Done():
	case <-time.After(delay):
	}
}

func contactDomains(contacts []ContactInput) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range contacts {
		if c.Type != AttributeEmail && c.Type != AttributeWebsite {
			continue
		}
		d := ExtractDomain(c.Value)
		if d == "" {
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out
}

// buildAttributes converts the observed addresses, contacts and bank
// accounts into attribute rows with normalized payloads and content hashes.
func buildAttributes(supplierID uuid.UUID, req IngestRequest) ([]SupplierAttribute, error) {
	now := time.Now()
	var out []SupplierAttribute
	seen := make(map[string]struct{})

	add := func(t AttributeType, payload any, isPrimary bool) error {
		value, hash, err := NormalizePayload(payload)
		if err != nil {
			return err
		}
		// A request may repeat the same observation; one row is enough.
		if _, dup := seen[string(t)+":"+hash]; dup {
			return nil
		}
		seen[string(t)+":"+hash] = struct{}{}
		out = append(out, SupplierAttribute{
			ID:         uuid.New(),
			SupplierID: supplierID,
			Type:       t,
			Value:      value,
			Hash:       hash,
			Confidence: AttributeBaseConfidence,
			SeenCount:  1,
			IsPrimary:  isPrimary,
			SourceType: req.Source,
			SourceID:   req.SourceID,
			Active:     true,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
		return nil
	}

	for _, a := range req.Data.Addresses {
		if err := add(AttributeAddress, a, false); err != nil {
			return nil, err
		}
	}
	for _, c := range req.Data.Contacts {
		value := c.Value
		switch c.Type {
		case AttributePhone:
			value = digitsOnly(c.Value)
		case AttributeWebsite:
			if site, ok := normalizeWebsite(c.Value); ok {
				value = site
			}
		}
		if err := add(c.Type, map[string]any{"value": value}, c.IsPrimary); err != nil {
			return nil, err
		}
	}
	for _, b := range req.Data.BankAccounts {
		if err := add(AttributeBankAccount, b, false); err != nil {
			return nil, err
		}
	}
	return out, nil
}
