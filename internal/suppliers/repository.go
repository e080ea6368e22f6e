package suppliers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/singleflight"

	"github.com/vendora/vendora/internal/platform/db"
)

// Unique constraints the create path branches on.
const (
	ConstraintTenantSlug          = "suppliers_tenant_id_slug_key"
	ConstraintTenantCompanyNumber = "suppliers_tenant_id_company_number_key"
	ConstraintGlobalCompanyNumber = "global_suppliers_company_number_key"
)

// ListFilter narrows supplier listings.
type ListFilter struct {
	Search string
	Page   int
	Limit  int
}

// Repository is the persistence boundary of the ingestion service.
type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	ListActiveCandidates(ctx context.Context, tenantID uuid.UUID) ([]Candidate, error)
	GetSupplier(ctx context.Context, tenantID, id uuid.UUID) (Supplier, error)
	ListSuppliers(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Supplier, int, error)
	AttributeHashes(ctx context.Context, supplierID uuid.UUID) (map[string]uuid.UUID, error)
	LinkGlobalSupplier(ctx context.Context, supplierID, globalID uuid.UUID) error
	InsertMatchReview(ctx context.Context, review MatchReview) error
	SoftDeleteSupplier(ctx context.Context, tenantID, id uuid.UUID) error
}

// TxRepository exposes the writes that must share one transaction.
type TxRepository interface {
	ListSlugs(ctx context.Context, tenantID uuid.UUID, prefix string) ([]string, error)
	InsertSupplier(ctx context.Context, sup Supplier) error
	UpsertDataSource(ctx context.Context, ds SupplierDataSource) error
	InsertAttribute(ctx context.Context, attr SupplierAttribute) error
	BumpAttribute(ctx context.Context, id uuid.UUID, increment int) error
}

// GlobalRepository is the cross-tenant canonical registry boundary.
type GlobalRepository interface {
	FindGlobalByCompanyNumber(ctx context.Context, companyNumber string) (*GlobalSupplier, error)
	FindGlobalsByVAT(ctx context.Context, vatNumber string) ([]GlobalSupplier, error)
	FindGlobalByDomain(ctx context.Context, domain string) (*GlobalSupplier, error)
	ListGlobalCandidates(ctx context.Context, offset, limit int) ([]GlobalSupplier, error)
	GetGlobalSupplier(ctx context.Context, id uuid.UUID) (GlobalSupplier, error)
	InsertGlobalSupplier(ctx context.Context, g GlobalSupplier) error
	UpdateGlobalLogo(ctx context.Context, id uuid.UUID, status LogoStatus, logoURL string, attempts int) error
}

// PGRepository provides PostgreSQL backed persistence for suppliers and the
// global registry. Query results map onto typed row structs; the pgx row
// shape never leaks past this boundary.
type PGRepository struct {
	pool       *pgxpool.Pool
	candidates singleflight.Group
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps callback in a repeatable-read transaction. Driver constraint
// errors are translated to typed conflicts on the way out.
func (r *PGRepository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return err
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback(ctx)
		return db.TranslateError(err)
	}
	return db.TranslateError(tx.Commit(ctx))
}

const supplierColumns = `id, tenant_id, COALESCE(company_number, ''), COALESCE(vat_number, ''),
	legal_name, display_name, slug, status, global_supplier_id, created_at, updated_at, deleted_at`

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.TenantID, &s.CompanyNumber, &s.VATNumber,
		&s.LegalName, &s.DisplayName, &s.Slug, &s.Status, &s.GlobalSupplierID,
		&s.CreatedAt, &s.UpdatedAt, &s.DeletedAt)
	return s, err
}

// ListActiveCandidates loads every active supplier of the tenant together
// with its active attributes. Concurrent loads for the same tenant collapse
// into one round trip.
func (r *PGRepository) ListActiveCandidates(ctx context.Context, tenantID uuid.UUID) ([]Candidate, error) {
	result, err, _ := r.candidates.Do(tenantID.String(), func() (any, error) {
		// Detached from the first caller's context so its cancellation does
		// not fail every collapsed waiter.
		return r.loadCandidates(context.WithoutCancel(ctx), tenantID)
	})
	if err != nil {
		return nil, err
	}
	return result.([]Candidate), nil
}

func (r *PGRepository) loadCandidates(ctx context.Context, tenantID uuid.UUID) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE tenant_id = $1 AND status = 'active'`,
		tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var candidates []Candidate
	index := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		index[s.ID] = len(candidates)
		ids = append(ids, s.ID)
		candidates = append(candidates, Candidate{Supplier: s})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return candidates, nil
	}

	attrRows, err := r.pool.Query(ctx,
		`SELECT id, supplier_id, attribute_type, value, value_hash, confidence, seen_count,
			is_primary, source_type, COALESCE(source_id, ''), active, created_at, updated_at
		 FROM supplier_attributes WHERE supplier_id = ANY($1) AND active`,
		ids)
	if err != nil {
		return nil, err
	}
	defer attrRows.Close()

	for attrRows.Next() {
		var a SupplierAttribute
		if err := attrRows.Scan(&a.ID, &a.SupplierID, &a.Type, &a.Value, &a.Hash,
			&a.Confidence, &a.SeenCount, &a.IsPrimary, &a.SourceType, &a.SourceID,
			&a.Active, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		if pos, ok := index[a.SupplierID]; ok {
			candidates[pos].Attributes = append(candidates[pos].Attributes, a)
		}
	}
	return candidates, attrRows.Err()
}

func (r *PGRepository) GetSupplier(ctx context.Context, tenantID, id uuid.UUID) (Supplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+supplierColumns+` FROM suppliers WHERE tenant_id = $1 AND id = $2`,
		tenantID, id)
	s, err := scanSupplier(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, ErrNotFound
	}
	return s, err
}

func (r *PGRepository) ListSuppliers(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Supplier, int, error) {
	query := `SELECT ` + supplierColumns + ` FROM suppliers WHERE tenant_id = $1 AND status = 'active'`
	countQuery := `SELECT COUNT(*) FROM suppliers WHERE tenant_id = $1 AND status = 'active'`
	args := []any{tenantID}
	countArgs := []any{tenantID}
	argCount := 1

	if filter.Search != "" {
		argCount++
		clause := ` AND (legal_name ILIKE $` + strconv.Itoa(argCount) +
			` OR display_name ILIKE $` + strconv.Itoa(argCount) +
			` OR slug ILIKE $` + strconv.Itoa(argCount) + `)`
		query += clause
		countQuery += clause
		args = append(args, "%"+filter.Search+"%")
		countArgs = append(countArgs, "%"+filter.Search+"%")
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, countArgs...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query += ` ORDER BY display_name ASC`
	if filter.Limit > 0 {
		argCount++
		query += ` LIMIT $` + strconv.Itoa(argCount)
		args = append(args, filter.Limit)

		argCount++
		query += ` OFFSET $` + strconv.Itoa(argCount)
		offset := (filter.Page - 1) * filter.Limit
		if offset < 0 {
			offset = 0
		}
		args = append(args, offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, s)
	}
	return out, total, rows.Err()
}

func (r *PGRepository) AttributeHashes(ctx context.Context, supplierID uuid.UUID) (map[string]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT value_hash, id FROM supplier_attributes WHERE supplier_id = $1 AND active`,
		supplierID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]uuid.UUID)
	for rows.Next() {
		var hash string
		var id uuid.UUID
		if err := rows.Scan(&hash, &id); err != nil {
			return nil, err
		}
		out[hash] = id
	}
	return out, rows.Err()
}

func (r *PGRepository) LinkGlobalSupplier(ctx context.Context, supplierID, globalID uuid.UUID) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE suppliers SET global_supplier_id = $1, updated_at = $2 WHERE id = $3`,
		globalID, time.Now(), supplierID)
	return err
}

func (r *PGRepository) InsertMatchReview(ctx context.Context, review MatchReview) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO supplier_match_reviews (id, tenant_id, supplier_id, source_type, source_id, name, confidence, match_type, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		review.ID, review.TenantID, review.SupplierID, review.SourceType, review.SourceID,
		review.Name, review.Confidence, review.MatchType, review.CreatedAt)
	return err
}

func (r *PGRepository) SoftDeleteSupplier(ctx context.Context, tenantID, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE suppliers SET status = 'deleted', deleted_at = $1, updated_at = $1
		 WHERE tenant_id = $2 AND id = $3 AND status = 'active'`,
		time.Now(), tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Transactional writes.

func (t *txRepo) ListSlugs(ctx context.Context, tenantID uuid.UUID, prefix string) ([]string, error) {
	rows, err := t.tx.Query(ctx,
		`SELECT slug FROM suppliers WHERE tenant_id = $1 AND slug LIKE $2 || '%'`,
		tenantID, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

func (t *txRepo) InsertSupplier(ctx context.Context, sup Supplier) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO suppliers (id, tenant_id, company_number, vat_number, legal_name, display_name, slug, status, global_supplier_id, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11)`,
		sup.ID, sup.TenantID, sup.CompanyNumber, sup.VATNumber, sup.LegalName,
		sup.DisplayName, sup.Slug, sup.Status, sup.GlobalSupplierID, sup.CreatedAt, sup.UpdatedAt)
	return err
}

func (t *txRepo) UpsertDataSource(ctx context.Context, ds SupplierDataSource) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO supplier_data_sources (supplier_id, source_type, source_id, occurrence_count, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, 1, $4, $4)
		 ON CONFLICT (supplier_id, source_type, source_id)
		 DO UPDATE SET occurrence_count = supplier_data_sources.occurrence_count + 1, last_seen_at = EXCLUDED.last_seen_at`,
		ds.SupplierID, ds.SourceType, ds.SourceID, time.Now())
	return err
}

// InsertAttribute is a content-hash upsert: concurrent delivery of the same
// source document lands on the unique (supplier_id, attribute_type,
// value_hash) index and counts as a repeat confirmation instead of erroring.
func (t *txRepo) InsertAttribute(ctx context.Context, attr SupplierAttribute) error {
	_, err := t.tx.Exec(ctx,
		`INSERT INTO supplier_attributes (id, supplier_id, attribute_type, value, value_hash, confidence, seen_count, is_primary, source_type, source_id, active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (supplier_id, attribute_type, value_hash)
		 DO UPDATE SET seen_count = supplier_attributes.seen_count + 1,
			confidence = LEAST(supplier_attributes.confidence + $14, 100),
			updated_at = EXCLUDED.updated_at`,
		attr.ID, attr.SupplierID, attr.Type, attr.Value, attr.Hash, attr.Confidence,
		attr.SeenCount, attr.IsPrimary, attr.SourceType, attr.SourceID, attr.Active,
		attr.CreatedAt, attr.UpdatedAt, AttributeRepeatIncrement)
	return err
}

// BumpAttribute records a repeat confirmation: seen-count up, confidence up
// by the increment capped at 100, stored value untouched.
func (t *txRepo) BumpAttribute(ctx context.Context, id uuid.UUID, increment int) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE supplier_attributes
		 SET seen_count = seen_count + 1, confidence = LEAST(confidence + $1, 100), updated_at = $2
		 WHERE id = $3`,
		increment, time.Now(), id)
	return err
}

// Global registry queries.

const globalColumns = `id, COALESCE(company_number, ''), COALESCE(vat_number, ''), canonical_name,
	COALESCE(primary_domain, ''), COALESCE(logo_url, ''), logo_status, logo_attempts, logo_fetched_at, created_at, updated_at`

func scanGlobal(row pgx.Row) (GlobalSupplier, error) {
	var g GlobalSupplier
	err := row.Scan(&g.ID, &g.CompanyNumber, &g.VATNumber, &g.CanonicalName,
		&g.PrimaryDomain, &g.LogoURL, &g.LogoStatus, &g.LogoAttempts, &g.LogoFetchedAt,
		&g.CreatedAt, &g.UpdatedAt)
	return g, err
}

func (r *PGRepository) FindGlobalByCompanyNumber(ctx context.Context, companyNumber string) (*GlobalSupplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+globalColumns+` FROM global_suppliers WHERE company_number = $1`,
		companyNumber)
	g, err := scanGlobal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PGRepository) FindGlobalsByVAT(ctx context.Context, vatNumber string) ([]GlobalSupplier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+globalColumns+` FROM global_suppliers WHERE vat_number = $1`,
		vatNumber)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GlobalSupplier
	for rows.Next() {
		g, err := scanGlobal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PGRepository) FindGlobalByDomain(ctx context.Context, domain string) (*GlobalSupplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+globalColumns+` FROM global_suppliers WHERE primary_domain = $1`,
		domain)
	g, err := scanGlobal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (r *PGRepository) ListGlobalCandidates(ctx context.Context, offset, limit int) ([]GlobalSupplier, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+globalColumns+` FROM global_suppliers ORDER BY created_at DESC OFFSET $1 LIMIT $2`,
		offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []GlobalSupplier
	for rows.Next() {
		g, err := scanGlobal(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *PGRepository) GetGlobalSupplier(ctx context.Context, id uuid.UUID) (GlobalSupplier, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+globalColumns+` FROM global_suppliers WHERE id = $1`, id)
	g, err := scanGlobal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return GlobalSupplier{}, ErrNotFound
	}
	return g, err
}

func (r *PGRepository) InsertGlobalSupplier(ctx context.Context, g GlobalSupplier) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO global_suppliers (id, company_number, vat_number, canonical_name, primary_domain, logo_status, logo_attempts, created_at, updated_at)
		 VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), $4, NULLIF($5, ''), $6, $7, $8, $9)`,
		g.ID, g.CompanyNumber, g.VATNumber, g.CanonicalName, g.PrimaryDomain,
		g.LogoStatus, g.LogoAttempts, g.CreatedAt, g.UpdatedAt)
	if err != nil {
		return fmt.Errorf("suppliers: insert global supplier: %w", db.TranslateError(err))
	}
	return nil
}

func (r *PGRepository) UpdateGlobalLogo(ctx context.Context, id uuid.UUID, status LogoStatus, logoURL string, attempts int) error {
	now := time.Now()
	var fetchedAt *time.Time
	if status == LogoDone {
		fetchedAt = &now
	}
	_, err := r.pool.Exec(ctx,
		`UPDATE global_suppliers
		 SET logo_status = $1, logo_url = NULLIF($2, ''), logo_attempts = $3, logo_fetched_at = COALESCE($4, logo_fetched_at), updated_at = $5
		 WHERE id = $6`,
		status, logoURL, attempts, fetchedAt, now, id)
	return err
}
