package suppliers

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vendora/vendora/internal/platform/db"
)

type memorySupplierRepo struct {
	suppliers   map[uuid.UUID]Supplier
	attributes  map[uuid.UUID][]SupplierAttribute
	dataSources map[string]*SupplierDataSource
	reviews     []MatchReview

	// failSlugInserts makes the next N InsertSupplier calls fail with a slug
	// unique violation, simulating a concurrent creator.
	failSlugInserts int

	// staleAttributeHashes makes AttributeHashes return an empty snapshot,
	// simulating a concurrent writer that committed after the read.
	staleAttributeHashes bool
}

type memorySupplierTx struct {
	repo *memorySupplierRepo
}

func newMemorySupplierRepo() *memorySupplierRepo {
	return &memorySupplierRepo{
		suppliers:   make(map[uuid.UUID]Supplier),
		attributes:  make(map[uuid.UUID][]SupplierAttribute),
		dataSources: make(map[string]*SupplierDataSource),
	}
}

func (r *memorySupplierRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memorySupplierTx{repo: r})
}

func (r *memorySupplierRepo) ListActiveCandidates(ctx context.Context, tenantID uuid.UUID) ([]Candidate, error) {
	var out []Candidate
	for _, sup := range r.suppliers {
		if sup.TenantID != tenantID || sup.Status != StatusActive {
			continue
		}
		out = append(out, Candidate{Supplier: sup, Attributes: r.attributes[sup.ID]})
	}
	return out, nil
}

func (r *memorySupplierRepo) GetSupplier(ctx context.Context, tenantID, id uuid.UUID) (Supplier, error) {
	sup, ok := r.suppliers[id]
	if !ok || sup.TenantID != tenantID || sup.Status != StatusActive {
		return Supplier{}, ErrNotFound
	}
	return sup, nil
}

func (r *memorySupplierRepo) ListSuppliers(ctx context.Context, tenantID uuid.UUID, filter ListFilter) ([]Supplier, int, error) {
	var out []Supplier
	for _, sup := range r.suppliers {
		if sup.TenantID == tenantID && sup.Status == StatusActive {
			out = append(out, sup)
		}
	}
	return out, len(out), nil
}

func (r *memorySupplierRepo) AttributeHashes(ctx context.Context, supplierID uuid.UUID) (map[string]uuid.UUID, error) {
	out := make(map[string]uuid.UUID)
	if r.staleAttributeHashes {
		return out, nil
	}
	for _, attr := range r.attributes[supplierID] {
		out[attr.Hash] = attr.ID
	}
	return out, nil
}

func (r *memorySupplierRepo) LinkGlobalSupplier(ctx context.Context, supplierID, globalID uuid.UUID) error {
	sup, ok := r.suppliers[supplierID]
	if !ok {
		return ErrNotFound
	}
	sup.GlobalSupplierID = &globalID
	r.suppliers[supplierID] = sup
	return nil
}

func (r *memorySupplierRepo) InsertMatchReview(ctx context.Context, review MatchReview) error {
	r.reviews = append(r.reviews, review)
	return nil
}

func (r *memorySupplierRepo) SoftDeleteSupplier(ctx context.Context, tenantID, id uuid.UUID) error {
	sup, ok := r.suppliers[id]
	if !ok || sup.TenantID != tenantID {
		return ErrNotFound
	}
	sup.Status = StatusDeleted
	r.suppliers[id] = sup
	return nil
}

func (t *memorySupplierTx) ListSlugs(ctx context.Context, tenantID uuid.UUID, prefix string) ([]string, error) {
	var out []string
	for _, sup := range t.repo.suppliers {
		if sup.TenantID == tenantID {
			out = append(out, sup.Slug)
		}
	}
	return out, nil
}

func (t *memorySupplierTx) InsertSupplier(ctx context.Context, sup Supplier) error {
	if t.repo.failSlugInserts > 0 {
		t.repo.failSlugInserts--
		return &db.UniqueViolation{Constraint: ConstraintTenantSlug}
	}
	for _, existing := range t.repo.suppliers {
		if existing.TenantID != sup.TenantID {
			continue
		}
		if existing.Slug == sup.Slug {
			return &db.UniqueViolation{Constraint: ConstraintTenantSlug}
		}
		if sup.CompanyNumber != "" && existing.CompanyNumber == sup.CompanyNumber {
			return &db.UniqueViolation{Constraint: ConstraintTenantCompanyNumber}
		}
	}
	t.repo.suppliers[sup.ID] = sup
	return nil
}

func (t *memorySupplierTx) UpsertDataSource(ctx context.Context, ds SupplierDataSource) error {
	key := ds.SupplierID.String() + "/" + string(ds.SourceType) + "/" + ds.SourceID
	if existing, ok := t.repo.dataSources[key]; ok {
		existing.OccurrenceCount++
		return nil
	}
	ds.OccurrenceCount = 1
	t.repo.dataSources[key] = &ds
	return nil
}

// InsertAttribute mirrors the content-hash upsert of the real repository: a
// hash collision bumps the existing row instead of inserting a duplicate.
func (t *memorySupplierTx) InsertAttribute(ctx context.Context, attr SupplierAttribute) error {
	attrs := t.repo.attributes[attr.SupplierID]
	for i := range attrs {
		if attrs[i].Type == attr.Type && attrs[i].Hash == attr.Hash {
			attrs[i].SeenCount++
			attrs[i].Confidence += AttributeRepeatIncrement
			if attrs[i].Confidence > 100 {
				attrs[i].Confidence = 100
			}
			t.repo.attributes[attr.SupplierID] = attrs
			return nil
		}
	}
	t.repo.attributes[attr.SupplierID] = append(attrs, attr)
	return nil
}

func (t *memorySupplierTx) BumpAttribute(ctx context.Context, id uuid.UUID, increment int) error {
	for supID, attrs := range t.repo.attributes {
		for i := range attrs {
			if attrs[i].ID == id {
				attrs[i].SeenCount++
				attrs[i].Confidence += increment
				if attrs[i].Confidence > 100 {
					attrs[i].Confidence = 100
				}
				t.repo.attributes[supID] = attrs
				return nil
			}
		}
	}
	return ErrNotFound
}

type recordingIndexer struct {
	indexed []SupplierDocument
	removed []uuid.UUID
}

func (r *recordingIndexer) IndexSupplier(ctx context.Context, doc SupplierDocument) error {
	r.indexed = append(r.indexed, doc)
	return nil
}

func (r *recordingIndexer) RemoveSupplier(ctx context.Context, tenantID, id uuid.UUID) error {
	r.removed = append(r.removed, id)
	return nil
}

var testTenant = uuid.MustParse("11111111-1111-1111-1111-111111111111")

func newTestService(repo Repository) *Service {
	return NewService(repo, nil, NoopSearchIndexer{}, testLogger(), ServiceConfig{})
}

func ingestRequest(name string) IngestRequest {
	return IngestRequest{
		TenantID: testTenant.String(),
		Source:   SourceInvoice,
		SourceID: "inv-001",
		Data: IngestData{
			Name: name,
			Identifiers: Identifiers{
				CompanyNumber: "01234567",
				Country:       "GB",
			},
			Addresses: []AddressInput{
				{Line1: "1 Main St", City: "London", Country: "GB"},
			},
			Contacts: []ContactInput{
				{Type: AttributeEmail, Value: "billing@acme.com", IsPrimary: true},
			},
		},
	}
}

func TestIngestCreatesSupplier(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, ActionCreated, result.Action)
	require.NotNil(t, result.SupplierID)

	sup := repo.suppliers[*result.SupplierID]
	require.Equal(t, "acme-trading-ltd", sup.Slug)
	require.Equal(t, "01234567", sup.CompanyNumber)
	require.Equal(t, testTenant, sup.TenantID)

	require.Len(t, repo.attributes[sup.ID], 2) // address + email
	require.Len(t, repo.dataSources, 1)
}

func TestIngestStructuralValidation(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	req := ingestRequest("Acme Trading Ltd")
	req.TenantID = "not-a-uuid"
	req.Data.Contacts = append(req.Data.Contacts, ContactInput{Type: "fax", Value: "123"})

	_, err := svc.Ingest(context.Background(), req)
	var sve *StructuralValidationError
	require.ErrorAs(t, err, &sve)

	fields := make(map[string]bool)
	for _, v := range sve.Violations {
		fields[v.Field] = true
	}
	require.True(t, fields["tenantId"])
	require.True(t, fields["data.contacts[1].type"])
	require.Empty(t, repo.suppliers)
}

func TestIngestQualityFailureSkips(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	req := ingestRequest("X") // name too short: blocking quality error
	result, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, ActionSkipped, result.Action)
	require.Contains(t, result.Error, "between 2 and 200")
	require.Empty(t, repo.suppliers)
}

func TestIngestInsufficientDataSkips(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	req := IngestRequest{
		TenantID: testTenant.String(),
		Source:   SourceInvoice,
		SourceID: "inv-002",
		Data:     IngestData{Name: "Mystery Vendor"},
	}
	result, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.False(t, result.Success)
	require.Equal(t, ActionSkipped, result.Action)
	require.Equal(t, "insufficient data to create supplier", result.Error)
	require.Empty(t, repo.suppliers)
}

func TestIngestCompanyNumberMatchUpdates(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	first, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	require.Equal(t, ActionCreated, first.Action)

	// Same company number under a noisier name must update, not duplicate.
	req := ingestRequest("ACME TRADING LIMITED (UK)")
	req.SourceID = "inv-002"
	second, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, second.Success)
	require.Equal(t, ActionUpdated, second.Action)
	require.Equal(t, first.SupplierID, second.SupplierID)
	require.Equal(t, MatchCompanyNumber, second.MatchType)
	require.Equal(t, 100, second.Confidence)
	require.Len(t, repo.suppliers, 1)
}

func TestIngestRepeatObservationBumpsAttributes(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	supID := *result.SupplierID

	// Semantically equal values (case and whitespace noise) on a repeat
	// document bump seen counts instead of inserting rows.
	req := ingestRequest("Acme Trading Ltd")
	req.SourceID = "inv-002"
	req.Data.Addresses = []AddressInput{{Line1: " 1 MAIN ST ", City: "LONDON", Country: "gb"}}
	req.Data.Contacts = []ContactInput{{Type: AttributeEmail, Value: "Billing@Acme.com"}}

	_, err = svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	attrs := repo.attributes[supID]
	require.Len(t, attrs, 2)
	for _, attr := range attrs {
		require.Equal(t, 2, attr.SeenCount)
		require.Equal(t, AttributeBaseConfidence+AttributeRepeatIncrement, attr.Confidence)
	}
}

func TestIngestConcurrentRepeatUpserts(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	supID := *result.SupplierID

	// A concurrent ingest of the same document commits between our hash
	// snapshot and the write transaction; the stale snapshot routes every
	// attribute through the insert path, which must upsert.
	repo.staleAttributeHashes = true
	req := ingestRequest("Acme Trading Ltd")
	req.SourceID = "inv-002"
	_, err = svc.Ingest(context.Background(), req)
	require.NoError(t, err)

	attrs := repo.attributes[supID]
	require.Len(t, attrs, 2)
	for _, attr := range attrs {
		require.Equal(t, 2, attr.SeenCount)
		require.Equal(t, AttributeBaseConfidence+AttributeRepeatIncrement, attr.Confidence)
	}
}

func TestIngestSameSourceBumpsOccurrenceCount(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	key := result.SupplierID.String() + "/" + string(SourceInvoice) + "/inv-001"
	require.Equal(t, 2, repo.dataSources[key].OccurrenceCount)
}

func TestIngestMediumConfidenceSkipsForReview(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	first, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	// Name-only agreement (30 points) sits between the ignore floor and the
	// auto-accept threshold.
	req := IngestRequest{
		TenantID: testTenant.String(),
		Source:   SourceInvoice,
		SourceID: "inv-009",
		Data: IngestData{
			Name:        "Acme Trading Ltd",
			Identifiers: Identifiers{VATNumber: "GB999999973", Country: "GB"},
			Contacts: []ContactInput{
				{Type: AttributeWebsite, Value: "acmetrading.example"},
			},
		},
	}
	result, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.True(t, result.Success)
	require.Equal(t, ActionSkipped, result.Action)
	require.Equal(t, first.SupplierID, result.SupplierID)
	require.Len(t, repo.suppliers, 1)

	require.Len(t, repo.reviews, 1)
	require.Equal(t, *first.SupplierID, repo.reviews[0].SupplierID)
	require.Equal(t, result.Confidence, repo.reviews[0].Confidence)
}

func TestIngestSlugCollisionRetries(t *testing.T) {
	repo := newMemorySupplierRepo()
	repo.failSlugInserts = 1
	svc := newTestService(repo)

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	require.Equal(t, ActionCreated, result.Action)
	require.Len(t, repo.suppliers, 1)
}

func TestIngestSlugRetriesExhausted(t *testing.T) {
	repo := newMemorySupplierRepo()
	repo.failSlugInserts = 10
	svc := newTestService(repo)

	_, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.ErrorIs(t, err, ErrSlugExhausted)
}

func TestIngestSlugExhaustionReturnsPromptly(t *testing.T) {
	repo := newMemorySupplierRepo()
	repo.failSlugInserts = 1
	svc := NewService(repo, nil, NoopSearchIndexer{}, testLogger(), ServiceConfig{SlugRetryAttempts: 1})

	start := time.Now()
	_, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.ErrorIs(t, err, ErrSlugExhausted)
	// No retry follows the final attempt, so no jitter sleep either.
	require.Less(t, time.Since(start), 40*time.Millisecond)
}

func TestIngestDuplicateCompanyNumber(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	_, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	// Soft-delete the existing supplier so matching skips it, then re-ingest
	// the same company number: the insert hits the identifier constraint.
	for id := range repo.suppliers {
		require.NoError(t, repo.SoftDeleteSupplier(context.Background(), testTenant, id))
	}
	req := ingestRequest("Acme Trading Ltd")
	req.SourceID = "inv-003"
	_, err = svc.Ingest(context.Background(), req)

	var dup *DuplicateIdentifierError
	require.ErrorAs(t, err, &dup)
	require.Equal(t, "company number", dup.Field)
	require.Equal(t, "01234567", dup.Value)
}

func TestIngestCrossTenantIsolation(t *testing.T) {
	repo := newMemorySupplierRepo()
	svc := newTestService(repo)

	_, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	otherTenant := uuid.MustParse("22222222-2222-2222-2222-222222222222")
	req := ingestRequest("Acme Trading Ltd")
	req.TenantID = otherTenant.String()
	result, err := svc.Ingest(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, ActionCreated, result.Action)
	require.Len(t, repo.suppliers, 2)
}

func TestIngestRunsSideEffects(t *testing.T) {
	repo := newMemorySupplierRepo()
	globalRepo := &memoryGlobalRepo{}
	resolver := NewGlobalResolver(globalRepo, nil, testLogger(), 0)
	indexer := &recordingIndexer{}
	svc := NewService(repo, resolver, indexer, testLogger(), ServiceConfig{})

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)
	require.Equal(t, ActionCreated, result.Action)

	// Search projection received the new supplier.
	require.Len(t, indexer.indexed, 1)
	require.Equal(t, *result.SupplierID, indexer.indexed[0].ID)

	// The company number seeded a global row and the supplier was linked.
	require.Len(t, globalRepo.inserted, 1)
	require.NotNil(t, result.GlobalSupplierID)
	linked := repo.suppliers[*result.SupplierID]
	require.NotNil(t, linked.GlobalSupplierID)
	require.Equal(t, *result.GlobalSupplierID, *linked.GlobalSupplierID)
}

func TestDeleteRemovesFromSearch(t *testing.T) {
	repo := newMemorySupplierRepo()
	indexer := &recordingIndexer{}
	svc := NewService(repo, nil, indexer, testLogger(), ServiceConfig{})

	result, err := svc.Ingest(context.Background(), ingestRequest("Acme Trading Ltd"))
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), testTenant, *result.SupplierID))
	require.Equal(t, []uuid.UUID{*result.SupplierID}, indexer.removed)

	_, err = svc.Get(context.Background(), testTenant, *result.SupplierID)
	require.ErrorIs(t, err, ErrNotFound)
}
