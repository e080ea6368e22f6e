package suppliers

import (
	"time"

	"github.com/google/uuid"
)

// SourceType identifies the provenance channel of an observation.
type SourceType string

const (
	SourceInvoice SourceType = "invoice"
	SourceManual  SourceType = "manual"
	SourceImport  SourceType = "import"
	SourceAPI     SourceType = "api"
)

// AttributeType classifies a stored supplier attribute.
type AttributeType string

const (
	AttributeAddress     AttributeType = "address"
	AttributeEmail       AttributeType = "email"
	AttributePhone       AttributeType = "phone"
	AttributeWebsite     AttributeType = "website"
	AttributeBankAccount AttributeType = "bank_account"
)

// SupplierStatus is the lifecycle state of a supplier record.
type SupplierStatus string

const (
	StatusActive  SupplierStatus = "active"
	StatusDeleted SupplierStatus = "deleted"
)

// MatchType names the signal that decided a match.
type MatchType string

const (
	MatchCompanyNumber MatchType = "company_number"
	MatchVATNumber     MatchType = "vat_number"
	MatchName          MatchType = "name"
	MatchDomain        MatchType = "domain"
	MatchAddress       MatchType = "address"
	MatchComposite     MatchType = "composite"
	MatchNone          MatchType = "none"
)

// LogoStatus tracks global-supplier logo enrichment.
type LogoStatus string

const (
	LogoPending  LogoStatus = "pending"
	LogoFetching LogoStatus = "fetching"
	LogoDone     LogoStatus = "done"
	LogoFailed   LogoStatus = "failed"
)

// Default scoring thresholds. Runtime values come from ServiceConfig.
const (
	DefaultAutoAcceptThreshold = 80
	DefaultCreateThreshold     = 60
	DefaultIgnoreFloor         = 20

	// Attribute merge behaviour: first observation starts at the base
	// confidence, each repeat confirmation adds the increment up to 100.
	AttributeBaseConfidence  = 50
	AttributeRepeatIncrement = 10

	slugMaxLength = 50
)

// Supplier is the tenant-scoped canonical vendor record. Slug is unique per
// tenant; company number behaves as a near-unique key within a tenant but is
// not globally unique.
type Supplier struct {
	ID               uuid.UUID      `json:"id"`
	TenantID         uuid.UUID      `json:"tenantId"`
	CompanyNumber    string         `json:"companyNumber,omitempty"`
	VATNumber        string         `json:"vatNumber,omitempty"`
	LegalName        string         `json:"legalName"`
	DisplayName      string         `json:"displayName"`
	Slug             string         `json:"slug"`
	Status           SupplierStatus `json:"status"`
	GlobalSupplierID *uuid.UUID     `json:"globalSupplierId,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	DeletedAt        *time.Time     `json:"deletedAt,omitempty"`
}

// SupplierAttribute is one observed fact about a supplier, deduplicated by
// the content hash of its normalized value.
type SupplierAttribute struct {
	ID         uuid.UUID      `json:"id"`
	SupplierID uuid.UUID      `json:"supplierId"`
	Type       AttributeType  `json:"type"`
	Value      map[string]any `json:"value"`
	Hash       string         `json:"hash"`
	Confidence int            `json:"confidence"`
	SeenCount  int            `json:"seenCount"`
	IsPrimary  bool           `json:"isPrimary"`
	SourceType SourceType     `json:"sourceType"`
	SourceID   string         `json:"sourceId"`
	Active     bool           `json:"active"`
	CreatedAt  time.Time      `json:"createdAt"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// SupplierDataSource is the provenance ledger row for one source document.
// (supplierId, sourceType, sourceId) is unique; repeats bump the counter.
type SupplierDataSource struct {
	SupplierID      uuid.UUID  `json:"supplierId"`
	SourceType      SourceType `json:"sourceType"`
	SourceID        string     `json:"sourceId"`
	OccurrenceCount int        `json:"occurrenceCount"`
	FirstSeenAt     time.Time  `json:"firstSeenAt"`
	LastSeenAt      time.Time  `json:"lastSeenAt"`
}

// GlobalSupplier is the cross-tenant canonical company record used to share
// enrichment data. Convergence to one row per real company is eventual, not
// immediate: fuzzy matches may create distinct rows pending review.
type GlobalSupplier struct {
	ID            uuid.UUID  `json:"id"`
	CompanyNumber string     `json:"companyNumber,omitempty"`
	VATNumber     string     `json:"vatNumber,omitempty"`
	CanonicalName string     `json:"canonicalName"`
	PrimaryDomain string     `json:"primaryDomain,omitempty"`
	LogoURL       string     `json:"logoUrl,omitempty"`
	LogoStatus    LogoStatus `json:"logoStatus"`
	LogoAttempts  int        `json:"logoAttempts"`
	LogoFetchedAt *time.Time `json:"logoFetchedAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// MatchReview records a medium-confidence match that was skipped pending
// manual review.
type MatchReview struct {
	ID         uuid.UUID `json:"id"`
	TenantID   uuid.UUID `json:"tenantId"`
	SupplierID uuid.UUID `json:"supplierId"`
	SourceType SourceType `json:"sourceType"`
	SourceID   string    `json:"sourceId"`
	Name       string    `json:"name"`
	Confidence int       `json:"confidence"`
	MatchType  MatchType `json:"matchType"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Candidate bundles a supplier with its active attributes for scoring.
type Candidate struct {
	Supplier   Supplier
	Attributes []SupplierAttribute
}
