package suppliers

import (
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// IngestRequest is the wire shape consumed from the document-extraction
// collaborator.
type IngestRequest struct {
	TenantID string     `json:"tenantId" validate:"required,uuid"`
	UserID   string     `json:"userId,omitempty" validate:"omitempty,uuid"`
	Source   SourceType `json:"source" validate:"required,oneof=invoice manual import api"`
	SourceID string     `json:"sourceId" validate:"required"`
	Data     IngestData `json:"data"`
}

// IngestData carries the observed vendor fields.
type IngestData struct {
	Name         string             `json:"name" validate:"required"`
	Identifiers  Identifiers        `json:"identifiers"`
	Addresses    []AddressInput     `json:"addresses" validate:"dive"`
	Contacts     []ContactInput     `json:"contacts" validate:"dive"`
	BankAccounts []BankAccountInput `json:"bankAccounts" validate:"dive"`
	// Confidence optionally carries per-field extraction confidence (0-100)
	// from the upstream extractor, keyed by field name.
	Confidence map[string]int `json:"confidence,omitempty"`
}

// Identifiers holds the company registration and VAT numbers. Both are
// optional but at least one is strongly preferred.
type Identifiers struct {
	CompanyNumber string `json:"companyNumber,omitempty"`
	VATNumber     string `json:"vatNumber,omitempty"`
	Country       string `json:"country,omitempty" validate:"omitempty,len=2"`
}

// AddressInput is one observed postal address.
type AddressInput struct {
	Line1      string `json:"line1" validate:"required"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city" validate:"required"`
	PostalCode string `json:"postalCode,omitempty"`
	Country    string `json:"country" validate:"required,len=2"`
}

// ContactInput is one observed contact channel.
type ContactInput struct {
	Type      AttributeType `json:"type" validate:"required,oneof=email phone website"`
	Value     string        `json:"value" validate:"required"`
	IsPrimary bool          `json:"isPrimary"`
}

// BankAccountInput is one observed bank account. All fields are optional but
// an account with no identifying field is rejected structurally.
type BankAccountInput struct {
	IBAN          string `json:"iban,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	SortCode      string `json:"sortCode,omitempty"`
	AccountName   string `json:"accountName,omitempty"`
}

// IngestResult is the structured outcome of one ingestion call. Expected
// business outcomes (no match, insufficient data, pending review) are
// returned here, never as errors, so batch callers need no special-casing.
type IngestResult struct {
	Success          bool       `json:"success"`
	Action           string     `json:"action"`
	SupplierID       *uuid.UUID `json:"supplierId,omitempty"`
	GlobalSupplierID *uuid.UUID `json:"globalSupplierId,omitempty"`
	MatchType        MatchType  `json:"matchType,omitempty"`
	Confidence       int        `json:"confidence,omitempty"`
	Warnings         []string   `json:"warnings,omitempty"`
	Error            string     `json:"error,omitempty"`
}

// Ingestion result actions.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionSkipped = "skipped"
)

// Sanitize trims every string leaf of the request, upper-cases identifiers
// and defaults absent collections to empty slices. It mutates the receiver.
func (r *IngestRequest) Sanitize() {
	r.TenantID = strings.TrimSpace(r.TenantID)
	r.UserID = strings.TrimSpace(r.UserID)
	r.Source = SourceType(strings.TrimSpace(string(r.Source)))
	r.SourceID = strings.TrimSpace(r.SourceID)

	d := &r.Data
	d.Name = strings.TrimSpace(d.Name)
	d.Identifiers.CompanyNumber = strings.ToUpper(strings.TrimSpace(d.Identifiers.CompanyNumber))
	d.Identifiers.VATNumber = strings.ToUpper(strings.TrimSpace(d.Identifiers.VATNumber))
	d.Identifiers.Country = strings.ToUpper(strings.TrimSpace(d.Identifiers.Country))

	if d.Addresses == nil {
		d.Addresses = []AddressInput{}
	}
	for i := range d.Addresses {
		a := &d.Addresses[i]
		a.Line1 = strings.TrimSpace(a.Line1)
		a.Line2 = strings.TrimSpace(a.Line2)
		a.City = strings.TrimSpace(a.City)
		a.PostalCode = strings.TrimSpace(a.PostalCode)
		a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	}
	if d.Contacts == nil {
		d.Contacts = []ContactInput{}
	}
	for i := range d.Contacts {
		c := &d.Contacts[i]
		c.Type = AttributeType(strings.ToLower(strings.TrimSpace(string(c.Type))))
		c.Value = strings.TrimSpace(c.Value)
	}
	if d.BankAccounts == nil {
		d.BankAccounts = []BankAccountInput{}
	}
	for i := range d.BankAccounts {
		b := &d.BankAccounts[i]
		b.IBAN = strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(b.IBAN), " ", ""))
		b.AccountNumber = strings.TrimSpace(b.AccountNumber)
		b.BankName = strings.TrimSpace(b.BankName)
		b.SortCode = strings.TrimSpace(b.SortCode)
		b.AccountName = strings.TrimSpace(b.AccountName)
	}
}

// ValidateStructure checks the sanitized request against the structural
// contract and returns a StructuralValidationError enumerating every
// violation. Callers must Sanitize first.
func ValidateStructure(v *validator.Validate, r *IngestRequest) error {
	var violations []FieldViolation

	if err := v.Struct(r); err != nil {
		var fieldErrs validator.ValidationErrors
		if !asValidationErrors(err, &fieldErrs) {
			violations = append(violations, FieldViolation{Field: "request", Reason: err.Error()})
		} else {
			for _, fe := range fieldErrs {
				violations = append(violations, FieldViolation{
					Field:  jsonPath(fe.Namespace()),
					Reason: violationReason(fe),
				})
			}
		}
	}

	for i, b := range r.Data.BankAccounts {
		if b.IBAN == "" && b.AccountNumber == "" && b.BankName == "" {
			violations = append(violations, FieldViolation{
				Field:  bankAccountPath(i),
				Reason: "must carry an iban, account number or bank name",
			})
		}
	}

	if len(violations) > 0 {
		return &StructuralValidationError{Violations: violations}
	}
	return nil
}

func asValidationErrors(err error, target *validator.ValidationErrors) bool {
	ve, ok := err.(validator.ValidationErrors)
	if ok {
		*target = ve
	}
	return ok
}

// jsonPath rewrites the validator namespace ("IngestRequest.Data.Name") to
// the wire field path ("data.name").
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	for i, p := range parts {
		idx := ""
		if br := strings.Index(p, "["); br >= 0 {
			idx = p[br:]
			p = p[:br]
		}
		parts[i] = lowerFirst(p) + idx
	}
	return strings.Join(parts, ".")
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	switch s {
	case "TenantID":
		return "tenantId"
	case "UserID":
		return "userId"
	case "SourceID":
		return "sourceId"
	case "CompanyNumber":
		return "companyNumber"
	case "VATNumber":
		return "vatNumber"
	case "PostalCode":
		return "postalCode"
	case "IsPrimary":
		return "isPrimary"
	case "BankAccounts":
		return "bankAccounts"
	case "IBAN":
		return "iban"
	case "AccountNumber":
		return "accountNumber"
	case "BankName":
		return "bankName"
	case "SortCode":
		return "sortCode"
	case "AccountName":
		return "accountName"
	}
	return strings.ToLower(s[:1]) + s[1:]
}

func bankAccountPath(i int) string {
	return "data.bankAccounts[" + strconv.Itoa(i) + "]"
}

func violationReason(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "uuid":
		return "must be a valid UUID"
	case "oneof":
		return "must be one of: " + fe.Param()
	case "len":
		return "must be exactly " + fe.Param() + " characters"
	default:
		return "failed " + fe.Tag() + " constraint"
	}
}
