package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidAPIKey indicates a missing tenant or a key mismatch.
var ErrInvalidAPIKey = errors.New("invalid api key")

// Repository loads tenant API-key hashes.
type Repository interface {
	GetAPIKeyHash(ctx context.Context, tenantID uuid.UUID) (string, error)
}

type repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL backed repository.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) GetAPIKeyHash(ctx context.Context, tenantID uuid.UUID) (string, error) {
	var hash string
	err := r.pool.QueryRow(ctx,
		`SELECT key_hash FROM tenant_api_keys WHERE tenant_id = $1 AND revoked_at IS NULL`,
		tenantID).Scan(&hash)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrInvalidAPIKey
	}
	return hash, err
}

// Service verifies tenant API keys.
type Service struct {
	repo Repository
}

// NewService constructs the service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// VerifyAPIKey checks the presented key against the tenant's stored bcrypt
// hash.
func (s *Service) VerifyAPIKey(ctx context.Context, tenantID uuid.UUID, key string) error {
	if key == "" {
		return ErrInvalidAPIKey
	}
	hash, err := s.repo.GetAPIKeyHash(ctx, tenantID)
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(key)) != nil {
		return ErrInvalidAPIKey
	}
	return nil
}

// HashAPIKey produces the stored form of a new API key.
func HashAPIKey(key string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
