package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"ferremas/internal/domain"
	"ferremas/internal/repos"
)

var ErrBadKey = errors.New("invalid api key")

// AuthService checks API keys of the form "<key id>.<secret>".
type AuthService struct {
	Keys *repos.APIKeyRepo
	Cost int // bcrypt cost; bcrypt.DefaultCost when zero
}

func NewAuthService(keys *repos.APIKeyRepo) *AuthService {
	return &AuthService{Keys: keys}
}

func splitKey(raw string) (id, secret string, ok bool) {
	id, secret, ok = strings.Cut(strings.TrimSpace(raw), ".")
	return id, secret, ok && id != "" && secret != ""
}

func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.APIKey, error) {
	id, secret, ok := splitKey(raw)
	if !ok {
		return nil, ErrBadKey
	}
	k, err := s.Keys.ByID(ctx, id)
	if err != nil || !k.Active {
		return nil, ErrBadKey
	}
	if bcrypt.CompareHashAndPassword([]byte(k.Hash), []byte(secret)) != nil {
		return nil, ErrBadKey
	}
	_ = s.Keys.Touch(ctx, k.ID, time.Now())
	return k, nil
}

// Issue creates a key and returns the raw value; only its hash is stored.
func (s *AuthService) Issue(ctx context.Context, userID, name, role string) (string, *domain.APIKey, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", nil, err
	}
	id := uuid.NewString()
	secret := hex.EncodeToString(buf)
	raw := id + "." + secret
	k, err := s.store(ctx, id, secret, userID, name, role)
	if err != nil {
		return "", nil, err
	}
	return raw, k, nil
}

// EnsureBootstrap registers a key supplied through configuration unless a
// key with the same id already exists.
func (s *AuthService) EnsureBootstrap(ctx context.Context, raw, userID string) error {
	id, secret, ok := splitKey(raw)
	if !ok {
		return ErrBadKey
	}
	if _, err := s.Keys.ByID(ctx, id); err == nil {
		return nil
	}
	_, err := s.store(ctx, id, secret, userID, "bootstrap", domain.RoleAdmin)
	if errors.Is(err, repos.ErrDuplicate) {
		return nil
	}
	return err
}

// Revoke deactivates a key; requests using it fail from then on.
func (s *AuthService) Revoke(ctx context.Context, id string) error {
	ok, err := s.Keys.Deactivate(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return domain.NotFoundf("api key %s not found", id)
	}
	return nil
}

func (s *AuthService) store(ctx context.Context, id, secret, userID, name, role string) (*domain.APIKey, error) {
	cost := s.Cost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	if err != nil {
		return nil, err
	}
	if role == "" {
		role = domain.RoleOperator
	}
	k := &domain.APIKey{ID: id, UserID: userID, Name: name, Hash: string(h), Role: role, Active: true}
	if err := s.Keys.Insert(ctx, k); err != nil {
		return nil, err
	}
	return k, nil
}
