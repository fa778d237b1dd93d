package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/retainly/retention-api/internal/model"
	"github.com/retainly/retention-api/internal/repository"
	"github.com/retainly/retention-api/pkg/auth"
	apperrors "github.com/retainly/retention-api/pkg/errors"
	"github.com/retainly/retention-api/pkg/security"
)

type Service struct {
	accounts repository.AccountRepository
	hasher   security.PasswordHasher
	tokens   auth.JWTService
}

func NewService(accounts repository.AccountRepository, hasher security.PasswordHasher, tokens auth.JWTService) *Service {
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		tokens:   tokens,
	}
}

func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.TokenResponse, error) {
	if existing, _ := s.accounts.GetByEmail(ctx, req.Email); existing != nil {
		return nil, apperrors.Conflict("account already exists", nil)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	account := &model.Account{
		ID:           uuid.New(),
		Email:        req.Email,
		Name:         req.Name,
		PasswordHash: hash,
	}
	if err := s.accounts.Create(ctx, account); err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	token, err := s.tokens.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{Token: token, AccountID: account.ID}, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.TokenResponse, error) {
	account, err := s.accounts.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	if err := s.hasher.Compare(account.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(err)
	}

	token, err := s.tokens.GenerateToken(account.ID, account.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &model.TokenResponse{Token: token, AccountID: account.ID}, nil
}

func (s *Service) ValidateToken(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperrors.Unauthorized(err)
	}
	return claims, nil
}
