package services

import (
	"fmt"
	"stream-lab/auth"
	"stream-lab/errors"
	"stream-lab/repositories"
)

type IAuthService interface {
	Login(email, password string) (Token, error)
	Register(email, password string, roles ...string) (Token, error)
}

type AuthService struct {
	operatorRepository repositories.IOperatorRepository
	tokens             *auth.Tokens
	params             auth.Params
}

type Token string

func (t Token) String() string {
	return string(t)
}

func NewAuthService(repo repositories.IOperatorRepository, tokens *auth.Tokens, params auth.Params) IAuthService {
	return &AuthService{operatorRepository: repo, tokens: tokens, params: params}
}

// Register validates the credentials before any expensive hashing, then stores the operator.
func (s *AuthService) Register(email, password string, roles ...string) (Token, error) {
	if len(roles) == 0 {
		roles = []string{auth.RoleOperator}
	}
	if err := auth.ValidateCredentials(auth.Credentials{Email: email, Password: password, Roles: roles}); err != nil {
		return "", err
	}

	hashedPassword, err := s.params.Hash(password)
	if err != nil {
		return "", fmt.Errorf("hashing failed: %w", err)
	}

	operatorID, err := s.operatorRepository.CreateOperator(email, hashedPassword, roles)
	if err != nil {
		return "", err
	}

	token, err := s.tokens.Generate(operatorID, roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}

func (s *AuthService) Login(email, password string) (Token, error) {
	operator, err := s.operatorRepository.GetOperatorByEmail(email)
	if err != nil {
		// Same answer for unknown emails and wrong passwords
		return "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, operator.PasswordHash)
	if err != nil || !match {
		return "", errors.ErrInvalidCredentials
	}

	token, err := s.tokens.Generate(operator.ID, operator.Roles)
	if err != nil {
		return "", errors.ErrTokenGeneration
	}
	return Token(token), nil
}
