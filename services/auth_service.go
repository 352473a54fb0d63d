package services

import (
	"fmt"
	"time"

	"chat-relay/auth"
	"chat-relay/errors"
	"chat-relay/repositories"
)

type IAuthService interface {
	Register(username, email, password string) (Session, error)
	Login(email, password string) (Session, error)
	Verify(token string) (string, error)
}

// Session is the outcome of a successful credential exchange: a signed
// token plus the identity it encodes.
type Session struct {
	Token    string
	UserID   string
	Username string
}

type AuthService struct {
	userRepository repositories.IUserRepository
	tokenDuration  time.Duration
}

func NewAuthService(repo repositories.IUserRepository, tokenDuration time.Duration) IAuthService {
	return &AuthService{userRepository: repo, tokenDuration: tokenDuration}
}

func (s *AuthService) Register(username, email, password string) (Session, error) {
	valReq := auth.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	}

	// Business rules (email format, password complexity) are checked
	// before any expensive cryptographic operation.
	if err := auth.ValidateRegister(valReq); err != nil {
		return Session{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}

	// Hashing happens in the service layer so the repository never sees a
	// plain password.
	hashedPassword, err := auth.HashPassword(password)
	if err != nil {
		return Session{}, fmt.Errorf("hashing failed: %w", err)
	}

	user, err := s.userRepository.CreateUser(username, email, hashedPassword)
	if err != nil {
		return Session{}, err // propagates ErrUserAlreadyExists if the email is taken
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.tokenDuration)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, UserID: user.ID, Username: user.Username}, nil
}

func (s *AuthService) Login(email, password string) (Session, error) {
	user, err := s.userRepository.GetUserByEmail(email)
	if err != nil {
		// Generic error to prevent user enumeration attacks.
		return Session{}, errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return Session{}, errors.ErrInvalidCredentials
	}

	token, err := auth.GenerateToken(user.ID, user.Username, s.tokenDuration)
	if err != nil {
		return Session{}, errors.ErrTokenGeneration
	}
	return Session{Token: token, UserID: user.ID, Username: user.Username}, nil
}

// Verify resolves a token into the user id it was issued for.
func (s *AuthService) Verify(token string) (string, error) {
	claims, err := auth.ValidateToken(token)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	return claims.UserID, nil
}
