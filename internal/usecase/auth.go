package usecase

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kittipos-dev/user-auth-api/internal/auth"
	"github.com/kittipos-dev/user-auth-api/internal/model"
	"github.com/kittipos-dev/user-auth-api/internal/repository"
	"github.com/kittipos-dev/user-auth-api/internal/security"
)

// AuthUsecase defines the interface for authentication-related use cases.
type AuthUsecase interface {
	// Register creates an unverified user and returns it together with a
	// fresh session token.
	Register(ctx context.Context, params RegisterParams) (*model.User, string, error)

	// Login verifies credentials and returns the user together with a fresh
	// session token.
	Login(ctx context.Context, params LoginParams) (*model.User, string, error)
}

// Mailer sends outbound notifications. Implemented by mailer.Mailer.
type Mailer interface {
	SendSimple(to []string, subject, body string) error
}

// RegisterParams defines the parameters for user registration.
type RegisterParams struct {
	Name     string
	Email    string
	Password string
}

// LoginParams defines the parameters for user login.
type LoginParams struct {
	Email    string
	Password string
}

var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")
	ErrInvalidPassword   = errors.New("invalid password")
)

type authUsecase struct {
	userRepo repository.UserRepository
	issuer   auth.TokenIssuer
	mailer   Mailer
}

// NewAuthUsecase creates a new instance of AuthUsecase.
func NewAuthUsecase(
	userRepo repository.UserRepository,
	issuer auth.TokenIssuer,
	mailer Mailer,
) AuthUsecase {
	return &authUsecase{
		userRepo: userRepo,
		issuer:   issuer,
		mailer:   mailer,
	}
}

func (u *authUsecase) Register(ctx context.Context, params RegisterParams) (*model.User, string, error) {
	passwordHash, err := security.HashPassword(params.Password)
	if err != nil {
		return nil, "", err
	}

	user, err := u.userRepo.CreateUser(ctx, &model.User{
		Name:         params.Name,
		Email:        params.Email,
		PasswordHash: passwordHash,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, "", ErrUserAlreadyExists
		}

		return nil, "", err
	}

	token, err := u.issueSession(ctx, user.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	subject := fmt.Sprintf("Welcome, %s", user.Name)
	body := fmt.Sprintf("Your account has been created with email id: %s", user.Email)
	if err := u.mailer.SendSimple([]string{user.Email}, subject, body); err != nil {
		return nil, "", err
	}

	return user, token, nil
}

func (u *authUsecase) Login(ctx context.Context, params LoginParams) (*model.User, string, error) {
	user, err := u.userRepo.GetUserByEmail(ctx, params.Email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, "", ErrUserNotFound
		}

		return nil, "", err
	}

	if ok, err := security.VerifyPassword(params.Password, user.PasswordHash); err != nil {
		return nil, "", err
	} else if !ok {
		return nil, "", ErrInvalidPassword
	}

	token, err := u.issueSession(ctx, user.ID.Hex())
	if err != nil {
		return nil, "", err
	}

	return user, token, nil
}

// issueSession mints a session token for an existing user. The user id has
// to resolve to a stored user at issuance time.
func (u *authUsecase) issueSession(ctx context.Context, userID string) (string, error) {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("resolving user for session: %w", err)
	}

	return u.issuer.Generate(user.ID.Hex())
}
