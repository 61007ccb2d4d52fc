package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kittipos-dev/user-auth-api/internal/repository"
	"github.com/kittipos-dev/user-auth-api/internal/security"
)

// OTPUsecase defines the business logic for one-time code operations.
type OTPUsecase interface {
	// SendVerificationOTP issues an account-verification code for an
	// unverified user and mails it.
	SendVerificationOTP(ctx context.Context, userID string) error

	// VerifyAccount consumes an active verification code, marking the
	// account verified.
	VerifyAccount(ctx context.Context, userID, code string) error

	// SendResetOTP issues a password-reset code for the given email and
	// mails it.
	SendResetOTP(ctx context.Context, email string) error

	// ResetPassword consumes an active reset code, then stores the new
	// password. The code is invalidated even if the password update fails.
	ResetPassword(ctx context.Context, email, code, newPassword string) error
}

var (
	ErrAlreadyVerified = errors.New("account already verified")
	ErrInvalidOTP      = errors.New("invalid OTP")
	ErrOTPExpired      = errors.New("OTP expired")
)

const (
	verificationOTPExpiresIn = 24 * time.Hour
	resetOTPExpiresIn        = 15 * time.Minute
)

type otpUsecase struct {
	userRepo repository.UserRepository
	mailer   Mailer
}

// NewOTPUsecase creates a new instance of OTPUsecase.
func NewOTPUsecase(userRepo repository.UserRepository, mailer Mailer) OTPUsecase {
	return &otpUsecase{
		userRepo: userRepo,
		mailer:   mailer,
	}
}

func (u *otpUsecase) SendVerificationOTP(ctx context.Context, userID string) error {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	}

	if user.Verified {
		return ErrAlreadyVerified
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(verificationOTPExpiresIn)
	if err := u.userRepo.SetVerificationOTP(ctx, user.ID.Hex(), code, expiresAt); err != nil {
		return err
	}

	body := fmt.Sprintf("Your OTP is %s, verify your account using this OTP", code)
	return u.mailer.SendSimple([]string{user.Email}, "Account verification OTP", body)
}

func (u *otpUsecase) VerifyAccount(ctx context.Context, userID, code string) error {
	_, err := u.userRepo.ConsumeVerificationOTP(ctx, userID, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return u.classifyFailedConsume(ctx, userID, code, verificationOTP)
		}

		return err
	}

	return nil
}

func (u *otpUsecase) SendResetOTP(ctx context.Context, email string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	}

	code, err := generateOTP()
	if err != nil {
		return err
	}

	expiresAt := time.Now().Add(resetOTPExpiresIn)
	if err := u.userRepo.SetResetOTP(ctx, user.ID.Hex(), code, expiresAt); err != nil {
		return err
	}

	body := fmt.Sprintf(
		"Your OTP for resetting your password is %s. Use this OTP to proceed with resetting your password",
		code,
	)
	return u.mailer.SendSimple([]string{user.Email}, "Password reset OTP", body)
}

func (u *otpUsecase) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	user, err := u.userRepo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	}

	// Code validation precedes any password mutation; the conditional update
	// clears the code so a second attempt with it fails.
	consumed, err := u.userRepo.ConsumeResetOTP(ctx, email, code)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return u.classifyFailedConsume(ctx, user.ID.Hex(), code, resetOTP)
		}

		return err
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return err
	}

	if _, err := u.userRepo.UpdateUser(ctx, consumed.ID.Hex(), repository.UpdateUserParams{
		PasswordHash: &passwordHash,
	}); err != nil {
		return err
	}

	return nil
}

type otpPurpose int

const (
	verificationOTP otpPurpose = iota
	resetOTP
)

// classifyFailedConsume distinguishes an invalid code from an expired one
// after a conditional consume matched nothing. The re-read is only for error
// reporting; the consume itself already happened (and failed) atomically.
func (u *otpUsecase) classifyFailedConsume(
	ctx context.Context,
	userID, code string,
	purpose otpPurpose,
) error {
	user, err := u.userRepo.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return ErrUserNotFound
		}

		return err
	}

	stored, expiresAt := user.VerifyOTP, user.VerifyOTPExpiresAt
	if purpose == resetOTP {
		stored, expiresAt = user.ResetOTP, user.ResetOTPExpiresAt
	}

	if stored == "" || stored != code {
		return ErrInvalidOTP
	}

	if time.Now().After(expiresAt) {
		return ErrOTPExpired
	}

	// The code was valid on re-read, so a concurrent consume won the race.
	return ErrInvalidOTP
}

// generateOTP returns a 6-digit numeric code drawn uniformly from
// [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}

	return strconv.FormatInt(n.Int64()+100000, 10), nil
}
