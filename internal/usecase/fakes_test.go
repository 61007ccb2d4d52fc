package usecase

import (
	"context"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/kittipos-dev/user-auth-api/internal/model"
	"github.com/kittipos-dev/user-auth-api/internal/repository"
)

// fakeUserRepo is an in-memory UserRepository with the same conditional
// semantics as the mongo implementation.
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*model.User)}
}

func (f *fakeUserRepo) CreateUser(_ context.Context, user *model.User) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, existing := range f.users {
		if existing.Email == user.Email {
			return nil, mongo.WriteException{WriteErrors: mongo.WriteErrors{{Code: 11000}}}
		}
	}

	user.ID = bson.NewObjectID()
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	f.users[user.ID.Hex()] = user

	return user, nil
}

func (f *fakeUserRepo) GetUser(_ context.Context, id string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byEmail(email)
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) UpdateUser(
	_ context.Context,
	id string,
	params repository.UpdateUserParams,
) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return nil, mongo.ErrNoDocuments
	}

	if params.Name != nil {
		user.Name = *params.Name
	}
	if params.PasswordHash != nil {
		user.PasswordHash = *params.PasswordHash
	}
	user.UpdatedAt = time.Now()

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) SetVerificationOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}

	user.VerifyOTP = code
	user.VerifyOTPExpiresAt = expiresAt
	return nil
}

func (f *fakeUserRepo) SetResetOTP(_ context.Context, id, code string, expiresAt time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok {
		return mongo.ErrNoDocuments
	}

	user.ResetOTP = code
	user.ResetOTPExpiresAt = expiresAt
	return nil
}

func (f *fakeUserRepo) ConsumeVerificationOTP(_ context.Context, id, code string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.users[id]
	if !ok || code == "" || user.VerifyOTP != code || !time.Now().Before(user.VerifyOTPExpiresAt) {
		return nil, mongo.ErrNoDocuments
	}

	user.Verified = true
	user.VerifyOTP = ""
	user.VerifyOTPExpiresAt = time.Time{}

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) ConsumeResetOTP(_ context.Context, email, code string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	user, ok := f.byEmail(email)
	if !ok || code == "" || user.ResetOTP != code || !time.Now().Before(user.ResetOTPExpiresAt) {
		return nil, mongo.ErrNoDocuments
	}

	user.ResetOTP = ""
	user.ResetOTPExpiresAt = time.Time{}

	copied := *user
	return &copied, nil
}

func (f *fakeUserRepo) byEmail(email string) (*model.User, bool) {
	for _, user := range f.users {
		if user.Email == email {
			return user, true
		}
	}

	return nil, false
}

// expireVerificationOTP backdates the stored verification code expiry.
func (f *fakeUserRepo) expireVerificationOTP(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, ok := f.users[id]; ok {
		user.VerifyOTPExpiresAt = time.Now().Add(-time.Minute)
	}
}

// expireResetOTP backdates the stored reset code expiry.
func (f *fakeUserRepo) expireResetOTP(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if user, ok := f.users[id]; ok {
		user.ResetOTPExpiresAt = time.Now().Add(-time.Minute)
	}
}

type sentMail struct {
	To      []string
	Subject string
	Body    string
}

type fakeMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	failErr error
}

func (f *fakeMailer) SendSimple(to []string, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failErr != nil {
		return f.failErr
	}

	f.sent = append(f.sent, sentMail{To: to, Subject: subject, Body: body})
	return nil
}

func (f *fakeMailer) lastMail() (sentMail, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.sent) == 0 {
		return sentMail{}, false
	}

	return f.sent[len(f.sent)-1], true
}
