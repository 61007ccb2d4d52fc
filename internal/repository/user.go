package repository

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/kittipos-dev/user-auth-api/internal/model"
)

// UserRepository defines the interface for user-related database operations.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) (*model.User, error)
	GetUser(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*model.User, error)

	// SetVerificationOTP stores an active account-verification code with its
	// expiry, replacing any previous one.
	SetVerificationOTP(ctx context.Context, id, code string, expiresAt time.Time) error

	// SetResetOTP stores an active password-reset code with its expiry,
	// replacing any previous one.
	SetResetOTP(ctx context.Context, id, code string, expiresAt time.Time) error

	// ConsumeVerificationOTP marks the user verified and clears the
	// verification code and expiry in a single conditional update. The update
	// only applies when the stored code matches and has not expired;
	// mongo.ErrNoDocuments is returned otherwise.
	ConsumeVerificationOTP(ctx context.Context, id, code string) (*model.User, error)

	// ConsumeResetOTP clears the reset code and expiry in a single
	// conditional update keyed by email. The update only applies when the
	// stored code matches and has not expired; mongo.ErrNoDocuments is
	// returned otherwise.
	ConsumeResetOTP(ctx context.Context, email, code string) (*model.User, error)
}

// UpdateUserParams defines the optional parameters for updating a user.
// Only the fields that are not nil will be updated.
type UpdateUserParams struct {
	Name         *string
	PasswordHash *string
}

const userCollection = "users"

type userMongoRepository struct {
	db *mongo.Database
}

// NewUserMongoRepository creates a new MongoDB repository for users.
func NewUserMongoRepository(ctx context.Context, logger *zerolog.Logger, db *mongo.Database) UserRepository {
	collection := db.Collection(userCollection)

	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create user indexes")
	}

	return &userMongoRepository{db: db}
}

func (r *userMongoRepository) CreateUser(ctx context.Context, user *model.User) (*model.User, error) {
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now

	result, err := r.db.Collection(userCollection).InsertOne(ctx, user)
	if err != nil {
		return nil, err
	}

	if objectID, ok := result.InsertedID.(bson.ObjectID); ok {
		user.ID = objectID
	} else {
		return nil, errors.New("failed to convert inserted ID to ObjectID")
	}

	return user, nil
}

func (r *userMongoRepository) GetUser(ctx context.Context, id string) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	result := r.db.Collection(userCollection).FindOne(ctx, bson.M{"_id": objectID})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	result := r.db.Collection(userCollection).FindOne(ctx, bson.M{"email": email})
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) UpdateUser(
	ctx context.Context,
	id string,
	params UpdateUserParams,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Build update query
	updateMap := bson.M{}
	if params.Name != nil {
		updateMap["name"] = *params.Name
	}
	if params.PasswordHash != nil {
		updateMap["password_hash"] = *params.PasswordHash
	}

	if len(updateMap) == 0 {
		return nil, errors.New("no user fields to update")
	}

	updateMap["updated_at"] = time.Now()

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": updateMap},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}

func (r *userMongoRepository) SetVerificationOTP(
	ctx context.Context,
	id, code string,
	expiresAt time.Time,
) error {
	return r.setOTP(ctx, id, bson.M{
		"verify_otp":            code,
		"verify_otp_expires_at": expiresAt,
	})
}

func (r *userMongoRepository) SetResetOTP(
	ctx context.Context,
	id, code string,
	expiresAt time.Time,
) error {
	return r.setOTP(ctx, id, bson.M{
		"reset_otp":            code,
		"reset_otp_expires_at": expiresAt,
	})
}

func (r *userMongoRepository) setOTP(ctx context.Context, id string, fields bson.M) error {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return err
	}

	fields["updated_at"] = time.Now()

	result, err := r.db.Collection(userCollection).UpdateOne(
		ctx,
		bson.M{"_id": objectID},
		bson.M{"$set": fields},
	)
	if err != nil {
		return err
	}

	if result.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}

	return nil
}

func (r *userMongoRepository) ConsumeVerificationOTP(
	ctx context.Context,
	id, code string,
) (*model.User, error) {
	objectID, err := bson.ObjectIDFromHex(id)
	if err != nil {
		return nil, err
	}

	// Check-and-clear in one storage operation so a concurrent consume of the
	// same code cannot succeed twice.
	filter := bson.M{
		"_id":                   objectID,
		"verify_otp":            code,
		"verify_otp_expires_at": bson.M{"$gt": time.Now()},
	}
	update := bson.M{
		"$set": bson.M{
			"verified":              true,
			"verify_otp":            "",
			"verify_otp_expires_at": time.Time{},
			"updated_at":            time.Now(),
		},
	}

	return r.consumeOTP(ctx, filter, update, code)
}

func (r *userMongoRepository) ConsumeResetOTP(
	ctx context.Context,
	email, code string,
) (*model.User, error) {
	filter := bson.M{
		"email":                email,
		"reset_otp":            code,
		"reset_otp_expires_at": bson.M{"$gt": time.Now()},
	}
	update := bson.M{
		"$set": bson.M{
			"reset_otp":            "",
			"reset_otp_expires_at": time.Time{},
			"updated_at":           time.Now(),
		},
	}

	return r.consumeOTP(ctx, filter, update, code)
}

func (r *userMongoRepository) consumeOTP(
	ctx context.Context,
	filter, update bson.M,
	code string,
) (*model.User, error) {
	// An empty stored code must never match an empty supplied code.
	if code == "" {
		return nil, mongo.ErrNoDocuments
	}

	result := r.db.Collection(userCollection).FindOneAndUpdate(
		ctx,
		filter,
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	if result.Err() != nil {
		return nil, result.Err()
	}

	var user model.User
	if err := result.Decode(&user); err != nil {
		return nil, err
	}

	return &user, nil
}
