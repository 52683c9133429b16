package repository

import (
	"context"
	"errors"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/younes-bami/hrcut-app/internal/model"
)

const (
	idxUniqEmail    = "uniq_email"
	idxUniqUsername = "uniq_username"
)

type MongoCustomersRepository struct {
	coll *mongo.Collection
}

func NewMongoCustomersRepository(coll *mongo.Collection) *MongoCustomersRepository {
	return &MongoCustomersRepository{coll: coll}
}

var _ CustomersRepository = (*MongoCustomersRepository)(nil)

// EnsureSchema creates the unique indexes backing the username/email invariants.
func (r *MongoCustomersRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName(idxUniqEmail).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "username", Value: 1}},
			Options: options.Index().SetName(idxUniqUsername).SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "phoneNumber", Value: 1}},
			Options: options.Index().SetName("idx_phone"),
		},
		{
			Keys:    bson.D{{Key: "authUserId", Value: 1}},
			Options: options.Index().SetName("idx_auth_user").SetSparse(true),
		},
	})
	return err
}

func (r *MongoCustomersRepository) Insert(ctx context.Context, c *model.Customer) error {
	_, err := r.coll.InsertOne(ctx, c)
	return mapMongoErr(err)
}

func (r *MongoCustomersRepository) findOne(ctx context.Context, filter bson.D) (*model.Customer, error) {
	var c model.Customer
	if err := r.coll.FindOne(ctx, filter).Decode(&c); err != nil {
		return nil, mapMongoErr(err)
	}
	return &c, nil
}

func (r *MongoCustomersRepository) GetByID(ctx context.Context, id string) (*model.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: "_id", Value: id}})
}

func (r *MongoCustomersRepository) GetByUsername(ctx context.Context, username string) (*model.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: "username", Value: username}})
}

func (r *MongoCustomersRepository) GetByEmail(ctx context.Context, email string) (*model.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: "email", Value: email}})
}

func (r *MongoCustomersRepository) GetByPhone(ctx context.Context, phone string) (*model.Customer, error) {
	return r.findOne(ctx, bson.D{{Key: "phoneNumber", Value: phone}})
}

func (r *MongoCustomersRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*model.Customer, error) {
	if authUserID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.D{{Key: "authUserId", Value: authUserID}})
}

func (r *MongoCustomersRepository) Update(ctx context.Context, c *model.Customer) error {
	set := bson.D{
		{Key: "username", Value: c.Username},
		{Key: "firstName", Value: c.FirstName},
		{Key: "lastName", Value: c.LastName},
		{Key: "email", Value: c.Email},
		{Key: "phoneNumber", Value: c.PhoneNumber},
		{Key: "profilePicture", Value: c.ProfilePicture},
		{Key: "bio", Value: c.Bio},
		{Key: "location", Value: c.Location},
		{Key: "preferredHairdresserId", Value: c.PreferredHairdresserID},
		{Key: "updatedAt", Value: c.UpdatedAt},
	}
	res, err := r.coll.UpdateByID(ctx, c.ID, bson.D{{Key: "$set", Value: set}})
	if err != nil {
		return mapMongoErr(err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func mapMongoErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		msg := err.Error()
		switch {
		case strings.Contains(msg, idxUniqEmail):
			return &DuplicateError{Field: "email"}
		case strings.Contains(msg, idxUniqUsername):
			return &DuplicateError{Field: "username"}
		default:
			return &DuplicateError{Field: "id"}
		}
	}
	return err
}
