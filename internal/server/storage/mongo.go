// Package storage persists auth keys and users in MongoDB so they
// survive restarts. The in-memory registries in the server API stay
// authoritative; this store is write-through on create and read-through
// on an unknown auth-key id.
package storage

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AuthKeyDoc is the stored auth key record.
type AuthKeyDoc struct {
	AuthKeyID  int64     `bson:"auth_key_id"`
	AuthKey    []byte    `bson:"auth_key"`
	CreatedAt  time.Time `bson:"created_at"`
	LastUsedAt time.Time `bson:"last_used_at"`
}

// UserDoc stores user data following the MTProto User field names.
type UserDoc struct {
	ID         int64     `bson:"id"`
	AccessHash int64     `bson:"access_hash"`
	FirstName  string    `bson:"first_name"`
	LastName   string    `bson:"last_name"`
	Username   string    `bson:"username"`
	Phone      string    `bson:"phone"`
	CreatedAt  time.Time `bson:"created_at"`
	UpdatedAt  time.Time `bson:"updated_at"`
}

// Store is the persistence surface the server API consumes.
type Store interface {
	SaveAuthKey(ctx context.Context, id int64, key []byte) error
	GetAuthKey(ctx context.Context, id int64) ([]byte, error)
	SaveUser(ctx context.Context, user *UserDoc) error
	FindUserByPhone(ctx context.Context, phone string) (*UserDoc, error)
	Close(ctx context.Context) error
}

type mongoStore struct {
	client   *mongo.Client
	authKeys *mongo.Collection
	users    *mongo.Collection
}

// Connect opens the MongoDB-backed store and ensures the unique
// indexes on auth_key_id, user id and phone.
func Connect(ctx context.Context, uri string) (Store, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, errors.Wrap(err, "mongo connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo ping")
	}
	db := client.Database("tgserver")
	s := &mongoStore{
		client:   client,
		authKeys: db.Collection("auth_keys"),
		users:    db.Collection("users"),
	}
	_, err = s.authKeys.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "auth_key_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, errors.Wrap(err, "auth_keys index")
	}
	_, err = s.users.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "phone", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "users index")
	}
	return s, nil
}

func (s *mongoStore) SaveAuthKey(ctx context.Context, id int64, key []byte) error {
	now := time.Now()
	_, err := s.authKeys.UpdateOne(ctx,
		bson.M{"auth_key_id": id},
		bson.M{
			"$set":         bson.M{"auth_key": key, "last_used_at": now},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "save auth key")
}

func (s *mongoStore) GetAuthKey(ctx context.Context, id int64) ([]byte, error) {
	var doc AuthKeyDoc
	err := s.authKeys.FindOne(ctx, bson.M{"auth_key_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get auth key")
	}
	return doc.AuthKey, nil
}

func (s *mongoStore) SaveUser(ctx context.Context, user *UserDoc) error {
	now := time.Now()
	user.UpdatedAt = now
	_, err := s.users.UpdateOne(ctx,
		bson.M{"id": user.ID},
		bson.M{
			"$set": bson.M{
				"access_hash": user.AccessHash,
				"first_name":  user.FirstName,
				"last_name":   user.LastName,
				"username":    user.Username,
				"phone":       user.Phone,
				"updated_at":  now,
			},
			"$setOnInsert": bson.M{"created_at": now},
		},
		options.Update().SetUpsert(true),
	)
	return errors.Wrap(err, "save user")
}

func (s *mongoStore) FindUserByPhone(ctx context.Context, phone string) (*UserDoc, error) {
	var doc UserDoc
	err := s.users.FindOne(ctx, bson.M{"phone": phone}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "find user")
	}
	return &doc, nil
}

func (s *mongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
