package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"duelgate/internal/auth"
	"duelgate/internal/session"
)

// TokenCollection is the collection holding issued tokens.
const TokenCollection = "user_tokens"

// TokenStore keeps issued player tokens in MongoDB.
type TokenStore struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewTokenStore uses the user_tokens collection of database.
func NewTokenStore(database *mongo.Database) *TokenStore {
	return NewTokenStoreFromCollection(database.Collection(TokenCollection))
}

// NewTokenStoreFromCollection uses coll directly.
func NewTokenStoreFromCollection(coll *mongo.Collection) *TokenStore {
	return &TokenStore{coll: coll, now: time.Now}
}

// Save records an issued token.
func (s *TokenStore) Save(ctx context.Context, id session.PlayerID, username, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := s.coll.InsertOne(ctx, bson.M{
		"id":        int64(id),
		"username":  username,
		"token":     token,
		"active_at": s.now(),
	})
	if err != nil {
		return fmt.Errorf("saving token for player %d: %w", id, err)
	}
	return nil
}

// Lookup confirms the token was issued to id and refreshes its active_at.
// Missing tokens report auth.ErrTokenRevoked.
func (s *TokenStore) Lookup(ctx context.Context, id session.PlayerID, token string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"id": int64(id), "token": token}
	var doc bson.M
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return fmt.Errorf("token for player %d: %w", id, auth.ErrTokenRevoked)
		}
		return fmt.Errorf("looking up token for player %d: %w", id, err)
	}

	// active_at is informational; a failed touch does not reject the token.
	_, _ = s.coll.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"active_at": s.now()}})
	return nil
}

// Revoke deletes every token issued to id.
func (s *TokenStore) Revoke(ctx context.Context, id session.PlayerID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.coll.DeleteMany(ctx, bson.M{"id": int64(id)})
	if err != nil {
		return 0, fmt.Errorf("revoking tokens for player %d: %w", id, err)
	}
	return res.DeletedCount, nil
}
