package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/ibrbtv/backend/internal/auth"
	"github.com/ibrbtv/backend/internal/db"
)

// PostgresSessionStore persists admin refresh tokens to PostgreSQL.
type PostgresSessionStore struct {
	pool db.Pool
}

// NewPostgresSessionStore constructs a session store backed by PostgreSQL.
func NewPostgresSessionStore(pool db.Pool) *PostgresSessionStore {
	return &PostgresSessionStore{pool: pool}
}

// Save stores or updates a session record.
func (s *PostgresSessionStore) Save(ctx context.Context, session auth.Session) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, `
        INSERT INTO sessions (refresh_token, user_id, expires_at)
        VALUES ($1, $2, $3)
        ON CONFLICT (refresh_token)
        DO UPDATE SET user_id = EXCLUDED.user_id, expires_at = EXCLUDED.expires_at
    `, session.RefreshToken, session.UserID, session.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}

	return nil
}

// Find loads a session by its refresh token.
func (s *PostgresSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return auth.Session{}, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	var session auth.Session
	err = conn.QueryRow(ctx, `
        SELECT refresh_token, user_id, expires_at
        FROM sessions
        WHERE refresh_token = $1
    `, refreshToken).Scan(&session.RefreshToken, &session.UserID, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("select session: %w", err)
	}

	session.ExpiresAt = session.ExpiresAt.UTC()
	return session, nil
}

// Delete removes a session by its refresh token.
func (s *PostgresSessionStore) Delete(ctx context.Context, refreshToken string) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE refresh_token = $1`, refreshToken)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return auth.ErrSessionNotFound
	}

	return nil
}

// DeleteExpired purges sessions that expired before now.
func (s *PostgresSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tag, err := conn.Exec(ctx, `DELETE FROM sessions WHERE expires_at < $1`, now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

type mongoSession struct {
	RefreshToken string    `bson:"_id"`
	UserID       string    `bson:"userId"`
	ExpiresAt    time.Time `bson:"expiresAt"`
}

// MongoSessionStore persists admin refresh tokens to MongoDB.
type MongoSessionStore struct {
	database *mongo.Database
}

// NewMongoSessionStore constructs a session store backed by MongoDB.
func NewMongoSessionStore(database *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{database: database}
}

func (s *MongoSessionStore) collection() *mongo.Collection {
	return s.database.Collection(collectionSessions)
}

// Save stores or updates a session record.
func (s *MongoSessionStore) Save(ctx context.Context, session auth.Session) error {
	doc := mongoSession{RefreshToken: session.RefreshToken, UserID: session.UserID, ExpiresAt: session.ExpiresAt.UTC()}
	_, err := s.collection().ReplaceOne(ctx, bson.M{"_id": session.RefreshToken}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Find loads a session by its refresh token.
func (s *MongoSessionStore) Find(ctx context.Context, refreshToken string) (auth.Session, error) {
	var doc mongoSession
	if err := s.collection().FindOne(ctx, bson.M{"_id": refreshToken}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("find session: %w", err)
	}
	return auth.Session{RefreshToken: doc.RefreshToken, UserID: doc.UserID, ExpiresAt: doc.ExpiresAt.UTC()}, nil
}

// Delete removes a session by its refresh token.
func (s *MongoSessionStore) Delete(ctx context.Context, refreshToken string) error {
	res, err := s.collection().DeleteOne(ctx, bson.M{"_id": refreshToken})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if res.DeletedCount == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

// DeleteExpired purges sessions that expired before now.
func (s *MongoSessionStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.collection().DeleteMany(ctx, bson.M{"expiresAt": bson.M{"$lt": now.UTC()}})
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	return res.DeletedCount, nil
}

var _ auth.SessionStore = (*PostgresSessionStore)(nil)
var _ auth.SessionStore = (*MongoSessionStore)(nil)
var _ auth.SessionPurger = (*PostgresSessionStore)(nil)
var _ auth.SessionPurger = (*MongoSessionStore)(nil)
