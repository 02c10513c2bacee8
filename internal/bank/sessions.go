// internal/bank/sessions.go
package bank

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Synergyfy/Help2Home-sub002/internal/common/errors"
	"github.com/Synergyfy/Help2Home-sub002/internal/models"
)

const sessionKeyPrefix = "bank_session:"

// SessionStore keeps in-flight handshake sessions in Redis. Sessions are
// ephemeral: they expire on TTL and are deleted the moment a handshake
// resolves or is abandoned.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func sessionKey(applicationID string) string {
	return sessionKeyPrefix + applicationID
}

func (s *SessionStore) Save(ctx context.Context, session *models.BankSession) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return errors.NewSessionStoreFailedError("save", err)
	}
	if err := s.client.Set(ctx, sessionKey(session.ApplicationID), raw, s.ttl).Err(); err != nil {
		return errors.NewSessionStoreFailedError("save", err)
	}
	return nil
}

// Get returns the stored session, or nil when none exists.
func (s *SessionStore) Get(ctx context.Context, applicationID string) (*models.BankSession, error) {
	raw, err := s.client.Get(ctx, sessionKey(applicationID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewSessionStoreFailedError("get", err)
	}

	var session models.BankSession
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, errors.NewSessionStoreFailedError("get", err)
	}
	return &session, nil
}

// Touch records one poll attempt, preserving the remaining TTL.
func (s *SessionStore) Touch(ctx context.Context, applicationID string, now time.Time) error {
	session, err := s.Get(ctx, applicationID)
	if err != nil {
		return err
	}
	if session == nil {
		return nil
	}
	session.Touch(now)

	raw, err := json.Marshal(session)
	if err != nil {
		return errors.NewSessionStoreFailedError("touch", err)
	}
	if err := s.client.Set(ctx, sessionKey(applicationID), raw, redis.KeepTTL).Err(); err != nil {
		return errors.NewSessionStoreFailedError("touch", err)
	}
	return nil
}

func (s *SessionStore) Delete(ctx context.Context, applicationID string) error {
	if err := s.client.Del(ctx, sessionKey(applicationID)).Err(); err != nil {
		return errors.NewSessionStoreFailedError("delete", err)
	}
	return nil
}
