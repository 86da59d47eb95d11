package idforge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const resetKeyPrefix = "ifp"

var (
	errResetNotFound         = errors.New("reset record not found")
	errResetSecretMismatch   = errors.New("reset secret mismatch")
	errResetAttemptsExceeded = errors.New("reset attempts exceeded")
	errResetBackend          = errors.New("reset backend unavailable")
)

// passwordResetRecord backs one outstanding reset token. Only the
// SHA-256 of the token secret is stored. The record is destroyed on
// successful consumption and when the attempt budget runs out.
type passwordResetRecord struct {
	AccountID  string `json:"account_id"`
	SecretHash string `json:"secret_hash"`
	ExpiresAt  int64  `json:"expires_at"`
	Attempts   int    `json:"attempts"`
}

type resetStore struct {
	redis redis.UniversalClient
}

func newResetStore(client redis.UniversalClient) *resetStore {
	return &resetStore{redis: client}
}

func (s *resetStore) key(resetID string) string {
	return resetKeyPrefix + ":" + resetID
}

func (s *resetStore) Save(ctx context.Context, resetID string, record *passwordResetRecord, ttl time.Duration) error {
	encoded, err := json.Marshal(record)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(resetID), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", errResetBackend, err)
	}
	return nil
}

// Consume atomically validates the provided secret hash against the
// record. A match deletes the record and returns it (single use). A
// mismatch increments the attempt counter, destroying the record when
// the budget is exhausted.
func (s *resetStore) Consume(ctx context.Context, resetID, providedHash string, maxAttempts int) (*passwordResetRecord, error) {
	const maxRetries = 4
	key := s.key(resetID)

	for i := 0; i < maxRetries; i++ {
		var matched *passwordResetRecord

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			data, err := tx.Get(ctx, key).Bytes()
			if err != nil {
				return err
			}

			var record passwordResetRecord
			if err := json.Unmarshal(data, &record); err != nil {
				return err
			}

			if time.Now().Unix() > record.ExpiresAt {
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Del(ctx, key)
					return nil
				})
				if err != nil {
					return err
				}
				return errResetNotFound
			}

			if subtle.ConstantTimeCompare([]byte(record.SecretHash), []byte(providedHash)) != 1 {
				record.Attempts++
				if record.Attempts >= maxAttempts {
					_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
						pipe.Del(ctx, key)
						return nil
					})
					if err != nil {
						return err
					}
					return errResetAttemptsExceeded
				}

				ttl := time.Until(time.Unix(record.ExpiresAt, 0))
				updated, err := json.Marshal(&record)
				if err != nil {
					return err
				}
				_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
					pipe.Set(ctx, key, updated, ttl)
					return nil
				})
				if err != nil {
					return err
				}
				return errResetSecretMismatch
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, key)
				return nil
			})
			if err != nil {
				return err
			}
			matched = &record
			return nil
		}, key)

		if err == redis.TxFailedErr {
			continue
		}
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return nil, errResetNotFound
			}
			if errors.Is(err, errResetNotFound) ||
				errors.Is(err, errResetSecretMismatch) ||
				errors.Is(err, errResetAttemptsExceeded) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %v", errResetBackend, err)
		}
		return matched, nil
	}

	// Retry budget spent on contention; the record still exists, so this
	// must surface as a retryable backend error, not token invalidity.
	return nil, fmt.Errorf("%w: attempt update contention", errResetBackend)
}
