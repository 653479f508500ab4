// Package tokenstore persists Session Store tokens per browser session so a
// session survives a BFA restart.
package tokenstore

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"

	"github.com/boddenberg/hr-admin-bfa-go/internal/domain"
	"github.com/boddenberg/hr-admin-bfa-go/internal/port"
)

const keyPrefix = "session:"

// Badger stores sessions in an encrypted BadgerDB. Entries expire after ttl
// so abandoned browser sessions do not accumulate.
type Badger struct {
	db     *badger.DB
	ttl    time.Duration
	logger *zap.Logger
}

var _ port.SessionStorage = (*Badger)(nil)

// DeriveKey stretches secret into a 32-byte AES key.
func DeriveKey(secret string) ([]byte, error) {
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, []byte(secret), []byte("hrdash-tokenstore"), []byte("badger encryption key"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	return key, nil
}

// OpenBadger opens (or creates) the store at path.
func OpenBadger(path, secret string, ttl time.Duration, logger *zap.Logger) (*Badger, error) {
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}

	opts := badger.DefaultOptions(path).
		WithLogger(nil).
		WithEncryptionKey(key).
		WithIndexCacheSize(16 << 20)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %s: %w", path, err)
	}
	return &Badger{db: db, ttl: ttl, logger: logger}, nil
}

// Load returns the session stored under key, or nil when absent or expired.
func (b *Badger) Load(_ context.Context, key string) (*domain.Session, error) {
	var sess *domain.Session
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			sess = &domain.Session{}
			return json.Unmarshal(val, sess)
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	return sess, nil
}

// Save overwrites the session under key and resets its TTL.
func (b *Badger) Save(_ context.Context, key string, s *domain.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(keyPrefix+key), data)
		if b.ttl > 0 {
			e = e.WithTTL(b.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes the session under key. Missing keys are not an error.
func (b *Badger) Delete(_ context.Context, key string) error {
	return b.db.Update(func(txn *badger.Txn) error {
		err := txn.Delete([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		return err
	})
}

// RunGC reclaims value-log space every interval until ctx is done.
func (b *Badger) RunGC(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// one call rewrites at most one file; repeat until nothing is left
			for {
				if err := b.db.RunValueLogGC(0.5); err != nil {
					break
				}
			}
		}
	}
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	if err := b.db.Close(); err != nil {
		b.logger.Error("tokenstore: close failed", zap.Error(err))
		return err
	}
	return nil
}
