package bolt

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"
	bberrors "go.etcd.io/bbolt/errors"

	"github.com/haukened/linkguard/internal/links/domain"
	"github.com/haukened/linkguard/internal/links/repos/ruleset"
)

var (
	bucketTenants = []byte("tenants")
	bucketMeta    = []byte("meta")
	keyUpdated    = []byte("updated")
)

// boltStore implements ruleset.Store using bbolt.
//
// Layout:
//
//	tenants/<tenant id>/<8-byte big-endian rule id> -> JSON DomainRule
//	meta/updated -> 8-byte big-endian unix seconds of the last mutation
type boltStore struct {
	db *bbolt.DB
}

// New opens (or creates) a Bolt database at path and ensures buckets exist.
func New(path string) (ruleset.Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketTenants); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return err
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &boltStore{db: db}, nil
}

func (s *boltStore) Close() error { return s.db.Close() }

// ListActiveRules returns the tenant's active rules in ID order.
func (s *boltStore) ListActiveRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error) {
	return s.list(ctx, tenantID, true)
}

// ListRules returns all of the tenant's rules in ID order.
func (s *boltStore) ListRules(ctx context.Context, tenantID string) ([]domain.DomainRule, error) {
	return s.list(ctx, tenantID, false)
}

func (s *boltStore) list(ctx context.Context, tenantID string, activeOnly bool) ([]domain.DomainRule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]domain.DomainRule, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tenantBucket(tx, tenantID)
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			var r domain.DomainRule
			if err := json.Unmarshal(v, &r); err != nil {
				return fmt.Errorf("decode rule %x: %w", k, err)
			}
			if activeOnly && !r.Active {
				return nil
			}
			out = append(out, r)
			return nil
		})
	})
	if err != nil {
		return nil, mapErr(err)
	}
	return out, nil
}

// InsertRule assigns the next sequence ID and persists rule. A rule with the
// same (domain, type) for the tenant yields domain.ErrDuplicateRule.
func (s *boltStore) InsertRule(ctx context.Context, rule domain.DomainRule) (domain.DomainRule, error) {
	if err := ctx.Err(); err != nil {
		return domain.DomainRule{}, err
	}
	if err := rule.Validate(); err != nil {
		return domain.DomainRule{}, err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.Bucket(bucketTenants).CreateBucketIfNotExists([]byte(rule.TenantID))
		if err != nil {
			return err
		}
		if err := b.ForEach(func(_, v []byte) error {
			var existing domain.DomainRule
			if err := json.Unmarshal(v, &existing); err != nil {
				return err
			}
			if existing.Key() == rule.Key() {
				return domain.ErrDuplicateRule
			}
			return nil
		}); err != nil {
			return err
		}
		id, err := b.NextSequence()
		if err != nil {
			return err
		}
		rule.ID = id
		buf, err := json.Marshal(rule)
		if err != nil {
			return err
		}
		if err := b.Put(itob(id), buf); err != nil {
			return err
		}
		return touch(tx)
	})
	if err != nil {
		return domain.DomainRule{}, mapErr(err)
	}
	return rule, nil
}

// DeleteRule removes the rule with id from the tenant bucket.
func (s *boltStore) DeleteRule(ctx context.Context, tenantID string, id uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tenantBucket(tx, tenantID)
		if b == nil || b.Get(itob(id)) == nil {
			return domain.ErrRuleNotFound
		}
		if err := b.Delete(itob(id)); err != nil {
			return err
		}
		return touch(tx)
	})
	return mapErr(err)
}

// UpdatedUnix returns the unix time of the last successful mutation, or 0.
func (s *boltStore) UpdatedUnix() int64 {
	var updated int64
	_ = s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(bucketMeta).Get(keyUpdated); len(v) == 8 {
			updated = int64(binary.BigEndian.Uint64(v))
		}
		return nil
	})
	return updated
}

func tenantBucket(tx *bbolt.Tx, tenantID string) *bbolt.Bucket {
	if tenantID == "" {
		return nil
	}
	root := tx.Bucket(bucketTenants)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(tenantID))
}

func touch(tx *bbolt.Tx) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(time.Now().Unix()))
	return tx.Bucket(bucketMeta).Put(keyUpdated, buf)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// mapErr translates bbolt's closed-database error into the domain sentinel.
func mapErr(err error) error {
	if errors.Is(err, bberrors.ErrDatabaseNotOpen) {
		return domain.ErrStoreClosed
	}
	return err
}

var _ ruleset.Store = (*boltStore)(nil)
