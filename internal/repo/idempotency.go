package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-admin-console/internal/domain"
)

// ErrDuplicate indicates that an idempotency record already exists for the
// given (operator, scope, key) tuple.
var ErrDuplicate = errors.New("duplicate")

const idemTuple = "operator = ? AND scope = ? AND key = ?"

// GetIdempotency returns a non-expired record or ErrNotFound.
func GetIdempotency(ctx context.Context, db *gorm.DB, operator, scope, key string, now time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(idemTuple+" AND expires_at > ?", operator, scope, key, now).
		First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// ReserveIdempotency claims key for a write that is about to run by inserting
// a pending record (Status 0). When the key is already held it returns
// ErrDuplicate together with the live record, which is nil if that record
// expired in the meantime.
func ReserveIdempotency(ctx context.Context, db *gorm.DB, operator, scope, key string, ttl time.Duration, now time.Time) (*domain.Idempotency, error) {
	// An expired record keeps its unique index slot until purged.
	if err := db.WithContext(ctx).
		Where(idemTuple+" AND expires_at <= ?", operator, scope, key, now).
		Delete(&domain.Idempotency{}).Error; err != nil {
		return nil, err
	}

	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		Operator:  operator,
		Scope:     scope,
		Key:       key,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	if err := db.WithContext(ctx).Create(rec).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, err
		}
		cur, gerr := GetIdempotency(ctx, db, operator, scope, key, now)
		if gerr != nil && !errors.Is(gerr, ErrNotFound) {
			return nil, gerr
		}
		return cur, ErrDuplicate
	}
	return rec, nil
}

// CompleteIdempotency stores the response on a pending record. It returns
// ErrNotFound when no pending record holds the key.
func CompleteIdempotency(ctx context.Context, db *gorm.DB, operator, scope, key string, status int, body []byte) error {
	res := db.WithContext(ctx).
		Model(&domain.Idempotency{}).
		Where(idemTuple+" AND status = 0", operator, scope, key).
		Updates(map[string]any{"status": status, "body": body})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ReleaseIdempotency drops a pending record so the key can be used again.
// Completed records are left alone.
func ReleaseIdempotency(ctx context.Context, db *gorm.DB, operator, scope, key string) error {
	return db.WithContext(ctx).
		Where(idemTuple+" AND status = 0", operator, scope, key).
		Delete(&domain.Idempotency{}).Error
}

// PurgeIdempotency deletes expired records and reports how many were removed.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	// glebarez/sqlite often returns plain-text errors for UNIQUE violations.
	low := strings.ToLower(err.Error())
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		strings.Contains(low, "unique constraint failed") ||
		strings.Contains(low, "constraint failed: unique")
}

// IdempotencyStore adapts the idempotency table to the HTTP replay middleware.
type IdempotencyStore struct {
	DB  *gorm.DB
	TTL time.Duration
}

// Reserve claims key for a new write. When reserved is false, rec is the
// record already holding the key (pending or completed), or nil if it
// vanished between the insert and the read.
func (s IdempotencyStore) Reserve(ctx context.Context, operator, scope, key string, now time.Time) (rec *domain.Idempotency, reserved bool, err error) {
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	rec, err = ReserveIdempotency(ctx, s.DB, operator, scope, key, ttl, now)
	if errors.Is(err, ErrDuplicate) {
		return rec, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

// Complete records the response of a reserved write.
func (s IdempotencyStore) Complete(ctx context.Context, operator, scope, key string, status int, body []byte) error {
	return CompleteIdempotency(ctx, s.DB, operator, scope, key, status, body)
}

// Release frees a reservation whose write did not succeed.
func (s IdempotencyStore) Release(ctx context.Context, operator, scope, key string) error {
	return ReleaseIdempotency(ctx, s.DB, operator, scope, key)
}
