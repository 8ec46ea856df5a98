package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"keyrepository/internal/metrics"
)

// KeyType discriminates the algorithm or usage of a stored key.
type KeyType string

const (
	KeyTypeECDSA KeyType = "ECDSA"
	KeyTypeRSA   KeyType = "RSA"
)

// maxColumnLength matches the varchar(255) columns of the keys table.
const maxColumnLength = 255

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

var (
	ErrKeyNotFound = errors.New("key not found")
	ErrInvalidKey  = errors.New("invalid key")
)

// Key is a stored key pair. The private half is an opaque encrypted blob;
// encryption happens outside this service. A non-null DeletedAt marks the
// record as soft deleted.
type Key struct {
	ID                  string         `gorm:"primaryKey;type:varchar(255);not null" json:"id"`
	PublicKey           string         `gorm:"type:text;not null" json:"public_key"`
	PrivateKeyEncrypted string         `gorm:"type:text;not null" json:"private_key_encrypted"`
	Type                KeyType        `gorm:"type:varchar(255);not null" json:"type"`
	CreatedAt           time.Time      `gorm:"not null" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null" json:"updated_at"`
	DeletedAt           gorm.DeletedAt `json:"deleted_at"`
}

func (Key) TableName() string {
	return "keys"
}

// KeyInput holds the fields required to store a new key record.
type KeyInput struct {
	PublicKey           string
	PrivateKeyEncrypted string
	Type                KeyType
}

// KeyUpdate replaces the non-nil fields of a key record.
type KeyUpdate struct {
	PublicKey           *string
	PrivateKeyEncrypted *string
	Type                *KeyType
}

// ListKeysOptions filters and pages ListKeys.
type ListKeysOptions struct {
	Type           KeyType
	IncludeDeleted bool
	Limit          int
	Offset         int
}

// WithDefaults returns the paging ListKeys actually applies: a missing
// limit becomes the default, larger limits are capped and negative
// offsets start at zero.
func (o ListKeysOptions) WithDefaults() ListKeysOptions {
	if o.Limit <= 0 {
		o.Limit = defaultListLimit
	}
	if o.Limit > maxListLimit {
		o.Limit = maxListLimit
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	return o
}

// CreateKey stores a new key record under a fresh UUID and returns it as read back.
func CreateKey(ctx context.Context, db *gorm.DB, in KeyInput) (key *Key, err error) {
	defer observe("create", &err)

	if err := validateMaterial("public_key", in.PublicKey); err != nil {
		return nil, err
	}
	if err := validateMaterial("private_key_encrypted", in.PrivateKeyEncrypted); err != nil {
		return nil, err
	}
	if err := validateType(in.Type); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	key = &Key{
		ID:                  uuid.NewString(),
		PublicKey:           in.PublicKey,
		PrivateKeyEncrypted: in.PrivateKeyEncrypted,
		Type:                in.Type,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := db.WithContext(ctx).Create(key).Error; err != nil {
		return nil, fmt.Errorf("create key: %w", err)
	}

	return findKey(ctx, db, key.ID)
}

// FindKey returns the live key record with the given id.
func FindKey(ctx context.Context, db *gorm.DB, id string) (key *Key, err error) {
	defer observe("find", &err)
	return findKey(ctx, db, id)
}

func findKey(ctx context.Context, db *gorm.DB, id string) (*Key, error) {
	var key Key
	err := db.WithContext(ctx).First(&key, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("find key: %w", err)
	}
	return &key, nil
}

// ListKeys returns key records ordered by creation time.
func ListKeys(ctx context.Context, db *gorm.DB, opts ListKeysOptions) (keys []Key, err error) {
	defer observe("list", &err)

	opts = opts.WithDefaults()
	q := db.WithContext(ctx).Model(&Key{})
	if opts.IncludeDeleted {
		q = q.Unscoped()
	}
	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}

	keys = make([]Key, 0)
	if err := q.Order("created_at ASC").Order("id ASC").Limit(opts.Limit).Offset(opts.Offset).Find(&keys).Error; err != nil {
		return nil, fmt.Errorf("list keys: %w", err)
	}
	return keys, nil
}

// UpdateKey replaces key material or type on a live record, e.g. after
// an externally performed rotation, and bumps updated_at.
func UpdateKey(ctx context.Context, db *gorm.DB, id string, in KeyUpdate) (key *Key, err error) {
	defer observe("update", &err)

	updates := map[string]any{}
	if in.PublicKey != nil {
		if err := validateMaterial("public_key", *in.PublicKey); err != nil {
			return nil, err
		}
		updates["public_key"] = *in.PublicKey
	}
	if in.PrivateKeyEncrypted != nil {
		if err := validateMaterial("private_key_encrypted", *in.PrivateKeyEncrypted); err != nil {
			return nil, err
		}
		updates["private_key_encrypted"] = *in.PrivateKeyEncrypted
	}
	if in.Type != nil {
		if err := validateType(*in.Type); err != nil {
			return nil, err
		}
		updates["type"] = string(*in.Type)
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrInvalidKey)
	}
	updates["updated_at"] = time.Now().UTC()

	res := db.WithContext(ctx).Model(&Key{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return nil, fmt.Errorf("update key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}

	return findKey(ctx, db, id)
}

// DeleteKey soft deletes a live key record by setting deleted_at.
func DeleteKey(ctx context.Context, db *gorm.DB, id string) (err error) {
	defer observe("delete", &err)

	res := db.WithContext(ctx).Where("id = ?", id).Delete(&Key{})
	if res.Error != nil {
		return fmt.Errorf("delete key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}
	return nil
}

// RestoreKey clears deleted_at on a soft deleted key record.
func RestoreKey(ctx context.Context, db *gorm.DB, id string) (key *Key, err error) {
	defer observe("restore", &err)

	res := db.WithContext(ctx).Unscoped().Model(&Key{}).
		Where("id = ? AND deleted_at IS NOT NULL", id).
		Updates(map[string]any{"deleted_at": nil, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return nil, fmt.Errorf("restore key: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("%w: %s", ErrKeyNotFound, id)
	}

	return findKey(ctx, db, id)
}

// CountKeys returns the number of live key records per type.
func CountKeys(ctx context.Context, db *gorm.DB) (map[KeyType]int64, error) {
	var rows []struct {
		Type  string
		Count int64
	}
	if err := db.WithContext(ctx).Model(&Key{}).Select("type, COUNT(*) AS count").Group("type").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("count keys: %w", err)
	}

	counts := make(map[KeyType]int64, len(rows))
	for _, row := range rows {
		counts[KeyType(row.Type)] = row.Count
	}
	return counts, nil
}

func validateMaterial(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidKey, field)
	}
	return nil
}

func validateType(t KeyType) error {
	if strings.TrimSpace(string(t)) == "" {
		return fmt.Errorf("%w: type is required", ErrInvalidKey)
	}
	if utf8.RuneCountInString(string(t)) > maxColumnLength {
		return fmt.Errorf("%w: type exceeds %d characters", ErrInvalidKey, maxColumnLength)
	}
	return nil
}

func observe(op string, err *error) {
	result := metrics.Result(*err)
	if errors.Is(*err, ErrKeyNotFound) {
		result = "not_found"
	} else if errors.Is(*err, ErrInvalidKey) {
		result = "invalid"
	}
	metrics.KeyOperationsTotal.WithLabelValues(op, result).Inc()
}
