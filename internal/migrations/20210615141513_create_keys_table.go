package migrations

import (
	"time"

	"gorm.io/gorm"
)

// keysTableV1 is the shape of the keys table as first created.
type keysTableV1 struct {
	ID                  string     `gorm:"primaryKey;type:varchar(255);not null"`
	PublicKey           string     `gorm:"type:text;not null"`
	PrivateKeyEncrypted string     `gorm:"type:text;not null"`
	Type                string     `gorm:"type:varchar(255);not null"`
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
	DeletedAt           *time.Time
}

func (keysTableV1) TableName() string {
	return "keys"
}

// CreateKeysTable creates the keys table. Down drops it, destroying every row.
var CreateKeysTable = &Migration{
	ID: "20210615141513_create_keys_table",
	Up: func(tx *gorm.DB) error {
		return createTable(tx, &keysTableV1{})
	},
	Down: func(tx *gorm.DB) error {
		return dropTableIfExists(tx, &keysTableV1{})
	},
}
