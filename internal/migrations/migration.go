// Package migrations holds the versioned schema changes for the key
// repository and the runner that applies them.
//
// Each migration owns a frozen copy of the table shape it creates, so
// changes to the runtime models never rewrite history.
package migrations

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/schema"
)

// ErrSchemaConflict is returned when a migration tries to create a table
// that is already present.
var ErrSchemaConflict = errors.New("schema conflict")

// Migration is a versioned, reversible schema change. IDs sort in apply order.
type Migration struct {
	ID   string
	Up   func(tx *gorm.DB) error
	Down func(tx *gorm.DB) error
}

// All returns every migration known to the service, in apply order.
func All() []*Migration {
	return []*Migration{
		CreateKeysTable,
	}
}

func createTable(tx *gorm.DB, model schema.Tabler) error {
	if tx.Migrator().HasTable(model.TableName()) {
		return fmt.Errorf("%w: table %q already exists", ErrSchemaConflict, model.TableName())
	}
	return tx.Migrator().CreateTable(model)
}

// dropTableIfExists issues a plain DROP on tx. The dialect migrators add
// CASCADE, and MySQL's runs on a separate pooled connection.
func dropTableIfExists(tx *gorm.DB, model schema.Tabler) error {
	return tx.Exec("DROP TABLE IF EXISTS ?", clause.Table{Name: model.TableName()}).Error
}
