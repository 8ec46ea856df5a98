package migrations

import (
	"database/sql"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type columnInfo struct {
	Name    string
	Type    string
	NotNull bool
	PK      bool
}

func TestCreateKeysTableUpCreatesSchema(t *testing.T) {
	db := openTestDB(t)

	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}

	want := []columnInfo{
		{Name: "id", Type: "varchar(255)", NotNull: true, PK: true},
		{Name: "public_key", Type: "text", NotNull: true},
		{Name: "private_key_encrypted", Type: "text", NotNull: true},
		{Name: "type", Type: "varchar(255)", NotNull: true},
		{Name: "created_at", Type: "datetime", NotNull: true},
		{Name: "updated_at", Type: "datetime", NotNull: true},
		{Name: "deleted_at", Type: "datetime", NotNull: false},
	}
	got := tableColumns(t, db, "keys")
	if !sameColumns(got, want) {
		t.Fatalf("unexpected keys schema:\n got %+v\nwant %+v", got, want)
	}
}

func TestCreateKeysTableDownRollsBackWithTransaction(t *testing.T) {
	db := openTestDB(t)
	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}

	errAbort := errors.New("abort")
	droppedInTx := false
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := CreateKeysTable.Down(tx); err != nil {
			return err
		}
		droppedInTx = !tx.Migrator().HasTable("keys")
		return errAbort
	})
	if !errors.Is(err, errAbort) {
		t.Fatalf("expected abort, got %v", err)
	}
	if !droppedInTx {
		t.Fatal("expected keys table to be dropped inside the transaction")
	}
	if !db.Migrator().HasTable("keys") {
		t.Fatal("expected rollback to restore the keys table")
	}
}

func TestCreateKeysTableUpFailsWhenTableExists(t *testing.T) {
	db := openTestDB(t)

	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("first up: %v", err)
	}
	err := CreateKeysTable.Up(db)
	if !errors.Is(err, ErrSchemaConflict) {
		t.Fatalf("expected schema conflict, got %v", err)
	}
}

func TestCreateKeysTableDownDropsTable(t *testing.T) {
	db := openTestDB(t)

	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := CreateKeysTable.Down(db); err != nil {
		t.Fatalf("down: %v", err)
	}
	if db.Migrator().HasTable("keys") {
		t.Fatal("expected keys table to be dropped")
	}
}

func TestCreateKeysTableDownIsIdempotent(t *testing.T) {
	db := openTestDB(t)

	if err := CreateKeysTable.Down(db); err != nil {
		t.Fatalf("down on missing table: %v", err)
	}
	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}
	if err := CreateKeysTable.Down(db); err != nil {
		t.Fatalf("first down: %v", err)
	}
	if err := CreateKeysTable.Down(db); err != nil {
		t.Fatalf("second down: %v", err)
	}
}

func TestCreateKeysTableRoundTrip(t *testing.T) {
	db := openTestDB(t)

	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("first up: %v", err)
	}
	first := tableColumns(t, db, "keys")

	if err := CreateKeysTable.Down(db); err != nil {
		t.Fatalf("down: %v", err)
	}
	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("second up: %v", err)
	}
	second := tableColumns(t, db, "keys")

	if !reflect.DeepEqual(first, second) {
		t.Fatalf("schema changed across round trip:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestKeysTableRequiresType(t *testing.T) {
	db := openTestDB(t)
	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}

	now := time.Now().UTC()
	err := db.Exec(
		"INSERT INTO keys (id, public_key, private_key_encrypted, created_at, updated_at) VALUES (?, ?, ?, ?, ?)",
		"k1", "pub", "enc", now, now,
	).Error
	if err == nil {
		t.Fatal("expected insert without type to fail")
	}
}

func TestKeysTableDeletedAtIsOptional(t *testing.T) {
	db := openTestDB(t)
	if err := CreateKeysTable.Up(db); err != nil {
		t.Fatalf("up: %v", err)
	}

	now := time.Now().UTC()
	if err := db.Exec(
		"INSERT INTO keys (id, public_key, private_key_encrypted, type, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)",
		"k1", "pub", "enc", "ECDSA", now, now,
	).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}

	var deletedAt sql.NullTime
	if err := db.Raw("SELECT deleted_at FROM keys WHERE id = ?", "k1").Row().Scan(&deletedAt); err != nil {
		t.Fatalf("select deleted_at: %v", err)
	}
	if deletedAt.Valid {
		t.Fatalf("expected deleted_at to be absent, got %v", deletedAt.Time)
	}
}

func TestAllIsSortedAndUnique(t *testing.T) {
	all := All()
	if len(all) == 0 {
		t.Fatal("expected at least one migration")
	}
	for i := 1; i < len(all); i++ {
		if all[i-1].ID >= all[i].ID {
			t.Fatalf("migrations out of order: %s before %s", all[i-1].ID, all[i].ID)
		}
	}
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "keys.db")), &gorm.Config{
		Logger: gormlogger.Discard,
	})
	if err != nil {
		t.Fatalf("open sqlite db: %v", err)
	}
	t.Cleanup(func() {
		sqlDB, err := db.DB()
		if err != nil {
			t.Fatalf("get sql db: %v", err)
		}
		if err := sqlDB.Close(); err != nil {
			t.Fatalf("close db: %v", err)
		}
	})
	return db
}

func tableColumns(t *testing.T, db *gorm.DB, table string) []columnInfo {
	t.Helper()
	rows, err := db.Raw("PRAGMA table_info(" + table + ")").Rows()
	if err != nil {
		t.Fatalf("table info: %v", err)
	}
	defer rows.Close()

	var cols []columnInfo
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			t.Fatalf("scan table info: %v", err)
		}
		cols = append(cols, columnInfo{Name: name, Type: typ, NotNull: notNull == 1, PK: pk > 0})
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate table info: %v", err)
	}
	return cols
}

// sameColumns compares column sets; sqlite reports declared types in the
// case gorm wrote them.
func sameColumns(got, want []columnInfo) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		g, w := got[i], want[i]
		if g.Name != w.Name || !strings.EqualFold(g.Type, w.Type) || g.NotNull != w.NotNull || g.PK != w.PK {
			return false
		}
	}
	return true
}

func ledgerCount(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&schemaMigration{}).Count(&count).Error; err != nil {
		t.Fatalf("count ledger: %v", err)
	}
	return count
}
