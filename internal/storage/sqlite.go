package storage

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite" // Pure Go SQLite driver
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Document is a single key -> JSON row. Whole-document writes keep the
// storage semantics identical to the badger backend.
type Document struct {
	Key       string    `gorm:"primaryKey;column:key"`
	Value     []byte    `gorm:"type:text"`
	UpdatedAt time.Time
}

// SQLiteGateway is the sqlite-backed document store.
type SQLiteGateway struct {
	db *gorm.DB
}

// OpenSQLite opens (or creates) a sqlite-backed gateway at path.
func OpenSQLite(path string) (*SQLiteGateway, error) {
	sqliteDB, err := sql.Open("sqlite", path+"?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	sqliteDB.SetMaxOpenConns(1)
	sqliteDB.SetConnMaxLifetime(time.Hour)

	db, err := gorm.Open(sqlite.Dialector{Conn: sqliteDB}, &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if err := db.AutoMigrate(&Document{}); err != nil {
		return nil, fmt.Errorf("failed to migrate documents: %w", err)
	}

	return &SQLiteGateway{db: db}, nil
}

func (g *SQLiteGateway) Get(key string) ([]byte, error) {
	var doc Document
	err := g.db.Where("key = ?", key).First(&doc).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return doc.Value, nil
}

func (g *SQLiteGateway) Set(key string, value []byte) error {
	doc := Document{Key: key, Value: value, UpdatedAt: time.Now()}
	return g.db.Save(&doc).Error
}

func (g *SQLiteGateway) Delete(key string) error {
	return g.db.Where("key = ?", key).Delete(&Document{}).Error
}

func (g *SQLiteGateway) Keys() ([]string, error) {
	var keys []string
	err := g.db.Model(&Document{}).Order("key ASC").Pluck("key", &keys).Error
	return keys, err
}

func (g *SQLiteGateway) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
