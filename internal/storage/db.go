package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gorilla/securecookie"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	apperrors "komun/internal/errors"
)

// SecureItem is one sealed entry. Value is never stored in plaintext.
type SecureItem struct {
	Key       string `gorm:"primaryKey"`
	Value     string `gorm:"not null"`
	UpdatedAt time.Time
}

func (SecureItem) TableName() string { return "secure_items" }

// SQLiteStore keeps sealed entries in a SQLite file.
type SQLiteStore struct {
	db *gorm.DB
	sc *securecookie.SecureCookie
}

// NewSQLiteStore opens (or creates) the database at path and seals values with keys.
func NewSQLiteStore(path string, keys Keys) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("create vault directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open vault: %w", err)
	}
	if err := db.AutoMigrate(&SecureItem{}); err != nil {
		return nil, fmt.Errorf("migrate vault: %w", err)
	}
	if err := os.Chmod(path, 0600); err != nil {
		return nil, fmt.Errorf("restrict vault permissions: %w", err)
	}

	sc := securecookie.New(keys.Hash, keys.Block)
	sc.SetSerializer(securecookie.JSONEncoder{})
	sc.MaxAge(0) // entries live until deleted

	return &SQLiteStore{db: db, sc: sc}, nil
}

func (s *SQLiteStore) Get(key string) (string, error) {
	var item SecureItem
	err := s.db.Where(&SecureItem{Key: key}).First(&item).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", apperrors.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("read %s: %w", key, err)
	}

	var value string
	if err := s.sc.Decode(key, item.Value, &value); err != nil {
		return "", fmt.Errorf("unseal %s: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Set(key, value string) error {
	sealed, err := s.sc.Encode(key, value)
	if err != nil {
		return fmt.Errorf("seal %s: %w", key, err)
	}

	item := SecureItem{Key: key, Value: sealed, UpdatedAt: time.Now()}
	err = s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&item).Error
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if err := s.db.Delete(&SecureItem{Key: key}).Error; err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
