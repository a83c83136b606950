package sqlite

import (
	"context"
	"errors"
	"fmt"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fenggwsx/SlashRelay/internal/config"
	"github.com/fenggwsx/SlashRelay/internal/storage"
)

// Store is a GORM-backed SQLite implementation of storage.Log.
type Store struct {
	db *gorm.DB
}

type recordModel struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Room      string `gorm:"index:idx_room_id,priority:1;not null"`
	Username  string `gorm:"not null"`
	Text      string `gorm:"not null"`
	Timestamp string `gorm:"not null"`
}

func (recordModel) TableName() string {
	return "room_records"
}

// NewStore opens a SQLite database at the provided path and migrates it.
func NewStore(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(cfg.Path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	store := &Store{db: db}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return store, nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Migrate applies schema updates.
func (s *Store) Migrate(ctx context.Context) error {
	return s.db.WithContext(ctx).AutoMigrate(&recordModel{})
}

// Append inserts rec as the newest row of its room.
func (s *Store) Append(ctx context.Context, rec storage.Record) error {
	model := recordModel{
		Room:      rec.Room,
		Username:  rec.Username,
		Text:      rec.Text,
		Timestamp: rec.Timestamp,
	}
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return mapErr(err)
	}
	return nil
}

// Tail returns the last n rows of room in insertion order.
func (s *Store) Tail(ctx context.Context, room string, n int) ([]storage.Record, error) {
	if n <= 0 {
		return nil, nil
	}
	var models []recordModel
	err := s.db.WithContext(ctx).
		Where("room = ?", room).
		Order("id DESC").
		Limit(n).
		Find(&models).Error
	if err != nil {
		return nil, mapErr(err)
	}

	records := make([]storage.Record, len(models))
	for i, m := range models {
		records[len(models)-1-i] = storage.Record{
			Room:      m.Room,
			Username:  m.Username,
			Text:      m.Text,
			Timestamp: m.Timestamp,
		}
	}
	return records, nil
}

func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrInvalidDB) || err.Error() == "sql: database is closed" {
		return storage.ErrClosed
	}
	return err
}
