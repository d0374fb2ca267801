// Package results archives the final standings of finished sessions.
package results

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/kuhhandel-server/internal/engine"
)

// Standing is one participant's row in a finished game.
type Standing struct {
	ID          uint      `gorm:"primaryKey"`
	SessionCode string    `gorm:"size:6;index;not null"`
	FinishedAt  time.Time `gorm:"not null"`
	Player      string    `gorm:"not null"`
	Score       int       `gorm:"not null"`
	Rank        int       `gorm:"not null"`
}

func (Standing) TableName() string { return "game_standings" }

// Rows converts a scoreboard into standings. Equal scores share a rank.
func Rows(code string, finishedAt time.Time, board engine.Scoreboard) []Standing {
	rows := make([]Standing, len(board))
	for i, s := range board {
		rank := i + 1
		if i > 0 && s.Score == board[i-1].Score {
			rank = rows[i-1].Rank
		}
		rows[i] = Standing{
			SessionCode: code,
			FinishedAt:  finishedAt,
			Player:      s.Name,
			Score:       s.Score,
			Rank:        rank,
		}
	}
	return rows
}

type Store struct {
	db  *gorm.DB
	now func() time.Time
}

// Open connects to postgres at dsn and migrates the standings table.
func Open(dsn string) (*Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open results db: %w", err)
	}
	if err := db.AutoMigrate(&Standing{}); err != nil {
		return nil, fmt.Errorf("migrate results db: %w", err)
	}
	return &Store{db: db, now: time.Now}, nil
}

// Record stores every standing of one game in a single transaction.
func (s *Store) Record(ctx context.Context, code string, board engine.Scoreboard) error {
	rows := Rows(code, s.now().UTC(), board)
	if len(rows) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
