package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/DoyleJ11/name-guess-backend/internal/engine"
	"github.com/DoyleJ11/name-guess-backend/internal/gameerr"
)

const pgUniqueViolation = "23505"

// Gorm stores rooms in postgres. Every save rewrites the room's children
// inside one transaction guarded by the version column on rooms.
type Gorm struct {
	db  *gorm.DB
	log *zap.Logger
}

func OpenPostgres(ctx context.Context, dsn string, log *zap.Logger) (*Gorm, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	g := NewGorm(db, log)
	if err := g.Migrate(ctx); err != nil {
		return nil, multierr.Append(err, g.Close())
	}
	return g, nil
}

func NewGorm(db *gorm.DB, log *zap.Logger) *Gorm {
	return &Gorm{db: db, log: log.Named("store")}
}

func (g *Gorm) Migrate(ctx context.Context) error {
	err := g.db.WithContext(ctx).AutoMigrate(
		&roomRecord{},
		&memberRecord{},
		&roundRecord{},
		&assignmentRecord{},
		&answerRecord{},
	)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (g *Gorm) Load(ctx context.Context, roomID string) (engine.State, error) {
	var rec roomRecord
	err := g.db.WithContext(ctx).
		Preload("Members", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Rounds", func(db *gorm.DB) *gorm.DB { return db.Order("number") }).
		Preload("Rounds.Assignments", func(db *gorm.DB) *gorm.DB { return db.Order("position") }).
		Preload("Rounds.Answers", func(db *gorm.DB) *gorm.DB { return db.Order("id") }).
		First(&rec, "id = ?", roomID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return engine.State{}, ErrRoomNotFound
	}
	if err != nil {
		return engine.State{}, g.mapErr("load", roomID, err)
	}
	return fromRecord(rec), nil
}

func (g *Gorm) Save(ctx context.Context, s engine.State, expectedVersion int) error {
	rec := toRecord(s)
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if expectedVersion == 0 {
			if err := tx.Omit("Members", "Rounds").Create(&rec).Error; err != nil {
				return err
			}
		} else {
			res := tx.Model(&roomRecord{}).
				Where("id = ? AND version = ?", rec.ID, expectedVersion).
				Updates(map[string]any{
					"name":     rec.Name,
					"owner_id": rec.OwnerID,
					"status":   rec.Status,
					"capacity": rec.Capacity,
					"version":  rec.Version,
				})
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return ErrStaleVersion
			}
			if err := tx.Where("room_id = ?", rec.ID).Delete(&memberRecord{}).Error; err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", rec.ID).Delete(&roundRecord{}).Error; err != nil {
				return err
			}
		}

		if len(rec.Members) > 0 {
			if err := tx.Create(&rec.Members).Error; err != nil {
				return err
			}
		}
		if len(rec.Rounds) > 0 {
			if err := tx.Create(&rec.Rounds).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return g.mapErr("save", s.Room.ID, err)
	}
	return nil
}

func (g *Gorm) Delete(ctx context.Context, roomID string) error {
	if err := g.db.WithContext(ctx).Delete(&roomRecord{ID: roomID}).Error; err != nil {
		return g.mapErr("delete", roomID, err)
	}
	return nil
}

func (g *Gorm) Close() error {
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// mapErr turns driver errors into the game's error kinds. Unique violations
// mean a concurrent writer inserted the same row first.
func (g *Gorm) mapErr(op, roomID string, err error) error {
	var gerr *gameerr.Error
	if errors.As(err, &gerr) {
		return err
	}
	if isUniqueViolation(err) {
		return ErrStaleVersion
	}
	g.log.Error("store operation failed", zap.String("op", op), zap.String("room", roomID), zap.Error(err))
	return gameerr.Internal("store "+op, err)
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
