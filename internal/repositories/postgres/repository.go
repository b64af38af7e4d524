package postgres

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

type Repository struct {
	db             *gorm.DB
	players        *PlayerPostgreSQL
	skillRatings   *SkillRatingPostgreSQL
	sessions       *ImportSessionPostgreSQL
	commitRecords  *CommitRecordPostgreSQL
	mappingHistory *MappingHistoryPostgreSQL
	benchmarks     *BenchmarkPostgreSQL
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:             db,
		players:        NewPlayerPostgreSQL(db),
		skillRatings:   NewSkillRatingPostgreSQL(db),
		sessions:       NewImportSessionPostgreSQL(db),
		commitRecords:  NewCommitRecordPostgreSQL(db),
		mappingHistory: NewMappingHistoryPostgreSQL(db),
		benchmarks:     NewBenchmarkPostgreSQL(db),
	}
}

var _ repositories.Repository = (*Repository)(nil)

func (r *Repository) Players() repositories.PlayerRepository                { return r.players }
func (r *Repository) SkillRatings() repositories.SkillRatingRepository      { return r.skillRatings }
func (r *Repository) Sessions() repositories.ImportSessionRepository        { return r.sessions }
func (r *Repository) CommitRecords() repositories.CommitRecordRepository    { return r.commitRecords }
func (r *Repository) MappingHistory() repositories.MappingHistoryRepository { return r.mappingHistory }
func (r *Repository) Benchmarks() repositories.BenchmarkRepository          { return r.benchmarks }

func (r *Repository) WithTransaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

// getDB picks the transaction when one is given.
func getDB(ctx context.Context, db, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return db.WithContext(ctx)
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repositories.ErrDuplicate
	}
	return err
}

func applyPagination(query *gorm.DB, limit, offset int) *gorm.DB {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return query.Limit(limit).Offset(offset)
}
