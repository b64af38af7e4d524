package postgres

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
	"github.com/SAP-F-2025/roster-import-service/internal/models"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories"
)

type PlayerPostgreSQL struct {
	db *gorm.DB
}

func NewPlayerPostgreSQL(db *gorm.DB) *PlayerPostgreSQL {
	return &PlayerPostgreSQL{db: db}
}

var _ repositories.PlayerRepository = (*PlayerPostgreSQL)(nil)

func (p *PlayerPostgreSQL) Create(ctx context.Context, tx *gorm.DB, player *models.Player) error {
	return translate(getDB(ctx, p.db, tx).Create(player).Error)
}

func (p *PlayerPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, organizationID, id string) (*models.Player, error) {
	var player models.Player
	if err := getDB(ctx, p.db, tx).
		Where("organization_id = ? AND id = ?", organizationID, id).
		First(&player).Error; err != nil {
		return nil, err
	}
	return &player, nil
}

func (p *PlayerPostgreSQL) Update(ctx context.Context, tx *gorm.DB, player *models.Player) error {
	return getDB(ctx, p.db, tx).Save(player).Error
}

func (p *PlayerPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	return getDB(ctx, p.db, tx).Delete(&models.Player{}, "id = ?", id).Error
}

func (p *PlayerPostgreSQL) List(ctx context.Context, tx *gorm.DB, organizationID string, filters repositories.PlayerFilters) ([]*models.Player, int64, error) {
	var players []*models.Player
	var total int64

	query := getDB(ctx, p.db, tx).Model(&models.Player{}).Where("organization_id = ?", organizationID)
	if filters.ImportSessionID != nil {
		query = query.Where("import_session_id = ?", *filters.ImportSessionID)
	}
	if s := importer.NormalizeName(filters.Search); s != "" {
		like := "%" + s + "%"
		query = query.Where("normalized_first_name LIKE ? OR normalized_last_name LIKE ?", like, like)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	query = applyPagination(query, filters.Limit, filters.Offset)
	if err := query.Order("normalized_last_name, normalized_first_name").Find(&players).Error; err != nil {
		return nil, 0, err
	}
	return players, total, nil
}

// FindCandidates returns players sharing the probe's surname. That covers
// exact identity, same name with another birthday, and similar first names.
func (p *PlayerPostgreSQL) FindCandidates(ctx context.Context, orgID string, probe importer.PlayerProbe) ([]importer.ExistingPlayer, error) {
	last := strings.TrimSpace(probe.LastName)
	if last == "" {
		return nil, nil
	}

	var players []*models.Player
	if err := p.db.WithContext(ctx).
		Where("organization_id = ? AND normalized_last_name = ?", orgID, last).
		Order("created_at").
		Find(&players).Error; err != nil {
		return nil, err
	}

	out := make([]importer.ExistingPlayer, 0, len(players))
	for _, pl := range players {
		out = append(out, importer.ExistingPlayer{ID: pl.ID, Fields: pl.Record()})
	}
	return out, nil
}

type SkillRatingPostgreSQL struct {
	db *gorm.DB
}

func NewSkillRatingPostgreSQL(db *gorm.DB) *SkillRatingPostgreSQL {
	return &SkillRatingPostgreSQL{db: db}
}

func (s *SkillRatingPostgreSQL) CreateBatch(ctx context.Context, tx *gorm.DB, ratings []*models.SkillRating) error {
	if len(ratings) == 0 {
		return nil
	}
	return getDB(ctx, s.db, tx).CreateInBatches(ratings, 100).Error
}

func (s *SkillRatingPostgreSQL) GetByPlayer(ctx context.Context, tx *gorm.DB, playerID string) ([]*models.SkillRating, error) {
	var ratings []*models.SkillRating
	if err := getDB(ctx, s.db, tx).Where("player_id = ?", playerID).Order("skill_code").Find(&ratings).Error; err != nil {
		return nil, err
	}
	return ratings, nil
}

func (s *SkillRatingPostgreSQL) DeleteImported(ctx context.Context, tx *gorm.DB, playerID, sessionID string) (int64, error) {
	res := getDB(ctx, s.db, tx).
		Where("player_id = ? AND import_session_id = ?", playerID, sessionID).
		Delete(&models.SkillRating{})
	return res.RowsAffected, res.Error
}
