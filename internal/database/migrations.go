package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/simplegantt/planner/internal/planner"
)

const migrationDensifySortOrder = "2026-10-01_densify_sort_order"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationDensifySortOrder, apply: densifySortOrder},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := db.Transaction(migration.apply); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// densifySortOrder rewrites project and per-project task sort orders into gapless zero-based sequences.
func densifySortOrder(db *gorm.DB) error {
	var projects []planner.Project
	if err := db.Order("sort_order ASC, name ASC, id ASC").Find(&projects).Error; err != nil {
		return err
	}
	for index, project := range projects {
		if project.SortOrder == index {
			continue
		}
		if err := db.Model(&planner.Project{}).Where("id = ?", project.ID).Update("sort_order", index).Error; err != nil {
			return err
		}
	}

	var tasks []planner.Task
	if err := db.Order("project_id ASC, sort_order ASC, start_date ASC, id ASC").Find(&tasks).Error; err != nil {
		return err
	}
	position := map[string]int{}
	for _, task := range tasks {
		index := position[task.ProjectID]
		position[task.ProjectID] = index + 1
		if task.SortOrder == index {
			continue
		}
		if err := db.Model(&planner.Task{}).Where("id = ?", task.ID).Update("sort_order", index).Error; err != nil {
			return err
		}
	}
	return nil
}
