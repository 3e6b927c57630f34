package database

import (
	"path/filepath"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/simplegantt/planner/internal/planner"
)

func TestApplyMigrationsDensifiesSortOrder(testContext *testing.T) {
	tempDir := testContext.TempDir()
	databasePath := filepath.Join(tempDir, "migration.db")

	database, err := gorm.Open(sqlite.Open(databasePath), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}

	if err := database.AutoMigrate(&planner.Project{}, &planner.Task{}, &migrationRecord{}); err != nil {
		testContext.Fatalf("failed to migrate schema: %v", err)
	}

	projects := []planner.Project{
		{ID: "project-b", Name: "Beta", SortOrder: 9, UpdatedAtMillis: 1},
		{ID: "project-a", Name: "Alpha", SortOrder: 4, UpdatedAtMillis: 1},
	}
	if err := database.Create(&projects).Error; err != nil {
		testContext.Fatalf("failed to insert projects: %v", err)
	}
	tasks := []planner.Task{
		{ID: "task-2", ProjectID: "project-a", Title: "Second", StartDate: "2026-10-02", EndDate: "2026-10-02", SortOrder: 5, UpdatedAtMillis: 1},
		{ID: "task-1", ProjectID: "project-a", Title: "First", StartDate: "2026-10-01", EndDate: "2026-10-01", SortOrder: 5, UpdatedAtMillis: 1},
		{ID: "task-3", ProjectID: "project-b", Title: "Other", StartDate: "2026-10-01", EndDate: "2026-10-01", SortOrder: 3, UpdatedAtMillis: 1},
	}
	if err := database.Omit("Assignees").Create(&tasks).Error; err != nil {
		testContext.Fatalf("failed to insert tasks: %v", err)
	}

	if err := applyMigrations(database, zap.NewNop()); err != nil {
		testContext.Fatalf("failed to apply migrations: %v", err)
	}

	expectedProjects := map[string]int{"project-a": 0, "project-b": 1}
	for id, want := range expectedProjects {
		var stored planner.Project
		if err := database.Where("id = ?", id).Take(&stored).Error; err != nil {
			testContext.Fatalf("failed to reload project %s: %v", id, err)
		}
		if stored.SortOrder != want {
			testContext.Fatalf("expected project %s at %d, got %d", id, want, stored.SortOrder)
		}
	}

	expectedTasks := map[string]int{"task-1": 0, "task-2": 1, "task-3": 0}
	for id, want := range expectedTasks {
		var stored planner.Task
		if err := database.Where("id = ?", id).Take(&stored).Error; err != nil {
			testContext.Fatalf("failed to reload task %s: %v", id, err)
		}
		if stored.SortOrder != want {
			testContext.Fatalf("expected task %s at %d, got %d", id, want, stored.SortOrder)
		}
	}

	var record migrationRecord
	if err := database.Where("name = ?", migrationDensifySortOrder).Take(&record).Error; err != nil {
		testContext.Fatalf("expected migration record to be created: %v", err)
	}
	if record.AppliedAtSeconds == 0 {
		testContext.Fatalf("expected migration timestamp to be set")
	}
}
