package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simplegantt/planner/internal/planner"
)

// Store implements planner.Store on top of GORM.
type Store struct {
	db             *gorm.DB
	historyEnabled bool
	inTransaction  bool
}

// NewStore wraps db. Task history is enabled only when its table exists.
func NewStore(db *gorm.DB) *Store {
	return &Store{
		db:             db,
		historyEnabled: db.Migrator().HasTable(&planner.TaskHistoryEntry{}),
	}
}

func (s *Store) Transaction(ctx context.Context, work func(tx planner.Store) error) error {
	if s.inTransaction {
		return work(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return work(&Store{db: tx, historyEnabled: s.historyEnabled, inTransaction: true})
	})
}

func (s *Store) Projects() planner.ProjectStore {
	return projectTable{db: s.db, lockRows: s.inTransaction}
}

func (s *Store) Users() planner.UserStore {
	return userTable{db: s.db, lockRows: s.inTransaction}
}

func (s *Store) Tasks() planner.TaskStore {
	return taskTable{db: s.db, lockRows: s.inTransaction}
}

func (s *Store) History() (planner.HistoryStore, bool) {
	return historyTable{db: s.db}, s.historyEnabled
}

type maxSortOrderRow struct {
	MaxSortOrder *int `gorm:"column:max_sort_order"`
}

type countRow struct {
	OwnerID string `gorm:"column:owner_id"`
	Total   int64  `gorm:"column:total"`
}

type projectTable struct {
	db       *gorm.DB
	lockRows bool
}

func (t projectTable) Find(ctx context.Context, projectID string) (*planner.Project, error) {
	var project planner.Project
	err := t.db.WithContext(ctx).Where("id = ?", projectID).Take(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func (t projectTable) List(ctx context.Context) ([]planner.Project, error) {
	var projects []planner.Project
	err := t.db.WithContext(ctx).Order("sort_order ASC, name ASC, id ASC").Find(&projects).Error
	return projects, err
}

func (t projectTable) ListSummaries(ctx context.Context) ([]planner.ProjectSummary, error) {
	projects, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var counts []countRow
	if err := t.db.WithContext(ctx).Model(&planner.Task{}).
		Select("project_id AS owner_id, COUNT(*) AS total").
		Group("project_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	totals := countsByOwner(counts)
	summaries := make([]planner.ProjectSummary, 0, len(projects))
	for _, project := range projects {
		summaries = append(summaries, planner.ProjectSummary{Project: project, TaskCount: totals[project.ID]})
	}
	return summaries, nil
}

func (t projectTable) Create(ctx context.Context, project planner.Project) error {
	return t.db.WithContext(ctx).Create(&project).Error
}

func (t projectTable) UpdateWhereUpdatedAt(ctx context.Context, projectID string, expectedUpdatedAt int64, changes planner.NameChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.Project{}).
		Where("id = ? AND updated_at_ms = ?", projectID, expectedUpdatedAt).
		Updates(nameColumns(changes))
	return result.RowsAffected, result.Error
}

func (t projectTable) Update(ctx context.Context, projectID string, changes planner.NameChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.Project{}).
		Where("id = ?", projectID).
		Updates(nameColumns(changes))
	return result.RowsAffected, result.Error
}

func (t projectTable) UpdatedAt(ctx context.Context, projectID string) (int64, bool, error) {
	return lockToken(forUpdate(t.db.WithContext(ctx), t.lockRows).Model(&planner.Project{}).Where("id = ?", projectID))
}

func (t projectTable) Delete(ctx context.Context, projectID string) (int64, error) {
	result := t.db.WithContext(ctx).Where("id = ?", projectID).Delete(&planner.Project{})
	return result.RowsAffected, result.Error
}

func (t projectTable) CountTasks(ctx context.Context, projectID string) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&planner.Task{}).Where("project_id = ?", projectID).Count(&count).Error
	return count, err
}

func (t projectTable) MaxSortOrder(ctx context.Context) (int, bool, error) {
	return maxSortOrder(t.db.WithContext(ctx).Model(&planner.Project{}))
}

func (t projectTable) SetSortOrder(ctx context.Context, projectID string, sortOrder int, updatedAt int64) error {
	return t.db.WithContext(ctx).Model(&planner.Project{}).
		Where("id = ?", projectID).
		Updates(map[string]any{"sort_order": sortOrder, "updated_at_ms": updatedAt}).Error
}

type userTable struct {
	db       *gorm.DB
	lockRows bool
}

func (t userTable) Find(ctx context.Context, userID string) (*planner.User, error) {
	var user planner.User
	err := t.db.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (t userTable) List(ctx context.Context) ([]planner.User, error) {
	var users []planner.User
	err := t.db.WithContext(ctx).Order("name ASC, id ASC").Find(&users).Error
	return users, err
}

func (t userTable) ListSummaries(ctx context.Context) ([]planner.UserSummary, error) {
	users, err := t.List(ctx)
	if err != nil {
		return nil, err
	}
	var counts []countRow
	if err := t.db.WithContext(ctx).Model(&planner.TaskAssignee{}).
		Select("user_id AS owner_id, COUNT(*) AS total").
		Group("user_id").
		Scan(&counts).Error; err != nil {
		return nil, err
	}
	totals := countsByOwner(counts)
	summaries := make([]planner.UserSummary, 0, len(users))
	for _, user := range users {
		summaries = append(summaries, planner.UserSummary{User: user, TaskCount: totals[user.ID]})
	}
	return summaries, nil
}

func (t userTable) Create(ctx context.Context, user planner.User) error {
	return t.db.WithContext(ctx).Create(&user).Error
}

func (t userTable) UpdateWhereUpdatedAt(ctx context.Context, userID string, expectedUpdatedAt int64, changes planner.NameChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.User{}).
		Where("id = ? AND updated_at_ms = ?", userID, expectedUpdatedAt).
		Updates(nameColumns(changes))
	return result.RowsAffected, result.Error
}

func (t userTable) Update(ctx context.Context, userID string, changes planner.NameChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.User{}).
		Where("id = ?", userID).
		Updates(nameColumns(changes))
	return result.RowsAffected, result.Error
}

func (t userTable) UpdatedAt(ctx context.Context, userID string) (int64, bool, error) {
	return lockToken(forUpdate(t.db.WithContext(ctx), t.lockRows).Model(&planner.User{}).Where("id = ?", userID))
}

func (t userTable) Delete(ctx context.Context, userID string) (int64, error) {
	result := t.db.WithContext(ctx).Where("id = ?", userID).Delete(&planner.User{})
	return result.RowsAffected, result.Error
}

func (t userTable) CountAssignments(ctx context.Context, userID string) (int64, error) {
	var count int64
	err := t.db.WithContext(ctx).Model(&planner.TaskAssignee{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (t userTable) CountExisting(ctx context.Context, userIDs []string) (int64, error) {
	if len(userIDs) == 0 {
		return 0, nil
	}
	var count int64
	err := t.db.WithContext(ctx).Model(&planner.User{}).Where("id IN ?", userIDs).Count(&count).Error
	return count, err
}

type taskTable struct {
	db       *gorm.DB
	lockRows bool
}

func (t taskTable) withAssignees(ctx context.Context) *gorm.DB {
	return t.db.WithContext(ctx).Preload("Assignees", func(db *gorm.DB) *gorm.DB {
		return db.Order("user_id ASC")
	})
}

func (t taskTable) FindInProject(ctx context.Context, projectID, taskID string) (*planner.Task, error) {
	var task planner.Task
	err := forUpdate(t.withAssignees(ctx), t.lockRows).Where("project_id = ? AND id = ?", projectID, taskID).Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &task, nil
}

func (t taskTable) ListByProject(ctx context.Context, projectID string) ([]planner.Task, error) {
	var tasks []planner.Task
	err := t.withAssignees(ctx).
		Where("project_id = ?", projectID).
		Order("sort_order ASC, start_date ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (t taskTable) ListDependents(ctx context.Context, projectID, predecessorTaskID string) ([]planner.Task, error) {
	var tasks []planner.Task
	err := t.withAssignees(ctx).
		Where("project_id = ? AND predecessor_task_id = ?", projectID, predecessorTaskID).
		Order("sort_order ASC, id ASC").
		Find(&tasks).Error
	return tasks, err
}

func (t taskTable) PredecessorOf(ctx context.Context, projectID, taskID string) (*string, bool, error) {
	var task planner.Task
	err := t.db.WithContext(ctx).
		Select("id", "predecessor_task_id").
		Where("project_id = ? AND id = ?", projectID, taskID).
		Take(&task).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return task.PredecessorTaskID, true, nil
}

func (t taskTable) MaxSortOrder(ctx context.Context, projectID string) (int, bool, error) {
	return maxSortOrder(t.db.WithContext(ctx).Model(&planner.Task{}).Where("project_id = ?", projectID))
}

func (t taskTable) Create(ctx context.Context, task planner.Task) error {
	task.Assignees = nil
	return t.db.WithContext(ctx).Omit(clause.Associations).Create(&task).Error
}

func (t taskTable) AddAssignees(ctx context.Context, taskID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]planner.TaskAssignee, 0, len(userIDs))
	for _, userID := range userIDs {
		rows = append(rows, planner.TaskAssignee{TaskID: taskID, UserID: userID})
	}
	return t.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

func (t taskTable) ReplaceAssignees(ctx context.Context, taskID string, userIDs []string) error {
	if err := t.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&planner.TaskAssignee{}).Error; err != nil {
		return err
	}
	return t.AddAssignees(ctx, taskID, userIDs)
}

func (t taskTable) UpdateWhereUpdatedAt(ctx context.Context, projectID, taskID string, expectedUpdatedAt int64, changes planner.TaskChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.Task{}).
		Where("project_id = ? AND id = ? AND updated_at_ms = ?", projectID, taskID, expectedUpdatedAt).
		Updates(taskColumns(changes))
	return result.RowsAffected, result.Error
}

func (t taskTable) Update(ctx context.Context, projectID, taskID string, changes planner.TaskChanges) (int64, error) {
	result := t.db.WithContext(ctx).Model(&planner.Task{}).
		Where("project_id = ? AND id = ?", projectID, taskID).
		Updates(taskColumns(changes))
	return result.RowsAffected, result.Error
}

func (t taskTable) UpdatedAt(ctx context.Context, projectID, taskID string) (int64, bool, error) {
	return lockToken(forUpdate(t.db.WithContext(ctx), t.lockRows).Model(&planner.Task{}).Where("project_id = ? AND id = ?", projectID, taskID))
}

func (t taskTable) Delete(ctx context.Context, projectID, taskID string) (int64, error) {
	var count int64
	if err := t.db.WithContext(ctx).Model(&planner.Task{}).Where("project_id = ? AND id = ?", projectID, taskID).Count(&count).Error; err != nil {
		return 0, err
	}
	if count == 0 {
		return 0, nil
	}
	if err := t.db.WithContext(ctx).Where("task_id = ?", taskID).Delete(&planner.TaskAssignee{}).Error; err != nil {
		return 0, err
	}
	result := t.db.WithContext(ctx).Where("project_id = ? AND id = ?", projectID, taskID).Delete(&planner.Task{})
	return result.RowsAffected, result.Error
}

func (t taskTable) SetSortOrder(ctx context.Context, projectID, taskID string, sortOrder int, updatedAt int64) error {
	return t.db.WithContext(ctx).Model(&planner.Task{}).
		Where("project_id = ? AND id = ?", projectID, taskID).
		Updates(map[string]any{"sort_order": sortOrder, "updated_at_ms": updatedAt}).Error
}

type historyTable struct{ db *gorm.DB }

func (t historyTable) Append(ctx context.Context, entry planner.TaskHistoryEntry) error {
	if err := t.db.WithContext(ctx).Create(&entry).Error; err != nil {
		return classifyHistoryError(err)
	}
	return nil
}

func (t historyTable) ListByTask(ctx context.Context, projectID, taskID string) ([]planner.TaskHistoryEntry, error) {
	var entries []planner.TaskHistoryEntry
	err := t.db.WithContext(ctx).
		Where("project_id = ? AND task_id = ?", projectID, taskID).
		Order("created_at_ms DESC, id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, classifyHistoryError(err)
	}
	return entries, nil
}

// classifyHistoryError maps a missing history table onto planner.ErrHistoryUnavailable.
func classifyHistoryError(err error) error {
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "no such table") || strings.Contains(message, "doesn't exist") {
		return fmt.Errorf("%w: %v", planner.ErrHistoryUnavailable, err)
	}
	return err
}

func nameColumns(changes planner.NameChanges) map[string]any {
	return map[string]any{
		"name":          changes.Name,
		"updated_at_ms": changes.UpdatedAtMillis,
	}
}

func taskColumns(changes planner.TaskChanges) map[string]any {
	columns := map[string]any{"updated_at_ms": changes.UpdatedAtMillis}
	if fields := changes.Fields; fields != nil {
		columns["title"] = fields.Title
		columns["note"] = fields.Note
		columns["start_date"] = fields.StartDate
		columns["end_date"] = fields.EndDate
		columns["progress"] = fields.Progress
		columns["sort_order"] = fields.SortOrder
		columns["predecessor_task_id"] = fields.PredecessorTaskID
	}
	return columns
}

// forUpdate turns a read inside a transaction into a locking current read, so a
// lock token re-read never comes from a stale snapshot. SQLite drops the clause.
func forUpdate(query *gorm.DB, enabled bool) *gorm.DB {
	if !enabled {
		return query
	}
	return query.Clauses(clause.Locking{Strength: "UPDATE"})
}

func lockToken(query *gorm.DB) (int64, bool, error) {
	var tokens []int64
	if err := query.Limit(1).Pluck("updated_at_ms", &tokens).Error; err != nil {
		return 0, false, err
	}
	if len(tokens) == 0 {
		return 0, false, nil
	}
	return tokens[0], true, nil
}

func maxSortOrder(query *gorm.DB) (int, bool, error) {
	var row maxSortOrderRow
	if err := query.Select("MAX(sort_order) AS max_sort_order").Scan(&row).Error; err != nil {
		return 0, false, err
	}
	if row.MaxSortOrder == nil {
		return 0, false, nil
	}
	return *row.MaxSortOrder, true, nil
}

func countsByOwner(rows []countRow) map[string]int64 {
	totals := make(map[string]int64, len(rows))
	for _, row := range rows {
		totals[row.OwnerID] = row.Total
	}
	return totals
}
