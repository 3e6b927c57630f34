package planner_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/simplegantt/planner/internal/memstore"
	"github.com/simplegantt/planner/internal/planner"
)

func TestCreateTaskAppendsSortOrderAndRecordsHistory(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	alice := mustCreateUser(t, service, "Alice")

	first := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{
		Title:       "  Design  ",
		Progress:    10,
		AssigneeIDs: []string{alice.ID, alice.ID},
	})
	second := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Build"})

	if first.Title != "Design" {
		t.Fatalf("expected trimmed title, got %q", first.Title)
	}
	if first.SortOrder != 0 || second.SortOrder != 1 {
		t.Fatalf("expected sort orders 0 and 1, got %d and %d", first.SortOrder, second.SortOrder)
	}
	if got := first.AssigneeIDs(); !slices.Equal(got, []string{alice.ID}) {
		t.Fatalf("expected deduplicated assignees, got %v", got)
	}
	if !first.UpdatedAt().Equal(testNow) {
		t.Fatalf("expected lock token at creation time, got %v", first.UpdatedAt())
	}

	history, err := service.ListTaskHistory(ctx, project.ID, first.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(history) != 1 || history[0].Action != planner.HistoryActionCreated {
		t.Fatalf("expected one created entry, got %#v", history)
	}
	wantFields := []string{"title", "note", "startDate", "endDate", "progress", "assigneeIds", "predecessorTaskId"}
	if got := history[0].ChangedFields(); !slices.Equal(got, wantFields) {
		t.Fatalf("unexpected created fields %v", got)
	}
	if got := history[0].AssigneeIDs(); !slices.Equal(got, []string{alice.ID}) {
		t.Fatalf("unexpected assignee snapshot %v", got)
	}
}

func TestCreateTaskHonoursExplicitSortOrder(t *testing.T) {
	service, _ := newMemoryService(t)
	project := mustCreateProject(t, service, "Launch")
	sortOrder := 7

	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Pinned", SortOrder: &sortOrder})
	if task.SortOrder != 7 {
		t.Fatalf("expected explicit sort order, got %d", task.SortOrder)
	}

	history, err := service.ListTaskHistory(context.Background(), project.ID, task.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if fields := history[0].ChangedFields(); fields[len(fields)-1] != "sortOrder" {
		t.Fatalf("expected sortOrder in created fields, got %v", fields)
	}
}

func TestCreateTaskRejectsInvalidInput(t *testing.T) {
	service, _ := newMemoryService(t)
	project := mustCreateProject(t, service, "Launch")
	negative := -1

	testCases := []struct {
		name  string
		input planner.CreateTaskInput
	}{
		{name: "blank title", input: planner.CreateTaskInput{Title: "   ", StartDate: "2026-10-01", EndDate: "2026-10-02"}},
		{name: "malformed date", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-1", EndDate: "2026-10-02"}},
		{name: "impossible date", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-02-30", EndDate: "2026-03-02"}},
		{name: "reversed range", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-05", EndDate: "2026-10-01"}},
		{name: "progress above range", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-01", EndDate: "2026-10-02", Progress: 101}},
		{name: "negative sort order", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-01", EndDate: "2026-10-02", SortOrder: &negative}},
		{name: "unknown assignee", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-01", EndDate: "2026-10-02", AssigneeIDs: []string{"user-missing"}}},
		{name: "unknown predecessor", input: planner.CreateTaskInput{Title: "x", StartDate: "2026-10-01", EndDate: "2026-10-02", PredecessorTaskID: stringPointer("task-missing")}},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.CreateTask(context.Background(), project.ID, testCase.input)
			if !errors.Is(err, planner.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	tasks, err := service.ListTasks(context.Background(), project.ID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(tasks) != 0 {
		t.Fatalf("expected no tasks after rejected creates, got %d", len(tasks))
	}
}

func TestCreateTaskRejectsPredecessorFromAnotherProject(t *testing.T) {
	service, _ := newMemoryService(t)
	launch := mustCreateProject(t, service, "Launch")
	other := mustCreateProject(t, service, "Other")
	foreign := mustCreateTask(t, service, other.ID, planner.CreateTaskInput{Title: "Foreign"})

	_, err := service.CreateTask(context.Background(), launch.ID, planner.CreateTaskInput{
		Title:             "Local",
		StartDate:         "2026-10-01",
		EndDate:           "2026-10-02",
		PredecessorTaskID: &foreign.ID,
	})
	if !errors.Is(err, planner.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTaskOperationsRequireProject(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()

	if _, err := service.ListTasks(ctx, "project-missing"); !errors.Is(err, planner.ErrProjectNotFound) {
		t.Fatalf("expected project not found on list, got %v", err)
	}
	_, err := service.CreateTask(ctx, "project-missing", planner.CreateTaskInput{Title: "x", StartDate: "2026-10-01", EndDate: "2026-10-01"})
	if !errors.Is(err, planner.ErrProjectNotFound) {
		t.Fatalf("expected project not found on create, got %v", err)
	}
	if _, err := service.DeleteTask(ctx, "project-missing", "task-1"); !errors.Is(err, planner.ErrProjectNotFound) {
		t.Fatalf("expected project not found on delete, got %v", err)
	}
	if _, err := service.ListTaskHistory(ctx, "project-missing", "task-1"); !errors.Is(err, planner.ErrProjectNotFound) {
		t.Fatalf("expected project not found on history, got %v", err)
	}
}

func TestUpdateTaskTitleRecordsChangedField(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft"})

	updated, err := service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt: task.UpdatedAt(),
		Title:     planner.Set("Final"),
		Note:      planner.Set(task.Note),
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.Title != "Final" {
		t.Fatalf("expected new title, got %q", updated.Title)
	}
	if updated.UpdatedAtMillis <= task.UpdatedAtMillis {
		t.Fatalf("expected lock token to advance, got %d after %d", updated.UpdatedAtMillis, task.UpdatedAtMillis)
	}

	history, err := service.ListTaskHistory(ctx, project.ID, task.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected two history entries, got %d", len(history))
	}
	if history[0].Action != planner.HistoryActionUpdated || history[1].Action != planner.HistoryActionCreated {
		t.Fatalf("expected newest first ordering, got %s then %s", history[0].Action, history[1].Action)
	}
	if got := history[0].ChangedFields(); !slices.Equal(got, []string{"title"}) {
		t.Fatalf("expected only title to change, got %v", got)
	}
	if history[0].Title != "Final" {
		t.Fatalf("expected snapshot of the new title, got %q", history[0].Title)
	}
}

func TestUpdateTaskNoOpKeepsLockToken(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	alice := mustCreateUser(t, service, "Alice")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft", AssigneeIDs: []string{alice.ID}})

	updated, err := service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt:   task.UpdatedAt(),
		Title:       planner.Set("Draft"),
		Progress:    planner.Set(task.Progress),
		AssigneeIDs: planner.Set([]string{alice.ID, alice.ID}),
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.UpdatedAtMillis != task.UpdatedAtMillis {
		t.Fatalf("expected unchanged lock token, got %d want %d", updated.UpdatedAtMillis, task.UpdatedAtMillis)
	}

	history, err := service.ListTaskHistory(ctx, project.ID, task.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("expected no history for a no-op update, got %d entries", len(history))
	}
}

func TestUpdateTaskAssigneesOnlyAdvancesLockToken(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	alice := mustCreateUser(t, service, "Alice")
	bob := mustCreateUser(t, service, "Bob")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft", AssigneeIDs: []string{alice.ID}})

	updated, err := service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt:   task.UpdatedAt(),
		AssigneeIDs: planner.Set([]string{bob.ID, alice.ID}),
	})
	if err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if updated.UpdatedAtMillis == task.UpdatedAtMillis {
		t.Fatalf("expected lock token to advance on assignee change")
	}
	want := []string{alice.ID, bob.ID}
	slices.Sort(want)
	if got := updated.AssigneeIDs(); !slices.Equal(got, want) {
		t.Fatalf("unexpected assignees %v", got)
	}

	history, err := service.ListTaskHistory(ctx, project.ID, task.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if got := history[0].ChangedFields(); !slices.Equal(got, []string{"assigneeIds"}) {
		t.Fatalf("expected assigneeIds change, got %v", got)
	}

	_, err = service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt:   updated.UpdatedAt(),
		AssigneeIDs: planner.Set([]string{"user-ghost"}),
	})
	if !errors.Is(err, planner.ErrValidation) {
		t.Fatalf("expected validation error for unknown assignee, got %v", err)
	}
}

func TestUpdateTaskRejectsStaleLockToken(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft"})

	first, err := service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt: task.UpdatedAt(),
		Title:     planner.Set("First"),
	})
	if err != nil {
		t.Fatalf("unexpected first update error: %v", err)
	}
	if first.UpdatedAtMillis == task.UpdatedAtMillis {
		t.Fatalf("expected first update to advance the token")
	}

	_, err = service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt: task.UpdatedAt(),
		Title:     planner.Set("Second"),
	})
	if !errors.Is(err, planner.ErrOptimisticLock) {
		t.Fatalf("expected optimistic lock error, got %v", err)
	}
	var lockErr *planner.OptimisticLockError
	if !errors.As(err, &lockErr) || lockErr.ID != task.ID || lockErr.Entity != "task" {
		t.Fatalf("unexpected lock error details: %#v", err)
	}

	tasks, err := service.ListTasks(ctx, project.ID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if tasks[0].Title != "First" {
		t.Fatalf("expected first writer to win, got %q", tasks[0].Title)
	}
}

func TestUpdateTaskReturnsNilForUnknownTask(t *testing.T) {
	service, _ := newMemoryService(t)
	project := mustCreateProject(t, service, "Launch")

	updated, err := service.UpdateTask(context.Background(), project.ID, "task-missing", planner.UpdateTaskInput{
		UpdatedAt: testNow,
		Title:     planner.Set("x"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated != nil {
		t.Fatalf("expected nil task, got %#v", updated)
	}
}

func TestUpdateTaskRejectsReversedDateRange(t *testing.T) {
	service, _ := newMemoryService(t)
	project := mustCreateProject(t, service, "Launch")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft", StartDate: "2026-10-01", EndDate: "2026-10-05"})

	_, err := service.UpdateTask(context.Background(), project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt: task.UpdatedAt(),
		StartDate: planner.Set("2026-10-06"),
	})
	if !errors.Is(err, planner.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateTaskPredecessorRules(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	taskA := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "A"})
	taskB := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "B", PredecessorTaskID: &taskA.ID})
	taskC := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "C", PredecessorTaskID: &taskB.ID})

	if taskB.PredecessorTaskID == nil || *taskB.PredecessorTaskID != taskA.ID {
		t.Fatalf("expected B to depend on A, got %v", taskB.PredecessorTaskID)
	}

	testCases := []struct {
		name        string
		predecessor string
	}{
		{name: "self reference", predecessor: taskA.ID},
		{name: "two cycle", predecessor: taskB.ID},
		{name: "three cycle", predecessor: taskC.ID},
		{name: "missing task", predecessor: "task-missing"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := service.UpdateTask(ctx, project.ID, taskA.ID, planner.UpdateTaskInput{
				UpdatedAt:         taskA.UpdatedAt(),
				PredecessorTaskID: planner.Set(stringPointer(testCase.predecessor)),
			})
			if !errors.Is(err, planner.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}

	cleared, err := service.UpdateTask(ctx, project.ID, taskC.ID, planner.UpdateTaskInput{
		UpdatedAt:         taskC.UpdatedAt(),
		PredecessorTaskID: planner.Set[*string](nil),
	})
	if err != nil {
		t.Fatalf("unexpected clear error: %v", err)
	}
	if cleared.PredecessorTaskID != nil {
		t.Fatalf("expected predecessor to be cleared, got %v", *cleared.PredecessorTaskID)
	}

	rewired, err := service.UpdateTask(ctx, project.ID, taskA.ID, planner.UpdateTaskInput{
		UpdatedAt:         taskA.UpdatedAt(),
		PredecessorTaskID: planner.Set(&taskC.ID),
	})
	if err != nil {
		t.Fatalf("expected A to accept independent C as predecessor, got %v", err)
	}
	if rewired.PredecessorTaskID == nil || *rewired.PredecessorTaskID != taskC.ID {
		t.Fatalf("unexpected predecessor %v", rewired.PredecessorTaskID)
	}
}

func TestDeleteTaskClearsDependents(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	alice := mustCreateUser(t, service, "Alice")
	taskA := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "A", AssigneeIDs: []string{alice.ID}})
	taskB := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "B", PredecessorTaskID: &taskA.ID})

	deleted, err := service.DeleteTask(ctx, project.ID, taskA.ID)
	if err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}
	if !deleted {
		t.Fatalf("expected delete to report true")
	}

	tasks, err := service.ListTasks(ctx, project.ID)
	if err != nil {
		t.Fatalf("unexpected list error: %v", err)
	}
	if len(tasks) != 1 || tasks[0].ID != taskB.ID {
		t.Fatalf("expected only B to remain, got %v", taskIDs(tasks))
	}
	if tasks[0].PredecessorTaskID != nil {
		t.Fatalf("expected dangling predecessor to be cleared")
	}
	if tasks[0].UpdatedAtMillis == taskB.UpdatedAtMillis {
		t.Fatalf("expected dependent lock token to advance")
	}

	dependentHistory, err := service.ListTaskHistory(ctx, project.ID, taskB.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if got := dependentHistory[0].ChangedFields(); !slices.Equal(got, []string{"predecessorTaskId"}) {
		t.Fatalf("expected predecessor change on dependent, got %v", got)
	}

	deletedHistory, err := service.ListTaskHistory(ctx, project.ID, taskA.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if deletedHistory[0].Action != planner.HistoryActionDeleted || deletedHistory[0].Title != "A" {
		t.Fatalf("expected deleted snapshot of A, got %#v", deletedHistory[0])
	}

	summaries, err := service.ListUserSummaries(ctx)
	if err != nil {
		t.Fatalf("unexpected summaries error: %v", err)
	}
	if summaries[0].TaskCount != 0 {
		t.Fatalf("expected assignment rows to be removed, got %d", summaries[0].TaskCount)
	}

	again, err := service.DeleteTask(ctx, project.ID, taskA.ID)
	if err != nil {
		t.Fatalf("unexpected second delete error: %v", err)
	}
	if again {
		t.Fatalf("expected second delete to report false")
	}
}

func TestReorderTasks(t *testing.T) {
	service, _ := newMemoryService(t)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	first := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "First"})
	second := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Second"})
	third := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Third"})
	order := []string{third.ID, first.ID, second.ID}

	reordered, err := service.ReorderTasks(ctx, project.ID, order)
	if err != nil {
		t.Fatalf("unexpected reorder error: %v", err)
	}
	if got := taskIDs(reordered); !slices.Equal(got, order) {
		t.Fatalf("unexpected order %v", got)
	}
	for index, task := range reordered {
		if task.SortOrder != index {
			t.Fatalf("expected dense sort order %d for %s, got %d", index, task.ID, task.SortOrder)
		}
	}

	again, err := service.ReorderTasks(ctx, project.ID, order)
	if err != nil {
		t.Fatalf("unexpected repeated reorder error: %v", err)
	}
	for index := range again {
		if again[index].SortOrder != reordered[index].SortOrder {
			t.Fatalf("expected idempotent reorder")
		}
		if again[index].UpdatedAtMillis != reordered[index].UpdatedAtMillis {
			t.Fatalf("expected unchanged rows to keep their lock token")
		}
	}

	invalid := [][]string{
		{third.ID, first.ID},
		{third.ID, first.ID, second.ID, "task-extra"},
		{third.ID, first.ID, first.ID},
		{third.ID, first.ID, "task-unknown"},
	}
	for _, ids := range invalid {
		if _, err := service.ReorderTasks(ctx, project.ID, ids); !errors.Is(err, planner.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", ids, err)
		}
	}
}

func TestTaskHistoryIsOptional(t *testing.T) {
	store := memstore.New(memstore.WithoutHistory())
	service := newTestService(t, store)
	ctx := context.Background()
	project := mustCreateProject(t, service, "Launch")
	task := mustCreateTask(t, service, project.ID, planner.CreateTaskInput{Title: "Draft"})

	if _, err := service.UpdateTask(ctx, project.ID, task.ID, planner.UpdateTaskInput{
		UpdatedAt: task.UpdatedAt(),
		Title:     planner.Set("Final"),
	}); err != nil {
		t.Fatalf("unexpected update error: %v", err)
	}
	if _, err := service.DeleteTask(ctx, project.ID, task.ID); err != nil {
		t.Fatalf("unexpected delete error: %v", err)
	}

	history, err := service.ListTaskHistory(ctx, project.ID, task.ID)
	if err != nil {
		t.Fatalf("unexpected history error: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected empty history, got %d entries", len(history))
	}
}
