package planner_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/simplegantt/planner/internal/memstore"
	"github.com/simplegantt/planner/internal/planner"
)

var testNow = time.Date(2026, time.October, 1, 9, 0, 0, 0, time.UTC)

type sequenceIDGenerator struct {
	next int
}

func (g *sequenceIDGenerator) NewID() (string, error) {
	g.next++
	return fmt.Sprintf("%04d", g.next), nil
}

func newTestService(t *testing.T, store planner.Store) *planner.Service {
	t.Helper()
	service, err := planner.NewService(planner.ServiceConfig{
		Store:      store,
		Clock:      func() time.Time { return testNow },
		IDProvider: &sequenceIDGenerator{},
	})
	if err != nil {
		t.Fatalf("failed to build service: %v", err)
	}
	return service
}

func newMemoryService(t *testing.T) (*planner.Service, *memstore.Store) {
	t.Helper()
	store := memstore.New()
	return newTestService(t, store), store
}

func mustCreateProject(t *testing.T, service *planner.Service, name string) planner.Project {
	t.Helper()
	project, err := service.CreateProject(context.Background(), planner.CreateProjectInput{Name: name})
	if err != nil {
		t.Fatalf("failed to create project %q: %v", name, err)
	}
	return *project
}

func mustCreateUser(t *testing.T, service *planner.Service, name string) planner.User {
	t.Helper()
	user, err := service.CreateUser(context.Background(), planner.CreateUserInput{Name: name})
	if err != nil {
		t.Fatalf("failed to create user %q: %v", name, err)
	}
	return *user
}

func mustCreateTask(t *testing.T, service *planner.Service, projectID string, input planner.CreateTaskInput) planner.Task {
	t.Helper()
	if input.StartDate == "" {
		input.StartDate = "2026-10-01"
	}
	if input.EndDate == "" {
		input.EndDate = "2026-10-05"
	}
	task, err := service.CreateTask(context.Background(), projectID, input)
	if err != nil {
		t.Fatalf("failed to create task %q: %v", input.Title, err)
	}
	return *task
}

func stringPointer(value string) *string {
	return &value
}

func taskIDs(tasks []planner.Task) []string {
	ids := make([]string, 0, len(tasks))
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	return ids
}
