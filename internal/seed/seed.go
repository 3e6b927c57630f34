// Package seed loads YAML fixtures of users, projects and tasks into a planner.
package seed

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/simplegantt/planner/internal/planner"
)

//go:embed demo.yaml
var demoFixture []byte

// Fixture is the top-level seed document. Keys are local references resolved to generated ids.
type Fixture struct {
	Users    []UserFixture    `yaml:"users"`
	Projects []ProjectFixture `yaml:"projects"`
}

// UserFixture describes one user.
type UserFixture struct {
	Key  string `yaml:"key"`
	Name string `yaml:"name"`
}

// ProjectFixture describes a project and its tasks in display order.
type ProjectFixture struct {
	Key   string        `yaml:"key"`
	Name  string        `yaml:"name"`
	Tasks []TaskFixture `yaml:"tasks"`
}

// TaskFixture describes a task. Dates are either absolute (start, end) or
// offsets in days from the apply date (start_offset_days, end_offset_days).
type TaskFixture struct {
	Key             string   `yaml:"key"`
	Title           string   `yaml:"title"`
	Note            string   `yaml:"note"`
	Start           string   `yaml:"start"`
	End             string   `yaml:"end"`
	StartOffsetDays *int     `yaml:"start_offset_days"`
	EndOffsetDays   *int     `yaml:"end_offset_days"`
	Progress        int      `yaml:"progress"`
	Assignees       []string `yaml:"assignees"`
	Predecessor     string   `yaml:"predecessor"`
}

// Result counts the records created by Apply.
type Result struct {
	Users    int
	Projects int
	Tasks    int
}

// Load reads a YAML fixture file from path and returns a validated Fixture.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(data)
}

// Demo returns the built-in demo fixture.
func Demo() (*Fixture, error) {
	return Parse(demoFixture)
}

// Parse unmarshals YAML bytes into a validated Fixture.
func Parse(data []byte) (*Fixture, error) {
	var fixture Fixture
	if err := yaml.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if err := fixture.validate(); err != nil {
		return nil, err
	}
	return &fixture, nil
}

// validate checks that keys are unique and every reference resolves.
func (f *Fixture) validate() error {
	var errs []string
	userKeys := make(map[string]struct{}, len(f.Users))
	for i, user := range f.Users {
		if user.Key == "" {
			errs = append(errs, fmt.Sprintf("users[%d].key is required", i))
		} else if _, duplicate := userKeys[user.Key]; duplicate {
			errs = append(errs, fmt.Sprintf("users[%d].key %q is duplicated", i, user.Key))
		}
		userKeys[user.Key] = struct{}{}
		if strings.TrimSpace(user.Name) == "" {
			errs = append(errs, fmt.Sprintf("users[%d].name is required", i))
		}
	}

	taskKeys := make(map[string]struct{})
	for i, project := range f.Projects {
		if strings.TrimSpace(project.Name) == "" {
			errs = append(errs, fmt.Sprintf("projects[%d].name is required", i))
		}
		// Predecessors must appear earlier in the same project.
		earlier := make(map[string]struct{}, len(project.Tasks))
		for j, task := range project.Tasks {
			path := fmt.Sprintf("projects[%d].tasks[%d]", i, j)
			if task.Key == "" {
				errs = append(errs, path+".key is required")
			} else if _, duplicate := taskKeys[task.Key]; duplicate {
				errs = append(errs, fmt.Sprintf("%s.key %q is duplicated", path, task.Key))
			}
			if strings.TrimSpace(task.Title) == "" {
				errs = append(errs, path+".title is required")
			}
			if (task.Start == "") == (task.StartOffsetDays == nil) {
				errs = append(errs, path+" needs exactly one of start or start_offset_days")
			}
			if (task.End == "") == (task.EndOffsetDays == nil) {
				errs = append(errs, path+" needs exactly one of end or end_offset_days")
			}
			for _, assignee := range task.Assignees {
				if _, ok := userKeys[assignee]; !ok {
					errs = append(errs, fmt.Sprintf("%s.assignees references unknown user %q", path, assignee))
				}
			}
			if task.Predecessor != "" {
				if _, ok := earlier[task.Predecessor]; !ok {
					errs = append(errs, fmt.Sprintf("%s.predecessor %q must be an earlier task of the same project", path, task.Predecessor))
				}
			}
			taskKeys[task.Key] = struct{}{}
			earlier[task.Key] = struct{}{}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("seed: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Apply creates the fixture through service. Offsets resolve against the calendar date of today.
func Apply(ctx context.Context, service *planner.Service, fixture *Fixture, today time.Time) (Result, error) {
	var result Result
	base := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	userIDs := make(map[string]string, len(fixture.Users))
	for _, user := range fixture.Users {
		created, err := service.CreateUser(ctx, planner.CreateUserInput{Name: user.Name})
		if err != nil {
			return result, fmt.Errorf("seed: user %s: %w", user.Key, err)
		}
		userIDs[user.Key] = created.ID
		result.Users++
	}

	taskIDs := make(map[string]string)
	for _, project := range fixture.Projects {
		createdProject, err := service.CreateProject(ctx, planner.CreateProjectInput{Name: project.Name})
		if err != nil {
			return result, fmt.Errorf("seed: project %s: %w", project.Key, err)
		}
		result.Projects++

		for _, task := range project.Tasks {
			input := planner.CreateTaskInput{
				Title:     task.Title,
				Note:      task.Note,
				StartDate: resolveDate(base, task.Start, task.StartOffsetDays),
				EndDate:   resolveDate(base, task.End, task.EndOffsetDays),
				Progress:  task.Progress,
			}
			for _, assignee := range task.Assignees {
				input.AssigneeIDs = append(input.AssigneeIDs, userIDs[assignee])
			}
			if task.Predecessor != "" {
				predecessorID := taskIDs[task.Predecessor]
				input.PredecessorTaskID = &predecessorID
			}

			createdTask, err := service.CreateTask(ctx, createdProject.ID, input)
			if err != nil {
				return result, fmt.Errorf("seed: task %s: %w", task.Key, err)
			}
			taskIDs[task.Key] = createdTask.ID
			result.Tasks++
		}
	}
	return result, nil
}

func resolveDate(base time.Time, absolute string, offsetDays *int) string {
	if offsetDays == nil {
		return absolute
	}
	return base.AddDate(0, 0, *offsetDays).Format(planner.DateLayout)
}
