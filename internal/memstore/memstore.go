// Package memstore provides an in-memory planner.Store for demo mode and tests.
// All state belongs to one Store value; transactions work on a cloned copy that
// replaces the live state only when the work function succeeds.
package memstore

import (
	"context"
	"errors"
	"sync"

	"github.com/simplegantt/planner/internal/planner"
)

var errDuplicateID = errors.New("memstore: duplicate id")

type state struct {
	projects  map[string]planner.Project
	users     map[string]planner.User
	tasks     map[string]planner.Task
	assignees map[string][]string
	history   []planner.TaskHistoryEntry
}

func newState() state {
	return state{
		projects:  map[string]planner.Project{},
		users:     map[string]planner.User{},
		tasks:     map[string]planner.Task{},
		assignees: map[string][]string{},
	}
}

func (st state) clone() state {
	cp := state{
		projects:  make(map[string]planner.Project, len(st.projects)),
		users:     make(map[string]planner.User, len(st.users)),
		tasks:     make(map[string]planner.Task, len(st.tasks)),
		assignees: make(map[string][]string, len(st.assignees)),
		history:   append([]planner.TaskHistoryEntry(nil), st.history...),
	}
	for k, v := range st.projects {
		cp.projects[k] = v
	}
	for k, v := range st.users {
		cp.users[k] = v
	}
	for k, v := range st.tasks {
		cp.tasks[k] = cloneTask(v)
	}
	for k, v := range st.assignees {
		cp.assignees[k] = append([]string(nil), v...)
	}
	return cp
}

// Option configures a Store.
type Option func(*Store)

// WithoutHistory builds a store that reports no task history capability.
func WithoutHistory() Option {
	return func(s *Store) {
		s.historyEnabled = false
	}
}

// Store is a mutex-guarded planner.Store.
type Store struct {
	mu             sync.Mutex
	state          state
	historyEnabled bool
}

// New constructs an empty Store.
func New(options ...Option) *Store {
	store := &Store{state: newState(), historyEnabled: true}
	for _, option := range options {
		option(store)
	}
	return store
}

// accessor runs fn against the state a handle is bound to.
type accessor func(fn func(st *state) error) error

func (s *Store) access(fn func(st *state) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&s.state)
}

func (s *Store) Transaction(ctx context.Context, work func(tx planner.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	draft := s.state.clone()
	tx := &txStore{
		state:          &draft,
		historyEnabled: s.historyEnabled,
	}
	if err := work(tx); err != nil {
		return err
	}
	s.state = draft
	return nil
}

func (s *Store) Projects() planner.ProjectStore { return projectTable{access: s.access} }
func (s *Store) Users() planner.UserStore       { return userTable{access: s.access} }
func (s *Store) Tasks() planner.TaskStore       { return taskTable{access: s.access} }

func (s *Store) History() (planner.HistoryStore, bool) {
	return historyTable{access: s.access}, s.historyEnabled
}

// txStore is the handle given to transaction work. The store mutex is already held.
type txStore struct {
	state          *state
	historyEnabled bool
}

func (t *txStore) access(fn func(st *state) error) error {
	return fn(t.state)
}

func (t *txStore) Transaction(ctx context.Context, work func(tx planner.Store) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return work(t)
}

func (t *txStore) Projects() planner.ProjectStore { return projectTable{access: t.access} }
func (t *txStore) Users() planner.UserStore       { return userTable{access: t.access} }
func (t *txStore) Tasks() planner.TaskStore       { return taskTable{access: t.access} }

func (t *txStore) History() (planner.HistoryStore, bool) {
	return historyTable{access: t.access}, t.historyEnabled
}

func cloneTask(task planner.Task) planner.Task {
	cp := task
	cp.PredecessorTaskID = cloneOptionalID(task.PredecessorTaskID)
	cp.Assignees = nil
	return cp
}

func cloneOptionalID(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
