package tracker

import (
	"context"
	"fmt"
	"strings"
)

// fakeBackend is an in-memory tracker recording every call made to it.
type fakeBackend struct {
	projects   map[string]*Project
	bugs       map[int]*Bug
	tasks      map[int][]*Task
	people     map[string]*Ref
	milestones map[string]*Ref // "project/name"
	comments   map[int][]*Comment

	calls  []string
	nextID int
}

func newFakeBackend(projects ...string) *fakeBackend {
	f := &fakeBackend{
		projects:   make(map[string]*Project),
		bugs:       make(map[int]*Bug),
		tasks:      make(map[int][]*Task),
		people:     make(map[string]*Ref),
		milestones: make(map[string]*Ref),
		comments:   make(map[int][]*Comment),
		nextID:     1000,
	}
	for _, name := range projects {
		f.projects[name] = &Project{Name: name, Link: "/" + name, WebLink: "https://bugs.example.net/" + name}
	}
	return f
}

// addBug stores a bug affecting the named projects.
func (f *fakeBackend) addBug(id int, title string, affects ...string) *Bug {
	bug := &Bug{
		ID:          id,
		Title:       title,
		Description: "description of " + title,
		Tags:        []string{"old"},
		Link:        fmt.Sprintf("/bugs/%d", id),
		WebLink:     fmt.Sprintf("https://bugs.example.net/bugs/%d", id),
	}
	f.bugs[id] = bug
	for _, p := range affects {
		f.tasks[id] = append(f.tasks[id], &Task{
			Bug:        id,
			Target:     p,
			TargetLink: "/" + p,
			Status:     "New",
			Importance: "Undecided",
		})
	}
	return bug
}

func (f *fakeBackend) record(format string, args ...any) {
	f.calls = append(f.calls, fmt.Sprintf(format, args...))
}

func (f *fakeBackend) count(prefix string) int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (f *fakeBackend) mutations() []string {
	var m []string
	for _, c := range f.calls {
		switch strings.Fields(c)[0] {
		case "PatchBug", "PatchTask", "AddTask", "NewComment", "CreateBug":
			m = append(m, c)
		}
	}
	return m
}

func (f *fakeBackend) Project(ctx context.Context, name string) (*Project, error) {
	f.record("Project %s", name)
	p, ok := f.projects[name]
	if !ok {
		return nil, fmt.Errorf("project %s: %w", name, ErrNotFound)
	}
	return p, nil
}

func (f *fakeBackend) Bug(ctx context.Context, id int) (*Bug, error) {
	f.record("Bug %d", id)
	bug, ok := f.bugs[id]
	if !ok {
		return nil, fmt.Errorf("bug %d: %w", id, ErrNotFound)
	}
	// callers get their own copy, as from a remote service
	b := *bug
	return &b, nil
}

func (f *fakeBackend) Tasks(ctx context.Context, bug *Bug) ([]*Task, error) {
	f.record("Tasks %d", bug.ID)
	var tasks []*Task
	for _, t := range f.tasks[bug.ID] {
		tt := *t
		tasks = append(tasks, &tt)
	}
	return tasks, nil
}

func (f *fakeBackend) CreateBug(ctx context.Context, target *Project, title, description string) (*Bug, error) {
	f.record("CreateBug %s", target.Name)
	if title == "" {
		return nil, fmt.Errorf("title: required")
	}
	f.nextID++
	bug := f.addBug(f.nextID, title, target.Name)
	bug.Description = description
	bug.Tags = nil
	b := *bug
	return &b, nil
}

func (f *fakeBackend) PatchBug(ctx context.Context, bug *Bug, patch BugPatch) error {
	f.record("PatchBug %d", bug.ID)
	stored := f.bugs[bug.ID]
	applyBugPatch(stored, patch)
	return nil
}

func (f *fakeBackend) AddTask(ctx context.Context, bug *Bug, target *Project) (*Task, error) {
	f.record("AddTask %d %s", bug.ID, target.Name)
	t := &Task{Bug: bug.ID, Target: target.Name, TargetLink: target.Link, Status: "New", Importance: "Undecided"}
	f.tasks[bug.ID] = append(f.tasks[bug.ID], t)
	tt := *t
	return &tt, nil
}

func (f *fakeBackend) PatchTask(ctx context.Context, task *Task, patch TaskPatch) error {
	f.record("PatchTask %d %s", task.Bug, task.Target)
	for _, t := range f.tasks[task.Bug] {
		if t.Target != task.Target {
			continue
		}
		if patch.Status != nil {
			t.Status = *patch.Status
		}
		if patch.Importance != nil {
			t.Importance = *patch.Importance
		}
		if patch.Milestone != nil {
			t.Milestone = patch.Milestone
		}
		if patch.Assignee != nil {
			t.Assignee = patch.Assignee
		}
	}
	return nil
}

func (f *fakeBackend) Person(ctx context.Context, name string) (*Ref, error) {
	f.record("Person %s", name)
	p, ok := f.people[name]
	if !ok {
		return nil, fmt.Errorf("person %s: %w", name, ErrNotFound)
	}
	return p, nil
}

func (f *fakeBackend) Milestone(ctx context.Context, project, name string) (*Ref, error) {
	f.record("Milestone %s %s", project, name)
	m, ok := f.milestones[project+"/"+name]
	if !ok {
		return nil, fmt.Errorf("milestone %s: %w", name, ErrNotFound)
	}
	return m, nil
}

func (f *fakeBackend) NewComment(ctx context.Context, bug *Bug, content string) (*Comment, error) {
	f.record("NewComment %d", bug.ID)
	n := len(f.comments[bug.ID]) + 1
	c := &Comment{
		Content: content,
		Link:    fmt.Sprintf("/bugs/%d/comments/%d", bug.ID, n),
		WebLink: fmt.Sprintf("%s/comments/%d", bug.WebLink, n),
	}
	f.comments[bug.ID] = append(f.comments[bug.ID], c)
	return c, nil
}
