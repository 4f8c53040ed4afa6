package tracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Client operates on the bugs of one project.
// It remembers the most recently fetched bug and its tasks;
// requesting a different bug replaces them.
type Client struct {
	backend Backend
	project *Project

	bug         *Bug
	tasks       []*Task
	tasksLoaded bool
}

// New returns a Client for the named project.
// It returns an error wrapping ErrNotFound if the project does not exist.
func New(ctx context.Context, backend Backend, project string) (*Client, error) {
	p, err := backend.Project(ctx, strings.ToLower(project))
	if err != nil {
		return nil, fmt.Errorf("load project %s: %w", project, err)
	}
	return &Client{backend: backend, project: p}, nil
}

// Project returns the project the client was created for.
func (c *Client) Project() *Project { return c.project }

// Bug returns the bug with the given id.
func (c *Client) Bug(ctx context.Context, id int) (*Bug, error) {
	if c.bug != nil && c.bug.ID == id {
		return c.bug, nil
	}
	bug, err := c.backend.Bug(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load bug #%d: %w", id, err)
	}
	c.remember(bug)
	return bug, nil
}

func (c *Client) remember(bug *Bug) {
	c.bug = bug
	c.tasks = nil
	c.tasksLoaded = false
}

// Tasks returns the tasks of the bug with the given id.
func (c *Client) Tasks(ctx context.Context, id int) ([]*Task, error) {
	bug, err := c.Bug(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.tasksLoaded {
		return c.tasks, nil
	}
	tasks, err := c.backend.Tasks(ctx, bug)
	if err != nil {
		return nil, fmt.Errorf("load tasks of bug #%d: %w", id, err)
	}
	c.tasks = tasks
	c.tasksLoaded = true
	return tasks, nil
}

// CreateBug files a new bug against the client's project then applies
// props to it as UpdateBug does. If props could not be applied because
// of the affects-only check, the new bug is returned along with the
// *AffectsError.
func (c *Client) CreateBug(ctx context.Context, title, description string, props Properties) (*Bug, error) {
	bug, err := c.backend.CreateBug(ctx, c.project, title, description)
	if err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	}
	c.remember(bug)
	updated, err := c.UpdateBug(ctx, bug.ID, props)
	if err != nil {
		return bug, err
	}
	return updated, nil
}

// UpdateBug applies props to the bug with the given id and then to
// each of its tasks with UpdateTask. Only fields which are set and
// differ from the current value are saved.
//
// If props.UpdateIfAffectsAnother is set to false and the bug affects
// a project outside props.AffectsOnly, nothing is changed and an
// *AffectsError is returned.
func (c *Client) UpdateBug(ctx context.Context, id int, props Properties) (*Bug, error) {
	props = c.withDefaults(props)
	bug, err := c.Bug(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := c.checkAffects(ctx, id, props); err != nil {
		return nil, err
	}

	if props.AffectsProject != nil {
		if err := c.addTask(ctx, bug, *props.AffectsProject); err != nil {
			return nil, err
		}
	}

	patch := props.bugPatch(bug)
	if !patch.empty() {
		if err := c.backend.PatchBug(ctx, bug, patch); err != nil {
			return nil, fmt.Errorf("save bug #%d: %w", id, err)
		}
		applyBugPatch(bug, patch)
	}

	tasks, err := c.Tasks(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, task := range tasks {
		if err := c.UpdateTask(ctx, task, props); err != nil {
			return nil, err
		}
	}
	return bug, nil
}

func (c *Client) addTask(ctx context.Context, bug *Bug, project string) error {
	tasks, err := c.Tasks(ctx, bug.ID)
	if err != nil {
		return err
	}
	for _, t := range tasks {
		if strings.EqualFold(t.Target, project) {
			return nil
		}
	}
	target, err := c.backend.Project(ctx, strings.ToLower(project))
	if err != nil {
		return fmt.Errorf("load project %s: %w", project, err)
	}
	task, err := c.backend.AddTask(ctx, bug, target)
	if err != nil {
		return fmt.Errorf("add %s task to bug #%d: %w", target.Name, bug.ID, err)
	}
	c.tasks = append(c.tasks, task)
	return nil
}

func applyBugPatch(bug *Bug, patch BugPatch) {
	if patch.Title != nil {
		bug.Title = *patch.Title
	}
	if patch.Description != nil {
		bug.Description = *patch.Description
	}
	if patch.Private != nil {
		bug.Private = *patch.Private
	}
	if patch.Tags != nil {
		bug.Tags = append([]string(nil), patch.Tags...)
	}
}

// UpdateTask applies the task fields of props (status, importance,
// milestone and assignee) to task, provided its project is in
// props.AffectsOnly. Milestones are looked up in the task's project.
func (c *Client) UpdateTask(ctx context.Context, task *Task, props Properties) error {
	props = c.withDefaults(props)
	if !props.AffectsOnly.Contains(task.Target) {
		return nil
	}

	var patch TaskPatch
	if props.Status != nil && !strings.EqualFold(*props.Status, task.Status) {
		patch.Status = props.Status
	}
	if props.Importance != nil && !strings.EqualFold(*props.Importance, task.Importance) {
		patch.Importance = props.Importance
	}
	if props.Assignee != nil && (task.Assignee == nil || task.Assignee.Name != *props.Assignee) {
		person, err := c.backend.Person(ctx, *props.Assignee)
		if err != nil {
			return fmt.Errorf("find assignee %s: %w", *props.Assignee, err)
		}
		patch.Assignee = person
	}
	if props.Milestone != nil && (task.Milestone == nil || task.Milestone.Name != *props.Milestone) {
		ms, err := c.milestone(ctx, task, *props.Milestone)
		if err != nil {
			return err
		}
		patch.Milestone = ms
	}
	if patch.empty() {
		return nil
	}

	if err := c.backend.PatchTask(ctx, task, patch); err != nil {
		return fmt.Errorf("save %s task of bug #%d: %w", task.Target, task.Bug, err)
	}
	if patch.Status != nil {
		task.Status = *patch.Status
	}
	if patch.Importance != nil {
		task.Importance = *patch.Importance
	}
	if patch.Assignee != nil {
		task.Assignee = patch.Assignee
	}
	if patch.Milestone != nil {
		task.Milestone = patch.Milestone
	}
	return nil
}

// milestone looks up the named milestone in the task's project.
// Tasks of a series or other sub-target have no milestones of their
// own, so a milestone missing there is looked up in the client's project.
func (c *Client) milestone(ctx context.Context, task *Task, name string) (*Ref, error) {
	ms, err := c.backend.Milestone(ctx, task.Target, name)
	if errors.Is(err, ErrNotFound) && !strings.EqualFold(task.Target, c.project.Name) {
		ms, err = c.backend.Milestone(ctx, c.project.Name, name)
	}
	if err != nil {
		return nil, fmt.Errorf("find milestone %s in %s: %w", name, task.Target, err)
	}
	return ms, nil
}

// AddComment adds a comment to the bug with the given id if the bug
// affects any project in props.AffectsOnly. Otherwise no comment is
// made and AddComment returns nil, nil.
func (c *Client) AddComment(ctx context.Context, content string, id int, props Properties) (*Comment, error) {
	props = c.withDefaults(props)
	if err := c.checkAffects(ctx, id, props); err != nil {
		return nil, err
	}
	tasks, err := c.Tasks(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, t := range tasks {
		if !props.AffectsOnly.Contains(t.Target) {
			continue
		}
		comment, err := c.backend.NewComment(ctx, c.bug, content)
		if err != nil {
			return nil, fmt.Errorf("comment on bug #%d: %w", id, err)
		}
		return comment, nil
	}
	return nil, nil
}

func (c *Client) checkAffects(ctx context.Context, id int, props Properties) error {
	if props.UpdateIfAffectsAnother == nil || *props.UpdateIfAffectsAnother {
		return nil
	}
	tasks, err := c.Tasks(ctx, id)
	if err != nil {
		return err
	}
	affects := make([]string, len(tasks))
	outside := false
	for i, t := range tasks {
		affects[i] = t.Target
		if !props.AffectsOnly.Contains(t.Target) {
			outside = true
		}
	}
	if outside {
		return &AffectsError{Bug: id, Affects: affects, Only: props.AffectsOnly}
	}
	return nil
}

func (c *Client) withDefaults(props Properties) Properties {
	if len(props.AffectsOnly) == 0 {
		props.AffectsOnly = NewProjectSet(c.project.Name)
	}
	return props
}
