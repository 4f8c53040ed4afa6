package launchpad

import (
	"context"
	"path"
	"strings"

	"olowe.co/lpbug/tracker"
)

// Backend implements tracker.Backend with a Client.
type Backend struct {
	*Client
}

var _ tracker.Backend = Backend{}

func (b Backend) Project(ctx context.Context, name string) (*tracker.Project, error) {
	p, err := b.Client.Project(ctx, name)
	if err != nil {
		return nil, err
	}
	return &tracker.Project{Name: p.Name, Link: p.SelfLink, WebLink: p.WebLink}, nil
}

func (b Backend) Bug(ctx context.Context, id int) (*tracker.Bug, error) {
	bug, err := b.Client.Bug(ctx, id)
	if err != nil {
		return nil, err
	}
	return toBug(bug), nil
}

func toBug(bug *Bug) *tracker.Bug {
	return &tracker.Bug{
		ID:          bug.ID,
		Title:       bug.Title,
		Description: bug.Description,
		Private:     bug.Private,
		Tags:        bug.Tags,
		Link:        bug.SelfLink,
		WebLink:     bug.WebLink,
	}
}

func toTask(bugID int, t *BugTask) *tracker.Task {
	task := &tracker.Task{
		Bug:        bugID,
		Target:     t.TargetName(),
		TargetLink: t.TargetLink,
		Status:     t.Status,
		Importance: t.Importance,
		Link:       t.SelfLink,
	}
	if t.MilestoneLink != "" {
		task.Milestone = &tracker.Ref{Name: path.Base(t.MilestoneLink), Link: t.MilestoneLink}
	}
	if t.AssigneeLink != "" {
		task.Assignee = &tracker.Ref{Name: personName(t.AssigneeLink), Link: t.AssigneeLink}
	}
	return task
}

func (b Backend) Tasks(ctx context.Context, bug *tracker.Bug) ([]*tracker.Task, error) {
	tasks, err := b.Client.BugTasks(ctx, bug.Link)
	if err != nil {
		return nil, err
	}
	tt := make([]*tracker.Task, len(tasks))
	for i := range tasks {
		tt[i] = toTask(bug.ID, &tasks[i])
	}
	return tt, nil
}

func (b Backend) CreateBug(ctx context.Context, target *tracker.Project, title, description string) (*tracker.Bug, error) {
	bug, err := b.Client.CreateBug(ctx, target.Link, title, description)
	if err != nil {
		return nil, err
	}
	return toBug(bug), nil
}

func (b Backend) PatchBug(ctx context.Context, bug *tracker.Bug, patch tracker.BugPatch) error {
	fields := make(map[string]any)
	if patch.Title != nil {
		fields["title"] = *patch.Title
	}
	if patch.Description != nil {
		fields["description"] = *patch.Description
	}
	if patch.Tags != nil {
		tags := make([]string, len(patch.Tags))
		for i := range patch.Tags {
			tags[i] = strings.ToLower(patch.Tags[i])
		}
		fields["tags"] = tags
	}
	if len(fields) > 0 {
		if err := b.Client.Patch(ctx, bug.Link, fields); err != nil {
			return err
		}
	}
	if patch.Private != nil {
		typ := "Public"
		if *patch.Private {
			typ = "Private"
		}
		return b.Client.SetInformationType(ctx, bug.Link, typ)
	}
	return nil
}

func (b Backend) AddTask(ctx context.Context, bug *tracker.Bug, target *tracker.Project) (*tracker.Task, error) {
	t, err := b.Client.AddTask(ctx, bug.Link, target.Link)
	if err != nil {
		return nil, err
	}
	return toTask(bug.ID, t), nil
}

func (b Backend) PatchTask(ctx context.Context, task *tracker.Task, patch tracker.TaskPatch) error {
	fields := make(map[string]any)
	if patch.Status != nil {
		fields["status"] = *patch.Status
	}
	if patch.Importance != nil {
		fields["importance"] = *patch.Importance
	}
	if patch.Milestone != nil {
		fields["milestone_link"] = patch.Milestone.Link
	}
	if patch.Assignee != nil {
		fields["assignee_link"] = patch.Assignee.Link
	}
	return b.Client.Patch(ctx, task.Link, fields)
}

func (b Backend) Person(ctx context.Context, name string) (*tracker.Ref, error) {
	p, err := b.Client.Person(ctx, name)
	if err != nil {
		return nil, err
	}
	return &tracker.Ref{Name: p.Name, Link: p.SelfLink}, nil
}

func (b Backend) Milestone(ctx context.Context, project, name string) (*tracker.Ref, error) {
	m, err := b.Client.Milestone(ctx, project, name)
	if err != nil {
		return nil, err
	}
	return &tracker.Ref{Name: m.Name, Link: m.SelfLink}, nil
}

func (b Backend) NewComment(ctx context.Context, bug *tracker.Bug, content string) (*tracker.Comment, error) {
	m, err := b.Client.NewMessage(ctx, bug.Link, content)
	if err != nil {
		return nil, err
	}
	return &tracker.Comment{Content: m.Content, Link: m.SelfLink, WebLink: m.WebLink}, nil
}
