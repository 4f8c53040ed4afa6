// Package gh implements tracker.Backend over the issues of a GitHub
// repository.
//
// A GitHub issue belongs to exactly one repository, so each bug has a
// single task, targeting the repository by name.
// The task's status is the issue state, "open" or "closed";
// statuses of other trackers which mean the bug is finished,
// such as "Fix Released" or "Won't Fix", close the issue.
// Importance is kept as a label with the prefix "importance:".
// Other labels are the bug's tags.
//
// Issues cannot be made private, nor moved to affect another repository.
// Such changes fail with tracker.ErrNotSupported.
package gh

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/go-github/v63/github"
	"golang.org/x/oauth2"

	"olowe.co/lpbug/tracker"
)

const importancePrefix = "importance:"

// NewClient returns a GitHub API client authenticating with token.
// If baseURL is not empty, the client talks to the GitHub Enterprise
// server at that address.
func NewClient(ctx context.Context, token, baseURL string) (*github.Client, error) {
	var hc *http.Client
	if token != "" {
		hc = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token}))
	}
	client := github.NewClient(hc)
	if baseURL != "" {
		return client.WithEnterpriseURLs(baseURL, baseURL)
	}
	return client, nil
}

type Backend struct {
	Client *github.Client
	Owner  string
	Repo   string
}

var _ tracker.Backend = &Backend{}

// New returns a Backend for the issues of repo, named as "owner/repo".
func New(client *github.Client, repo string) (*Backend, error) {
	owner, name, ok := strings.Cut(repo, "/")
	if !ok || owner == "" || name == "" {
		return nil, fmt.Errorf("repository %q not in the form owner/repo", repo)
	}
	return &Backend{Client: client, Owner: owner, Repo: name}, nil
}

// wrap converts not found responses to tracker.ErrNotFound.
func wrap(err error) error {
	var e *github.ErrorResponse
	if errors.As(err, &e) && e.Response != nil && e.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", tracker.ErrNotFound, err)
	}
	return err
}

// Project returns the repository with the given name.
// Both "owner/repo" and "repo" forms are accepted; the latter is
// looked up under the backend's owner.
func (b *Backend) Project(ctx context.Context, name string) (*tracker.Project, error) {
	owner, repo, ok := strings.Cut(name, "/")
	if !ok {
		owner, repo = b.Owner, name
	}
	r, _, err := b.Client.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return nil, wrap(err)
	}
	return &tracker.Project{
		Name:    strings.ToLower(r.GetName()),
		Link:    r.GetFullName(),
		WebLink: r.GetHTMLURL(),
	}, nil
}

func (b *Backend) issue(ctx context.Context, number int) (*github.Issue, error) {
	issue, _, err := b.Client.Issues.Get(ctx, b.Owner, b.Repo, number)
	if err != nil {
		return nil, wrap(err)
	}
	return issue, nil
}

func (b *Backend) Bug(ctx context.Context, id int) (*tracker.Bug, error) {
	issue, err := b.issue(ctx, id)
	if err != nil {
		return nil, err
	}
	return toBug(issue), nil
}

func toBug(issue *github.Issue) *tracker.Bug {
	var tags []string
	for _, l := range issue.Labels {
		if !strings.HasPrefix(l.GetName(), importancePrefix) {
			tags = append(tags, l.GetName())
		}
	}
	return &tracker.Bug{
		ID:          issue.GetNumber(),
		Title:       issue.GetTitle(),
		Description: issue.GetBody(),
		Tags:        tags,
		Link:        issue.GetURL(),
		WebLink:     issue.GetHTMLURL(),
	}
}

func (b *Backend) toTask(issue *github.Issue) *tracker.Task {
	task := &tracker.Task{
		Bug:        issue.GetNumber(),
		Target:     strings.ToLower(b.Repo),
		TargetLink: b.Owner + "/" + b.Repo,
		Status:     issue.GetState(),
		Link:       issue.GetURL(),
	}
	for _, l := range issue.Labels {
		if s, ok := strings.CutPrefix(l.GetName(), importancePrefix); ok {
			task.Importance = s
		}
	}
	if m := issue.Milestone; m != nil {
		task.Milestone = &tracker.Ref{Name: m.GetTitle(), Link: strconv.Itoa(m.GetNumber())}
	}
	if a := issue.Assignee; a != nil {
		task.Assignee = &tracker.Ref{Name: a.GetLogin(), Link: a.GetHTMLURL()}
	}
	return task
}

func (b *Backend) Tasks(ctx context.Context, bug *tracker.Bug) ([]*tracker.Task, error) {
	issue, err := b.issue(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	return []*tracker.Task{b.toTask(issue)}, nil
}

func (b *Backend) CreateBug(ctx context.Context, target *tracker.Project, title, description string) (*tracker.Bug, error) {
	owner, repo, ok := strings.Cut(target.Link, "/")
	if !ok {
		owner, repo = b.Owner, b.Repo
	}
	req := &github.IssueRequest{
		Title: github.String(title),
		Body:  github.String(description),
	}
	issue, _, err := b.Client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, wrap(err)
	}
	return toBug(issue), nil
}

func (b *Backend) PatchBug(ctx context.Context, bug *tracker.Bug, patch tracker.BugPatch) error {
	if patch.Private != nil {
		return fmt.Errorf("change visibility of issue #%d: %w", bug.ID, tracker.ErrNotSupported)
	}
	req := &github.IssueRequest{
		Title: patch.Title,
		Body:  patch.Description,
	}
	if patch.Tags != nil {
		issue, err := b.issue(ctx, bug.ID)
		if err != nil {
			return err
		}
		labels := append([]string(nil), patch.Tags...)
		for _, l := range issue.Labels {
			if strings.HasPrefix(l.GetName(), importancePrefix) {
				labels = append(labels, l.GetName())
			}
		}
		req.Labels = &labels
	}
	_, _, err := b.Client.Issues.Edit(ctx, b.Owner, b.Repo, bug.ID, req)
	return wrap(err)
}

// AddTask succeeds only for the backend's own repository,
// which every issue already affects.
func (b *Backend) AddTask(ctx context.Context, bug *tracker.Bug, target *tracker.Project) (*tracker.Task, error) {
	if !strings.EqualFold(target.Link, b.Owner+"/"+b.Repo) {
		return nil, fmt.Errorf("issue #%d affecting %s: %w", bug.ID, target.Link, tracker.ErrNotSupported)
	}
	issue, err := b.issue(ctx, bug.ID)
	if err != nil {
		return nil, err
	}
	return b.toTask(issue), nil
}

// PatchTask edits the issue behind task. A status or importance which
// maps to the issue's current state or importance label is not sent, and
// if nothing is left to change the issue is not edited.
func (b *Backend) PatchTask(ctx context.Context, task *tracker.Task, patch tracker.TaskPatch) error {
	req := &github.IssueRequest{}
	var issue *github.Issue
	if patch.Status != nil || patch.Importance != nil {
		var err error
		if issue, err = b.issue(ctx, task.Bug); err != nil {
			return err
		}
	}
	if patch.Status != nil {
		state, reason := issueState(*patch.Status)
		if state != issue.GetState() || (reason != "" && reason != issue.GetStateReason()) {
			req.State = github.String(state)
			if reason != "" {
				req.StateReason = github.String(reason)
			}
		}
	}
	if patch.Importance != nil {
		label := importancePrefix + strings.ToLower(*patch.Importance)
		var labels []string
		found := false
		for _, l := range issue.Labels {
			if l.GetName() == label {
				found = true
			}
			if !strings.HasPrefix(l.GetName(), importancePrefix) {
				labels = append(labels, l.GetName())
			}
		}
		if !found {
			labels = append(labels, label)
			req.Labels = &labels
		}
	}
	if patch.Milestone != nil {
		n, err := strconv.Atoi(patch.Milestone.Link)
		if err != nil {
			return fmt.Errorf("milestone %s: bad number %q", patch.Milestone.Name, patch.Milestone.Link)
		}
		req.Milestone = github.Int(n)
	}
	if patch.Assignee != nil {
		req.Assignees = &[]string{patch.Assignee.Name}
	}
	if req.State == nil && req.Labels == nil && req.Milestone == nil && req.Assignees == nil {
		return nil
	}
	_, _, err := b.Client.Issues.Edit(ctx, b.Owner, b.Repo, task.Bug, req)
	return wrap(err)
}

// issueState returns the issue state and state reason
// corresponding to status.
func issueState(status string) (state, reason string) {
	switch strings.ToLower(status) {
	case "fix released", "fix committed", "closed", "completed":
		return "closed", "completed"
	case "invalid", "won't fix", "opinion", "expired", "not_planned", "not planned":
		return "closed", "not_planned"
	case "open", "new", "confirmed", "triaged", "in progress", "incomplete":
		return "open", ""
	}
	return strings.ToLower(status), ""
}

func (b *Backend) Person(ctx context.Context, name string) (*tracker.Ref, error) {
	u, _, err := b.Client.Users.Get(ctx, name)
	if err != nil {
		return nil, wrap(err)
	}
	return &tracker.Ref{Name: u.GetLogin(), Link: u.GetHTMLURL()}, nil
}

// Milestone returns a reference to the milestone with the given title.
// The reference's link is the milestone number.
func (b *Backend) Milestone(ctx context.Context, project, name string) (*tracker.Ref, error) {
	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		milestones, resp, err := b.Client.Issues.ListMilestones(ctx, b.Owner, b.Repo, opts)
		if err != nil {
			return nil, wrap(err)
		}
		for _, m := range milestones {
			if m.GetTitle() == name {
				return &tracker.Ref{Name: m.GetTitle(), Link: strconv.Itoa(m.GetNumber())}, nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return nil, fmt.Errorf("milestone %s in %s: %w", name, project, tracker.ErrNotFound)
}

func (b *Backend) NewComment(ctx context.Context, bug *tracker.Bug, content string) (*tracker.Comment, error) {
	c, _, err := b.Client.Issues.CreateComment(ctx, b.Owner, b.Repo, bug.ID, &github.IssueComment{
		Body: github.String(content),
	})
	if err != nil {
		return nil, wrap(err)
	}
	return &tracker.Comment{Content: c.GetBody(), Link: c.GetURL(), WebLink: c.GetHTMLURL()}, nil
}
