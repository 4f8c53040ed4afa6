// Package tracker files, updates and comments on bugs held by a
// remote issue tracker.
//
// A bug affects one or more projects, with one task per project.
// Every mutating operation is restricted to an allowed set of
// projects (see [Properties.AffectsOnly]), so that changing a bug
// shared between teams does not touch another team's tasks.
//
// The remote tracker is reached through a [Backend]. Packages
// launchpad and gh provide implementations.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned by a Backend when a project, bug, person or
// milestone does not exist.
var ErrNotFound = errors.New("not found")

// ErrNotSupported is returned by a Backend which cannot represent
// the requested change, such as making a GitHub issue private.
var ErrNotSupported = errors.New("not supported by tracker")

type Project struct {
	Name    string
	Link    string
	WebLink string
}

type Bug struct {
	ID          int
	Title       string
	Description string
	Private     bool
	Tags        []string
	Link        string
	WebLink     string
}

// Task is the status of a bug in one project.
type Task struct {
	Bug        int
	Target     string // project name
	TargetLink string
	Status     string
	Importance string
	Milestone  *Ref
	Assignee   *Ref
	Link       string
}

// Ref is a resolved reference to a remote object, such as a person
// or a milestone.
type Ref struct {
	Name string
	Link string
}

type Comment struct {
	Content string
	Link    string
	WebLink string
}

// BugPatch holds changes to a bug. Nil fields are left unchanged.
type BugPatch struct {
	Title       *string
	Description *string
	Private     *bool
	Tags        []string
}

func (p BugPatch) empty() bool {
	return p.Title == nil && p.Description == nil && p.Private == nil && p.Tags == nil
}

// TaskPatch holds changes to a task. Nil fields are left unchanged.
type TaskPatch struct {
	Status     *string
	Importance *string
	Milestone  *Ref
	Assignee   *Ref
}

func (p TaskPatch) empty() bool {
	return p.Status == nil && p.Importance == nil && p.Milestone == nil && p.Assignee == nil
}

// Backend is a connection to a remote issue tracker.
// Lookups of unknown objects return an error wrapping ErrNotFound.
type Backend interface {
	Project(ctx context.Context, name string) (*Project, error)
	Bug(ctx context.Context, id int) (*Bug, error)
	Tasks(ctx context.Context, bug *Bug) ([]*Task, error)
	CreateBug(ctx context.Context, target *Project, title, description string) (*Bug, error)
	PatchBug(ctx context.Context, bug *Bug, patch BugPatch) error
	AddTask(ctx context.Context, bug *Bug, target *Project) (*Task, error)
	PatchTask(ctx context.Context, task *Task, patch TaskPatch) error
	Person(ctx context.Context, name string) (*Ref, error)
	Milestone(ctx context.Context, project, name string) (*Ref, error)
	NewComment(ctx context.Context, bug *Bug, content string) (*Comment, error)
}

// AffectsError reports that a bug was left alone because it affects
// projects outside the allowed set.
type AffectsError struct {
	Bug     int
	Affects []string
	Only    ProjectSet
}

func (e *AffectsError) Error() string {
	return fmt.Sprintf("bug #%d will not be updated because it affects projects (%s), but you specified only (%s)",
		e.Bug, strings.Join(e.Affects, ","), strings.Join(e.Only.Names(), ", "))
}

// Properties are the optional attributes applied to a bug and its
// tasks. Nil fields are unset and leave the remote value unchanged.
type Properties struct {
	Title       *string
	Description *string
	Private     *bool
	Tags        []string

	Status     *string
	Importance *string
	Milestone  *string // milestone name
	Assignee   *string // person name

	// AffectsProject adds a task for the named project to the bug.
	AffectsProject *string

	// AffectsOnly is the set of projects whose tasks may be changed.
	// An empty set means the client's own project.
	AffectsOnly ProjectSet

	// UpdateIfAffectsAnother, when set and false, refuses to change
	// a bug which affects any project outside AffectsOnly.
	UpdateIfAffectsAnother *bool
}

func (p Properties) bugPatch(bug *Bug) BugPatch {
	var patch BugPatch
	if p.Title != nil && *p.Title != bug.Title {
		patch.Title = p.Title
	}
	if p.Description != nil && *p.Description != bug.Description {
		patch.Description = p.Description
	}
	if p.Private != nil && *p.Private != bug.Private {
		patch.Private = p.Private
	}
	if p.Tags != nil && !sameTags(p.Tags, bug.Tags) {
		patch.Tags = p.Tags
	}
	return patch
}

// sameTags reports whether a and b hold the same tags in any order,
// ignoring case.
func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	a = lowerSorted(a)
	b = lowerSorted(b)
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func lowerSorted(tags []string) []string {
	s := make([]string, len(tags))
	for i := range tags {
		s[i] = strings.ToLower(tags[i])
	}
	sort.Strings(s)
	return s
}
