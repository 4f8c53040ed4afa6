package launchpad

import (
	"path"
	"strconv"
	"strings"
)

type Project struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
	WebLink     string `json:"web_link"`
}

type Bug struct {
	ID              int      `json:"id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Private         bool     `json:"private"`
	InformationType string   `json:"information_type"`
	Tags            []string `json:"tags"`
	SelfLink        string   `json:"self_link"`
	WebLink         string   `json:"web_link"`
	TasksLink       string   `json:"bug_tasks_collection_link"`
	MessagesLink    string   `json:"messages_collection_link"`
}

// BugTask is the status of a bug in one project,
// project series or distribution package.
type BugTask struct {
	SelfLink      string `json:"self_link"`
	WebLink       string `json:"web_link"`
	BugLink       string `json:"bug_link"`
	TargetLink    string `json:"target_link"`
	BugTargetName string `json:"bug_target_name"`
	Status        string `json:"status"`
	Importance    string `json:"importance"`
	MilestoneLink string `json:"milestone_link"`
	AssigneeLink  string `json:"assignee_link"`
}

// TargetName returns the name of the task's target,
// the last element of its target link.
func (t *BugTask) TargetName() string {
	return path.Base(t.TargetLink)
}

// BugID returns the id of the bug the task belongs to, or 0 if the
// task has no valid bug link.
func (t *BugTask) BugID() int {
	id, err := strconv.Atoi(path.Base(t.BugLink))
	if err != nil {
		return 0
	}
	return id
}

type Person struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	SelfLink    string `json:"self_link"`
	WebLink     string `json:"web_link"`
}

type Milestone struct {
	Name     string `json:"name"`
	Title    string `json:"title"`
	SelfLink string `json:"self_link"`
	WebLink  string `json:"web_link"`
}

type Message struct {
	Subject  string `json:"subject"`
	Content  string `json:"content"`
	SelfLink string `json:"self_link"`
	WebLink  string `json:"web_link"`
}

type collection[T any] struct {
	TotalSize int    `json:"total_size"`
	Start     int    `json:"start"`
	NextLink  string `json:"next_collection_link"`
	Entries   []T    `json:"entries"`
}

// personName returns the name in a person link like ".../~alice".
func personName(link string) string {
	return strings.TrimPrefix(path.Base(link), "~")
}
