package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"olowe.co/lpbug/tracker"
)

// settings are the global options in effect for one command.
type settings struct {
	backend     string
	project     string
	affectsOnly tracker.ProjectSet
	updateAny   bool
	verbose     bool
	conf        *Config
	getenv      func(string) string
}

func isCommand(s string) bool {
	switch s {
	case "report", "update", "comment", "show":
		return true
	}
	return false
}

func run(ctx context.Context, args []string, e *env) error {
	fs := pflag.NewFlagSet("lpbug", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.SetOutput(e.stderr)
	affects := fs.StringP("affects-only", "o", "", "only change tasks of these projects")
	updateAny := fs.BoolP("update-if-affects-another", "a", false, "change bugs which also affect unlisted projects")
	backend := fs.StringP("backend", "b", "", "issue tracker: launchpad or github")
	confName := fs.StringP("config", "c", "", "read defaults from this file")
	verbose := fs.BoolP("verbose", "v", false, "print API requests")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}

	conf, err := loadConfig(*confName, e.getenv)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}
	s := &settings{
		backend:   conf.Backend,
		project:   conf.Project,
		updateAny: *updateAny,
		verbose:   *verbose,
		conf:      conf,
		getenv:    e.getenv,
	}
	if *backend != "" {
		s.backend = *backend
	}
	if s.backend == "" {
		s.backend = "launchpad"
	}
	if *affects != "" {
		s.affectsOnly = tracker.ParseProjects(*affects)
	} else if len(conf.AffectsOnly) > 0 {
		s.affectsOnly = tracker.NewProjectSet(conf.AffectsOnly...)
	}

	rest := fs.Args()
	if len(rest) > 0 && !isCommand(rest[0]) {
		s.project = rest[0]
		rest = rest[1:]
	}
	if s.project == "" || len(rest) == 0 {
		return errUsage
	}

	b, err := e.connect(ctx, s)
	if err != nil {
		return err
	}
	client, err := tracker.New(ctx, b, s.project)
	if err != nil {
		return fmt.Errorf("can't load project %s information: %w", s.project, err)
	}

	cmd, cargs := rest[0], rest[1:]
	switch cmd {
	case "report":
		return report(ctx, client, s, cargs, e)
	case "update":
		return update(ctx, client, s, cargs, e)
	case "comment":
		return comment(ctx, client, s, cargs, e)
	case "show":
		return show(ctx, client, cargs, e)
	}
	return fmt.Errorf("unknown command %q: %w", cmd, errUsage)
}

func (s *settings) properties() tracker.Properties {
	return tracker.Properties{
		AffectsOnly:            s.affectsOnly,
		UpdateIfAffectsAnother: &s.updateAny,
	}
}

// taskFlags adds flags for the task properties shared by report and update.
type taskFlags struct {
	status, importance, milestone, tags, assignee *string
}

func addTaskFlags(fs *pflag.FlagSet) *taskFlags {
	return &taskFlags{
		status:     fs.StringP("status", "s", "", "set status"),
		importance: fs.StringP("importance", "i", "", "set importance"),
		milestone:  fs.StringP("milestone", "m", "", "set milestone"),
		tags:       fs.StringP("tags", "t", "", "set tags"),
		assignee:   fs.StringP("assignee", "a", "", "assign to person"),
	}
}

// optional returns a pointer to v if the named flag was given a value.
func optional(fs *pflag.FlagSet, name, v string) *string {
	if !fs.Changed(name) || v == "" {
		return nil
	}
	return &v
}

func (tf *taskFlags) apply(fs *pflag.FlagSet, props *tracker.Properties) {
	props.Status = optional(fs, "status", *tf.status)
	props.Importance = optional(fs, "importance", *tf.importance)
	props.Milestone = optional(fs, "milestone", *tf.milestone)
	props.Assignee = optional(fs, "assignee", *tf.assignee)
	if tags := tracker.SplitList(*tf.tags); fs.Changed("tags") && len(tags) > 0 {
		props.Tags = tags
	}
}

func report(ctx context.Context, client *tracker.Client, s *settings, args []string, e *env) error {
	fs := pflag.NewFlagSet("report", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	tf := addTaskFlags(fs)
	private := fs.BoolP("private", "p", false, "make the bug private")
	edit := fs.BoolP("edit", "e", false, "compose the description in acme")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 || fs.NArg() > 2 {
		return errUsage
	}
	title := fs.Arg(0)
	description, err := e.text(fs.Arg(1), *edit, path.Join(s.project, "new"))
	if err != nil {
		return err
	}
	if description == "" {
		return fmt.Errorf("empty description: %w", errUsage)
	}

	props := s.properties()
	tf.apply(fs, &props)
	if *private {
		props.Private = private
	}
	bug, err := client.CreateBug(ctx, title, description, props)
	if bug != nil {
		fmt.Fprintf(e.stdout, "Reported bug #%d %s\n", bug.ID, bug.WebLink)
	}
	return err
}

func update(ctx context.Context, client *tracker.Client, s *settings, args []string, e *env) error {
	fs := pflag.NewFlagSet("update", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	tf := addTaskFlags(fs)
	title := fs.StringP("title", "l", "", "set title")
	description := fs.StringP("description", "d", "", "set description")
	private := fs.BoolP("private", "p", false, "make the bug private")
	public := fs.BoolP("public", "u", false, "make the bug public")
	affects := fs.StringP("affects", "f", "", "mark the bug as affecting this project")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	if *private && *public {
		return fmt.Errorf("both private and public requested: %w", errUsage)
	}
	id, err := parseBugID(fs.Arg(0))
	if err != nil {
		return err
	}

	props := s.properties()
	tf.apply(fs, &props)
	props.Title = optional(fs, "title", *title)
	props.Description = optional(fs, "description", *description)
	props.AffectsProject = optional(fs, "affects", *affects)
	if *private || *public {
		props.Private = private
	}
	if props.Description != nil && *props.Description == "-" {
		desc, err := e.text("-", false, "")
		if err != nil {
			return err
		}
		props.Description = &desc
	}

	bug, err := client.UpdateBug(ctx, id, props)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "Updated bug #%d %s\n", bug.ID, bug.WebLink)
	return nil
}

func comment(ctx context.Context, client *tracker.Client, s *settings, args []string, e *env) error {
	fs := pflag.NewFlagSet("comment", pflag.ContinueOnError)
	fs.SetOutput(e.stderr)
	edit := fs.BoolP("edit", "e", false, "compose the comment in acme")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() < 1 {
		return errUsage
	}
	var ids []int
	for _, f := range strings.Split(fs.Arg(0), ",") {
		id, err := parseBugID(f)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}
	content, err := e.text(strings.Join(fs.Args()[1:], " "), *edit, path.Join(s.project, strconv.Itoa(ids[0]), "comment"))
	if err != nil {
		return err
	}
	if content == "" {
		return fmt.Errorf("empty comment: %w", errUsage)
	}

	// bugs affecting other projects are skipped, and reported together at the end.
	var skipped []error
	for _, id := range ids {
		c, err := client.AddComment(ctx, content, id, s.properties())
		var aerr *tracker.AffectsError
		if errors.As(err, &aerr) {
			skipped = append(skipped, err)
			continue
		} else if err != nil {
			return err
		}
		if c != nil {
			fmt.Fprintln(e.stdout, "Added comment:", c.WebLink)
		}
	}
	return errors.Join(skipped...)
}

func show(ctx context.Context, client *tracker.Client, args []string, e *env) error {
	if len(args) != 1 {
		return errUsage
	}
	id, err := parseBugID(args[0])
	if err != nil {
		return err
	}
	bug, err := client.Bug(ctx, id)
	if err != nil {
		return err
	}
	tasks, err := client.Tasks(ctx, id)
	if err != nil {
		return err
	}
	return printBug(e.stdout, bug, tasks)
}

// text returns arg, or the standard input if arg is "-".
// If edit is true, the text is composed in a window named name.
func (e *env) text(arg string, edit bool, name string) (string, error) {
	if arg == "-" {
		b, err := io.ReadAll(e.stdin)
		if err != nil {
			return "", fmt.Errorf("read standard input: %w", err)
		}
		arg = strings.TrimSpace(string(b))
	}
	if edit {
		s, err := e.compose(name, arg)
		if err != nil {
			return "", fmt.Errorf("compose %s: %w", name, err)
		}
		return s, nil
	}
	return arg, nil
}

// parseBugID parses a bug number, which may be given as "1234",
// "#1234" or a link ending in the number such as
// https://bugs.launchpad.net/fuel/+bug/1234.
func parseBugID(s string) (int, error) {
	s = strings.TrimPrefix(path.Base(strings.TrimSuffix(s, "/")), "#")
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("bad bug id %q", s)
	}
	return id, nil
}
