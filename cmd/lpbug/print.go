package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"olowe.co/lpbug/tracker"
)

// printBug writes bug in a mail-like form followed by one line per task.
func printBug(w io.Writer, bug *tracker.Bug, tasks []*tracker.Task) error {
	buf := &strings.Builder{}
	fmt.Fprintln(buf, "URL:", bug.WebLink)
	fmt.Fprintln(buf, "Subject:", bug.Title)
	if len(bug.Tags) > 0 {
		fmt.Fprintln(buf, "Tags:", strings.Join(bug.Tags, " "))
	}
	if bug.Private {
		fmt.Fprintln(buf, "Private: yes")
	}
	fmt.Fprintln(buf)
	fmt.Fprintln(buf, bug.Description)
	fmt.Fprintln(buf)

	tw := tabwriter.NewWriter(buf, 0, 8, 1, ' ', 0)
	for _, t := range tasks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", t.Target, orDash(t.Status), orDash(t.Importance), refName(t.Milestone), refName(t.Assignee))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := io.WriteString(w, buf.String())
	return err
}

func refName(r *tracker.Ref) string {
	if r == nil {
		return "-"
	}
	return orDash(r.Name)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
