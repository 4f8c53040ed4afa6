// Command lpbug files, updates and comments on bugs in Launchpad
// or in the issues of a GitHub repository.
//
// Its usage is:
//
//	lpbug [ -o projects ] [ -a ] [ -b backend ] [ -c config ] [ -v ] [ project ] command args...
//
// The commands are:
//
//	report [-s status] [-i importance] [-m milestone] [-t tags] [-a assignee] [-p] [-e] title [description]
//		File a new bug against project.
//		A description of "-" is read from the standard input.
//	update [-l title] [-d description] [-s status] [-i importance] [-m milestone] [-t tags] [-a assignee] [-p | -u] [-f project] bug
//		Change a bug. The flag -p makes the bug private, -u public.
//		The flag -f marks the bug as also affecting the named project.
//	comment [-e] bug[,bug...] [comment ...]
//		Add a comment to each listed bug. A comment of "-" is read from the standard input.
//	show bug
//		Print a bug and the status of each of its tasks.
//
// Status, importance, milestone and assignee are properties of the
// bug's task in each project, and are only changed for projects in the
// list given by -o, a list separated by commas, semicolons, slashes or
// spaces. The list defaults to the project itself.
// Likewise a comment is only made if the bug affects a listed project.
// Unless -a is given, a bug affecting any project not listed is left
// untouched with a warning.
//
// With -e, the description of a new bug or a comment is composed in
// an acme window, and sent when Put is executed in the window.
//
// # Configuration
//
// Defaults are read from the TOML file named by -c, by $LPBUG_CONFIG,
// or else from lpbug/config.toml in the user configuration directory.
// The file may name a default project, which may then be omitted from
// the command line:
//
//	project = "fuel"
//	affects_only = ["fuel", "mos"]
//	backend = "launchpad"
//
// Environment variables may also be set in a file named .env in the
// current directory.
//
// # Authentication
//
// For Launchpad, OAuth credentials are read from the launchpadlib
// credentials file $LAUNCHPAD_CREDS_FILENAME, by default
// ~/.launchpadlib/creds. Responses are cached in $LAUNCHPAD_CACHE_DIR,
// by default ~/.launchpadlib/cache.
//
// For GitHub (-b github), the project is given as owner/repo and a
// personal access token is read from $GITHUB_TOKEN, or the file named
// by token_file in the [github] section of the configuration,
// by default ~/.github-issue-token.
//
// # Examples
//
// Report a bug and set its importance:
//
//	lpbug fuel report -i High -t ui,docs 'Typo in settings tab' 'The tab says "Setings".'
//
// Confirm a bug shared by two projects, in both projects:
//
//	lpbug -o fuel,mos fuel update -s Confirmed 1428176
//
// Comment on a bug from a file:
//
//	lpbug fuel comment 1428176 - <notes.txt
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"

	"github.com/joho/godotenv"

	"olowe.co/lpbug/tracker"
)

func init() {
	log.SetFlags(0)
	log.SetPrefix("lpbug: ")
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Fatalf("load .env: %v", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	e := &env{
		stdin:   os.Stdin,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
		getenv:  os.Getenv,
		connect: connect,
		compose: composeAcme,
	}
	code := exitStatus(os.Stderr, run(ctx, os.Args[1:], e))
	stop()
	os.Exit(code)
}

// exitStatus reports err on w and returns the process exit status.
// Bugs left alone because they affect other projects are only a warning.
func exitStatus(w io.Writer, err error) int {
	l := log.New(w, log.Prefix(), log.Flags())
	var aerr *tracker.AffectsError
	switch {
	case err == nil:
		return 0
	case errors.As(err, &aerr):
		l.Println(err)
		return 0
	case errors.Is(err, errUsage):
		if err != errUsage {
			l.Println(err)
		}
		fmt.Fprintln(w, usage)
		return 2
	}
	l.Println(err)
	return 1
}

const usage = "usage: lpbug [-o projects] [-a] [-b backend] [-c config] [-v] [project] report|update|comment|show args..."

var errUsage = errors.New("usage")

type env struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	getenv func(string) string
	// connect returns a connection to the named backend for project.
	connect func(ctx context.Context, s *settings) (tracker.Backend, error)
	// compose returns text written by the user, starting from initial.
	compose func(name, initial string) (string, error)
}
