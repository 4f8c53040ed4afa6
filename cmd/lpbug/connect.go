package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"olowe.co/lpbug/gh"
	"olowe.co/lpbug/launchpad"
	"olowe.co/lpbug/tracker"
)

var errNoCredentials = errors.New("no credentials")

// connect returns the backend named by s.
func connect(ctx context.Context, s *settings) (tracker.Backend, error) {
	switch s.backend {
	case "launchpad", "lp":
		return connectLaunchpad(s)
	case "github", "gh":
		return connectGitHub(ctx, s)
	}
	return nil, fmt.Errorf("unknown backend %q", s.backend)
}

func envOr(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func connectLaunchpad(s *settings) (tracker.Backend, error) {
	name := expandHome(envOr(s.getenv, "LAUNCHPAD_CREDS_FILENAME", "~/.launchpadlib/creds"))
	cred, err := launchpad.ReadCredentials(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no launchpad credentials file %s", errNoCredentials, name)
	} else if err != nil {
		return nil, fmt.Errorf("read launchpad credentials: %w", err)
	}
	root := launchpad.ServiceRoot
	if s.conf.ServiceRoot != "" {
		root = s.conf.ServiceRoot
	}
	u, err := url.Parse(root)
	if err != nil {
		return nil, fmt.Errorf("parse service root: %w", err)
	}
	cache := expandHome(envOr(s.getenv, "LAUNCHPAD_CACHE_DIR", "~/.launchpadlib/cache"))
	client := &launchpad.Client{
		Client: &http.Client{
			Transport: launchpad.CacheTransport(cache, nil),
			Timeout:   time.Minute,
		},
		APIRoot:     u,
		Credentials: cred,
		Debug:       s.verbose,
	}
	return launchpad.Backend{Client: client}, nil
}

func connectGitHub(ctx context.Context, s *settings) (tracker.Backend, error) {
	token := s.getenv("GITHUB_TOKEN")
	if token == "" {
		name := s.conf.GitHub.TokenFile
		if name == "" {
			name = "~/.github-issue-token"
		}
		b, err := os.ReadFile(expandHome(name))
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: set GITHUB_TOKEN or create %s", errNoCredentials, name)
		} else if err != nil {
			return nil, fmt.Errorf("read github token: %w", err)
		}
		token = strings.TrimSpace(string(b))
	}
	if s.verbose {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: logTransport{http.DefaultTransport}})
	}
	client, err := gh.NewClient(ctx, token, s.conf.GitHub.BaseURL)
	if err != nil {
		return nil, err
	}
	return gh.New(client, s.project)
}

// logTransport logs each request before sending it.
type logTransport struct {
	http.RoundTripper
}

func (t logTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	log.Println(req.Method, req.URL)
	return t.RoundTripper.RoundTrip(req)
}
