package launchpad

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/gregjones/httpcache"

	"olowe.co/lpbug/tracker"
)

const ServiceRoot = "https://api.launchpad.net/devel"

type Client struct {
	*http.Client
	APIRoot     *url.URL
	Credentials *Credentials
	Debug       bool
}

// Error is returned for responses with a status code of 400 or above.
// Launchpad explains errors in plain text in the response body.
type Error struct {
	Method  string
	URL     string
	Status  string
	Code    int
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: %s: %s", e.Method, e.URL, e.Status, e.Message)
}

// Is reports whether a not found response matches tracker.ErrNotFound.
func (e *Error) Is(target error) bool {
	return target == tracker.ErrNotFound && e.Code == http.StatusNotFound
}

func (c *Client) Project(ctx context.Context, name string) (*Project, error) {
	var p Project
	if err := c.get(ctx, name, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) Bug(ctx context.Context, id int) (*Bug, error) {
	var bug Bug
	if err := c.get(ctx, path.Join("bugs", strconv.Itoa(id)), nil, &bug); err != nil {
		return nil, err
	}
	return &bug, nil
}

// BugTasks returns every task of the bug at bugLink.
func (c *Client) BugTasks(ctx context.Context, bugLink string) ([]BugTask, error) {
	var tasks []BugTask
	next := strings.TrimSuffix(bugLink, "/") + "/bug_tasks"
	for next != "" {
		var page collection[BugTask]
		if err := c.get(ctx, next, nil, &page); err != nil {
			return nil, err
		}
		tasks = append(tasks, page.Entries...)
		next = page.NextLink
	}
	return tasks, nil
}

func (c *Client) BugTask(ctx context.Context, link string) (*BugTask, error) {
	var t BugTask
	if err := c.get(ctx, link, nil, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateBug files a new bug against the project or distribution at
// targetLink.
func (c *Client) CreateBug(ctx context.Context, targetLink, title, description string) (*Bug, error) {
	form := url.Values{
		"ws.op":       {"createBug"},
		"target":      {c.link(targetLink)},
		"title":       {title},
		"description": {description},
	}
	loc, err := c.invoke(ctx, "bugs", form)
	if err != nil {
		return nil, fmt.Errorf("create bug: %w", err)
	} else if loc == "" {
		return nil, fmt.Errorf("create bug: %w", errNoLocation)
	}
	var bug Bug
	if err := c.get(ctx, loc, nil, &bug); err != nil {
		return nil, fmt.Errorf("get created bug: %w", err)
	}
	return &bug, nil
}

// AddTask marks the bug at bugLink as affecting the target at targetLink.
func (c *Client) AddTask(ctx context.Context, bugLink, targetLink string) (*BugTask, error) {
	form := url.Values{
		"ws.op":  {"addTask"},
		"target": {c.link(targetLink)},
	}
	loc, err := c.invoke(ctx, bugLink, form)
	if err != nil {
		return nil, fmt.Errorf("add task: %w", err)
	} else if loc == "" {
		return nil, fmt.Errorf("add task: %w", errNoLocation)
	}
	return c.BugTask(ctx, loc)
}

// SetInformationType changes the visibility of the bug at bugLink.
// Types include "Public", "Public Security", "Private Security" and
// "Private".
func (c *Client) SetInformationType(ctx context.Context, bugLink, typ string) error {
	form := url.Values{
		"ws.op":            {"transitionToInformationType"},
		"information_type": {typ},
	}
	if _, err := c.invoke(ctx, bugLink, form); err != nil {
		return fmt.Errorf("set information type: %w", err)
	}
	return nil
}

func (c *Client) Person(ctx context.Context, name string) (*Person, error) {
	var p Person
	if err := c.get(ctx, "~"+name, nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Milestone returns the named milestone of the project at projectLink.
func (c *Client) Milestone(ctx context.Context, projectLink, name string) (*Milestone, error) {
	q := url.Values{
		"ws.op": {"getMilestone"},
		"name":  {name},
	}
	var m *Milestone
	if err := c.get(ctx, projectLink, q, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("milestone %s: %w", name, tracker.ErrNotFound)
	}
	return m, nil
}

// NewMessage adds a comment to the bug at bugLink.
func (c *Client) NewMessage(ctx context.Context, bugLink, content string) (*Message, error) {
	form := url.Values{
		"ws.op":   {"newMessage"},
		"content": {content},
	}
	loc, err := c.invoke(ctx, bugLink, form)
	if err != nil {
		return nil, fmt.Errorf("new message: %w", err)
	} else if loc == "" {
		return nil, fmt.Errorf("new message: %w", errNoLocation)
	}
	var m Message
	if err := c.get(ctx, loc, nil, &m); err != nil {
		return nil, fmt.Errorf("get new message: %w", err)
	}
	return &m, nil
}

// Patch changes the named fields of the object at link.
func (c *Client) Patch(ctx context.Context, link string, fields map[string]any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("to json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, c.link(link), bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// link resolves p, either an absolute link or a path relative to the API root.
func (c *Client) link(p string) string {
	if strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "http://") {
		return p
	}
	u := *c.APIRoot
	u.Path = path.Join(u.Path, p)
	return u.String()
}

func (c *Client) get(ctx context.Context, link string, query url.Values, v any) error {
	u := c.link(link)
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	// read to the end so the response is stored in any cache.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

// invoke calls the named operation in form on the object at link,
// returning the value of the response's Location header, if any.
func (c *Client) invoke(ctx context.Context, link string, form url.Values) (location string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.link(link), strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	resp, err := c.do(req)
	if err != nil {
		return "", err
	}
	resp.Body.Close()
	return resp.Header.Get("Location"), nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	if c.Client == nil {
		c.Client = http.DefaultClient
	}
	if c.Credentials != nil {
		req.Header.Set("Authorization", c.Credentials.authorization(realm(c.APIRoot)))
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.Do(req)
	if err != nil {
		return nil, err
	}
	if c.Debug {
		if resp.Header.Get(httpcache.XFromCache) != "" {
			log.Println(req.Method, req.URL, "(cached)")
		} else {
			log.Println(req.Method, req.URL)
		}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if err != nil {
			return nil, fmt.Errorf("%s %s: %s: read error message: %w", req.Method, req.URL, resp.Status, err)
		}
		return nil, &Error{
			Method:  req.Method,
			URL:     req.URL.String(),
			Status:  resp.Status,
			Code:    resp.StatusCode,
			Message: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

func realm(apiRoot *url.URL) string {
	return apiRoot.Scheme + "://" + apiRoot.Host + "/"
}

// authorization returns the value of an OAuth 1.0 Authorization header
// signed with the PLAINTEXT method.
func (cred *Credentials) authorization(realm string) string {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		panic(fmt.Sprintf("read random nonce: %v", err))
	}
	signature := url.QueryEscape(cred.ConsumerSecret) + "&" + url.QueryEscape(cred.AccessSecret)
	params := []struct{ k, v string }{
		{"realm", realm},
		{"oauth_consumer_key", cred.ConsumerKey},
		{"oauth_token", cred.AccessToken},
		{"oauth_signature_method", "PLAINTEXT"},
		{"oauth_signature", signature},
		{"oauth_timestamp", strconv.FormatInt(time.Now().Unix(), 10)},
		{"oauth_nonce", hex.EncodeToString(nonce)},
		{"oauth_version", "1.0"},
	}
	s := make([]string, len(params))
	for i, p := range params {
		v := p.v
		if p.k != "realm" {
			v = url.QueryEscape(v)
		}
		s[i] = fmt.Sprintf("%s=%q", p.k, v)
	}
	return "OAuth " + strings.Join(s, ", ")
}

var errNoLocation = errors.New("no Location in response")
