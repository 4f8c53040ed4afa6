package launchpad

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/mux"
)

// fakeLaunchpad serves a small writable subset of the Launchpad web
// service API from memory, under the path /devel.
// Every object's ETag is its version, bumped on each change.
type fakeLaunchpad struct {
	*httptest.Server

	mu         sync.Mutex
	projects   map[string]bool
	people     map[string]bool
	milestones map[string]bool // "project/name"
	bugs       map[int]*Bug
	tasks      map[int][]*BugTask
	messages   map[int][]*Message
	versions   map[string]int // by path

	// Authorization headers received, and count of 304 responses.
	auth        []string
	notModified int
	nextID      int
}

func newFakeLaunchpad() *fakeLaunchpad {
	f := &fakeLaunchpad{
		projects:   map[string]bool{"fuel": true, "mos": true},
		people:     map[string]bool{"alice": true},
		milestones: map[string]bool{"fuel/6.1": true},
		bugs:       make(map[int]*Bug),
		tasks:      make(map[int][]*BugTask),
		messages:   make(map[int][]*Message),
		versions:   make(map[string]int),
		nextID:     1400000,
	}
	r := mux.NewRouter()
	r.Use(f.recordAuth)
	r.HandleFunc("/devel/bugs", f.handleBugsOp).Methods(http.MethodPost)
	r.HandleFunc("/devel/bugs/{id:[0-9]+}", f.handleBug).Methods(http.MethodGet, http.MethodPatch, http.MethodPost)
	r.HandleFunc("/devel/bugs/{id:[0-9]+}/bug_tasks", f.handleTasks).Methods(http.MethodGet)
	r.HandleFunc("/devel/bugs/{id:[0-9]+}/+messages/{n:[0-9]+}", f.handleMessage).Methods(http.MethodGet)
	r.HandleFunc("/devel/~{name}", f.handlePerson).Methods(http.MethodGet)
	r.HandleFunc("/devel/{project}/+bug/{id:[0-9]+}", f.handleTask).Methods(http.MethodGet, http.MethodPatch)
	r.HandleFunc("/devel/{project}", f.handleProject).Methods(http.MethodGet)
	f.Server = httptest.NewServer(r)
	return f
}

func (f *fakeLaunchpad) root(req *http.Request) string {
	return "http://" + req.Host + "/devel"
}

func (f *fakeLaunchpad) recordAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		f.mu.Lock()
		f.auth = append(f.auth, req.Header.Get("Authorization"))
		f.mu.Unlock()
		if !strings.HasPrefix(req.Header.Get("Authorization"), "OAuth ") {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, req)
	})
}

// addBug stores a bug affecting the named projects.
func (f *fakeLaunchpad) addBug(title string, affects ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.addBugLocked(title, "", affects...)
}

func (f *fakeLaunchpad) addBugLocked(title, description string, affects ...string) int {
	f.nextID++
	id := f.nextID
	f.bugs[id] = &Bug{ID: id, Title: title, Description: description, InformationType: "Public", Tags: []string{}}
	for _, p := range affects {
		f.tasks[id] = append(f.tasks[id], &BugTask{BugTargetName: p, Status: "New", Importance: "Undecided"})
	}
	return id
}

func (f *fakeLaunchpad) bug(id int) Bug {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.bugs[id]
}

func (f *fakeLaunchpad) task(id int, project string) BugTask {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.tasks[id] {
		if t.BugTargetName == project {
			return *t
		}
	}
	return BugTask{}
}

// serveJSON writes v, or 304 if the client already holds the current version.
func (f *fakeLaunchpad) serveJSON(w http.ResponseWriter, req *http.Request, v any) {
	etag := fmt.Sprintf(`"%s-%d"`, req.URL.Path, f.versions[req.URL.Path])
	if req.Header.Get("If-None-Match") == etag {
		f.notModified++
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("ETag", etag)
	json.NewEncoder(w).Encode(v)
}

func (f *fakeLaunchpad) touch(paths ...string) {
	for _, p := range paths {
		f.versions[p]++
	}
}

func (f *fakeLaunchpad) bugJSON(root string, b *Bug) *Bug {
	bb := *b
	bb.SelfLink = fmt.Sprintf("%s/bugs/%d", root, b.ID)
	bb.WebLink = fmt.Sprintf("https://bugs.launchpad.net/bugs/%d", b.ID)
	bb.TasksLink = bb.SelfLink + "/bug_tasks"
	bb.MessagesLink = bb.SelfLink + "/messages"
	bb.Private = b.InformationType == "Private"
	return &bb
}

func (f *fakeLaunchpad) taskJSON(root string, id int, t *BugTask) *BugTask {
	tt := *t
	tt.SelfLink = fmt.Sprintf("%s/%s/+bug/%d", root, t.BugTargetName, id)
	tt.WebLink = fmt.Sprintf("https://bugs.launchpad.net/%s/+bug/%d", t.BugTargetName, id)
	tt.BugLink = fmt.Sprintf("%s/bugs/%d", root, id)
	tt.TargetLink = root + "/" + t.BugTargetName
	return &tt
}

func (f *fakeLaunchpad) handleBugsOp(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.PostFormValue("ws.op") != "createBug" {
		http.Error(w, "No such operation", http.StatusBadRequest)
		return
	}
	title := req.PostFormValue("title")
	if title == "" {
		http.Error(w, "title: Required input is missing.", http.StatusBadRequest)
		return
	}
	target := lastElem(req.PostFormValue("target"))
	if !f.projects[target] {
		http.Error(w, "target: no such project", http.StatusBadRequest)
		return
	}
	id := f.addBugLocked(title, req.PostFormValue("description"), target)
	w.Header().Set("Location", fmt.Sprintf("%s/bugs/%d", f.root(req), id))
	w.WriteHeader(http.StatusCreated)
}

func (f *fakeLaunchpad) handleBug(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.Atoi(mux.Vars(req)["id"])
	bug, ok := f.bugs[id]
	if !ok {
		http.NotFound(w, req)
		return
	}
	switch req.Method {
	case http.MethodGet:
		f.serveJSON(w, req, f.bugJSON(f.root(req), bug))
	case http.MethodPatch:
		var fields struct {
			Title       *string
			Description *string
			Tags        []string
		}
		if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if fields.Title != nil {
			bug.Title = *fields.Title
		}
		if fields.Description != nil {
			bug.Description = *fields.Description
		}
		if fields.Tags != nil {
			bug.Tags = fields.Tags
		}
		f.touch(req.URL.Path)
		w.WriteHeader(http.StatusOK)
	case http.MethodPost:
		f.bugOp(w, req, id, bug)
	}
}

func (f *fakeLaunchpad) bugOp(w http.ResponseWriter, req *http.Request, id int, bug *Bug) {
	root := f.root(req)
	switch req.PostFormValue("ws.op") {
	case "addTask":
		target := lastElem(req.PostFormValue("target"))
		if !f.projects[target] {
			http.Error(w, "target: no such project", http.StatusBadRequest)
			return
		}
		for _, t := range f.tasks[id] {
			if t.BugTargetName == target {
				http.Error(w, "A fix for this bug has already been requested for "+target, http.StatusBadRequest)
				return
			}
		}
		f.tasks[id] = append(f.tasks[id], &BugTask{BugTargetName: target, Status: "New", Importance: "Undecided"})
		f.touch(req.URL.Path + "/bug_tasks")
		w.Header().Set("Location", fmt.Sprintf("%s/%s/+bug/%d", root, target, id))
		w.WriteHeader(http.StatusCreated)
	case "newMessage":
		content := req.PostFormValue("content")
		f.messages[id] = append(f.messages[id], &Message{Subject: "Re: " + bug.Title, Content: content})
		w.Header().Set("Location", fmt.Sprintf("%s/bugs/%d/+messages/%d", root, id, len(f.messages[id])))
		w.WriteHeader(http.StatusCreated)
	case "transitionToInformationType":
		bug.InformationType = req.PostFormValue("information_type")
		f.touch(req.URL.Path)
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "null")
	default:
		http.Error(w, "No such operation", http.StatusBadRequest)
	}
}

func (f *fakeLaunchpad) handleTasks(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, _ := strconv.Atoi(mux.Vars(req)["id"])
	if _, ok := f.bugs[id]; !ok {
		http.NotFound(w, req)
		return
	}
	var c collection[*BugTask]
	for _, t := range f.tasks[id] {
		c.Entries = append(c.Entries, f.taskJSON(f.root(req), id, t))
	}
	c.TotalSize = len(c.Entries)
	f.serveJSON(w, req, c)
}

func (f *fakeLaunchpad) handleTask(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vars := mux.Vars(req)
	id, _ := strconv.Atoi(vars["id"])
	var task *BugTask
	for _, t := range f.tasks[id] {
		if t.BugTargetName == vars["project"] {
			task = t
		}
	}
	if task == nil {
		http.NotFound(w, req)
		return
	}
	if req.Method == http.MethodGet {
		f.serveJSON(w, req, f.taskJSON(f.root(req), id, task))
		return
	}
	var fields struct {
		Status        *string `json:"status"`
		Importance    *string `json:"importance"`
		MilestoneLink *string `json:"milestone_link"`
		AssigneeLink  *string `json:"assignee_link"`
	}
	if err := json.NewDecoder(req.Body).Decode(&fields); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if fields.Status != nil {
		task.Status = *fields.Status
	}
	if fields.Importance != nil {
		task.Importance = *fields.Importance
	}
	if fields.MilestoneLink != nil {
		task.MilestoneLink = *fields.MilestoneLink
	}
	if fields.AssigneeLink != nil {
		task.AssigneeLink = *fields.AssigneeLink
	}
	f.touch(req.URL.Path, fmt.Sprintf("/devel/bugs/%d/bug_tasks", id))
	w.WriteHeader(http.StatusOK)
}

func (f *fakeLaunchpad) handleMessage(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	vars := mux.Vars(req)
	id, _ := strconv.Atoi(vars["id"])
	n, _ := strconv.Atoi(vars["n"])
	if n < 1 || n > len(f.messages[id]) {
		http.NotFound(w, req)
		return
	}
	m := *f.messages[id][n-1]
	m.SelfLink = f.root(req) + req.URL.Path[len("/devel"):]
	m.WebLink = fmt.Sprintf("https://bugs.launchpad.net/bugs/%d/comments/%d", id, n)
	f.serveJSON(w, req, &m)
}

func (f *fakeLaunchpad) handlePerson(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := mux.Vars(req)["name"]
	if !f.people[name] {
		http.NotFound(w, req)
		return
	}
	f.serveJSON(w, req, &Person{
		Name:     name,
		SelfLink: f.root(req) + "/~" + name,
		WebLink:  "https://launchpad.net/~" + name,
	})
}

func (f *fakeLaunchpad) handleProject(w http.ResponseWriter, req *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	name := mux.Vars(req)["project"]
	if !f.projects[name] {
		http.NotFound(w, req)
		return
	}
	root := f.root(req)
	if req.URL.Query().Get("ws.op") == "getMilestone" {
		ms := req.URL.Query().Get("name")
		w.Header().Set("Content-Type", "application/json")
		if !f.milestones[name+"/"+ms] {
			fmt.Fprintln(w, "null")
			return
		}
		json.NewEncoder(w).Encode(&Milestone{
			Name:     ms,
			SelfLink: fmt.Sprintf("%s/%s/+milestone/%s", root, name, ms),
		})
		return
	}
	f.serveJSON(w, req, &Project{
		Name:     name,
		SelfLink: root + "/" + name,
		WebLink:  "https://launchpad.net/" + name,
	})
}

func lastElem(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	elems := strings.Split(strings.TrimSuffix(u.Path, "/"), "/")
	return elems[len(elems)-1]
}
