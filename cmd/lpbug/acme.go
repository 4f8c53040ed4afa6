package main

import (
	"errors"
	"path"
	"strings"

	"9fans.net/go/acme"
)

// awin is a window in which text is composed.
// Executing Put hands the window body to the waiting command
// and deletes the window.
type awin struct {
	*acme.Win
	body chan string
}

func (w *awin) Execute(cmd string) bool {
	if strings.TrimSpace(cmd) != "Put" {
		return false
	}
	b, err := w.ReadAll("body")
	if err != nil {
		w.Err(err.Error())
		return true
	}
	select {
	case w.body <- string(b):
	default:
	}
	w.Ctl("clean")
	w.Del(true)
	return true
}

func (w *awin) Look(text string) bool { return false }

var errNotPut = errors.New("window deleted before Put")

// composeAcme opens a new acme window named /lpbug/name holding initial
// and waits for the user to Put or delete it.
func composeAcme(name, initial string) (string, error) {
	win, err := acme.New()
	if err != nil {
		return "", err
	}
	win.Name(path.Join("/lpbug", name))
	win.Fprintf("tag", "Put ")
	if initial != "" {
		if _, err := win.Write("body", []byte(initial)); err != nil {
			win.Del(true)
			return "", err
		}
	}
	win.Ctl("clean")
	w := &awin{win, make(chan string, 1)}
	w.EventLoop(w)
	select {
	case body := <-w.body:
		return strings.TrimSpace(body), nil
	default:
		return "", errNotPut
	}
}
