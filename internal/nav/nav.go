// Package nav holds the static course navigation table backing the
// generator's navigation tools.
package nav

import (
	"encoding/json"
	"fmt"
	"strings"
)

type Page struct {
	Path  string `json:"path"`
	Title string `json:"title"`
}

type pageEntry struct {
	key  string
	page Page
}

// Ordered so ListPages output is deterministic.
var coursePages = []pageEntry{
	{"intro", Page{Path: "/docs", Title: "Introduction"}},
	{"week 1", Page{Path: "/docs/module1/week1-intro-physical-ai", Title: "Week 1: Intro"}},
	{"module 1", Page{Path: "/docs/module1/week1-intro-physical-ai", Title: "Module 1"}},
}

func lookup(destination string) (Page, bool) {
	key := strings.ToLower(strings.TrimSpace(destination))
	for _, entry := range coursePages {
		if entry.key == key {
			return entry.page, true
		}
	}
	return Page{}, false
}

// Navigate returns the redirect payload for a destination. Unknown
// destinations fall back to the docs landing page rather than erroring; the
// tool surface is a side capability and must not break the answer path.
func Navigate(destination, section string) string {
	page, ok := lookup(destination)
	if !ok {
		page = Page{Path: "/docs", Title: "Introduction"}
	}
	payload := map[string]string{
		"action":  "redirect",
		"path":    page.Path,
		"message": fmt.Sprintf("Navigating to %s", destination),
	}
	if section != "" {
		payload["section"] = section
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return `{"action": "redirect", "path": "/docs"}`
	}
	return string(b)
}

// ListPages returns the JSON listing of every navigable page.
func ListPages() string {
	pages := make([]Page, 0, len(coursePages))
	for _, entry := range coursePages {
		pages = append(pages, entry.page)
	}
	b, err := json.Marshal(map[string][]Page{"pages": pages})
	if err != nil {
		return `{"pages": []}`
	}
	return string(b)
}
