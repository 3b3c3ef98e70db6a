package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/spotsync/internal/tasks"
)

var (
	_ list.Item = failureItem{}
)

// failureItem wraps [tasks.Failure] to implement [list.Item].
type failureItem struct {
	failure     tasks.Failure
	unavailable bool
}

func (i failureItem) FilterValue() string { return i.failure.Track.Label() }
func (i failureItem) Title() string {
	return fmt.Sprintf("%d. %s", i.failure.Track.Position+1, i.failure.Track.Label())
}
func (i failureItem) Description() string {
	kind := "failed"
	if i.unavailable {
		kind = "unavailable"
	}
	if i.failure.Reason == nil {
		return kind
	}
	return fmt.Sprintf("%s • %v", kind, i.failure.Reason)
}

func failureItems(s *tasks.Summary) []list.Item {
	items := make([]list.Item, 0, len(s.Failures)+len(s.Unavailable))
	for _, f := range s.Failures {
		items = append(items, failureItem{failure: f})
	}
	for _, f := range s.Unavailable {
		items = append(items, failureItem{failure: f, unavailable: true})
	}
	return items
}
