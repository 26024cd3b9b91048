package queue

import (
	"sync"

	"github.com/sirupsen/logrus"

	"linkprobe/pkg/models"
)

// Worklist is the FIFO queue of fetched-but-not-yet-parsed pages for one
// seed. Pages are popped in discovery order so a single-worker crawl is fully
// deterministic for a given site and link layout.
type Worklist struct {
	mu     sync.Mutex
	cond   *sync.Cond // Signals waiting workers when an item arrives or the list closes
	items  []*models.Page
	closed bool
	log    *logrus.Entry
}

// NewWorklist creates an empty, open worklist
func NewWorklist(logger *logrus.Entry) *Worklist {
	wl := &Worklist{log: logger}
	wl.cond = sync.NewCond(&wl.mu)
	return wl
}

// Add appends a page to the tail of the list.
// Returns false if the list is already closed and the page was not accepted;
// callers doing task accounting must undo their bookkeeping in that case.
func (wl *Worklist) Add(page *models.Page) bool {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	if wl.closed {
		wl.log.Debugf("Worklist closed, dropping page: %s", page.Path)
		return false
	}
	wl.items = append(wl.items, page)
	wl.cond.Signal()
	return true
}

// Pop removes and returns the oldest page. It blocks while the list is empty
// and open; once the list is closed and drained it returns (nil, false).
func (wl *Worklist) Pop() (*models.Page, bool) {
	wl.mu.Lock()
	defer wl.mu.Unlock()

	for len(wl.items) == 0 {
		if wl.closed {
			return nil, false
		}
		wl.cond.Wait()
	}

	page := wl.items[0]
	wl.items[0] = nil // avoid holding the parsed document alive
	wl.items = wl.items[1:]
	return page, true
}

// Close marks the list as accepting no further pages and wakes all waiters.
// Pages already queued remain poppable until drained.
func (wl *Worklist) Close() {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	if !wl.closed {
		wl.closed = true
		wl.cond.Broadcast()
	}
}

// Len returns the number of queued pages
func (wl *Worklist) Len() int {
	wl.mu.Lock()
	defer wl.mu.Unlock()
	return len(wl.items)
}
