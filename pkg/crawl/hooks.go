package crawl

import (
	"context"

	"github.com/sirupsen/logrus"

	"linkprobe/pkg/models"
	"linkprobe/pkg/session"
)

// Context is an immutable snapshot of engine state handed to hooks and
// ignore predicates. The engine builds a fresh value per invocation; nothing
// a hook does to it feeds back into the crawl.
type Context struct {
	Seed        string // Seed key (name, or path when unnamed)
	SeedPath    string // The seed's entry path
	PagePath    string // Page the current reference was found on; "" during Setup/Teardown
	PagesParsed int
	Session     *session.Session // For hooks that need to prime or clear auth state
	Log         *logrus.Entry
}

// Hooks are optional per-seed lifecycle callbacks. Setup runs after the
// session is acquired and before the entry page is fetched; Teardown runs
// after the seed's worklist is exhausted.
type Hooks interface {
	Setup(ctx context.Context, c *Context) error
	Teardown(ctx context.Context, c *Context) error
}

// IgnoreFunc decides whether a reference should be excluded from seed state
// entirely (no probe, no occurrence). It is re-evaluated for every
// occurrence; results are not cached.
type IgnoreFunc func(c *Context, ref *models.Reference) bool

// HookFuncs adapts plain functions to the Hooks interface; nil fields are
// no-ops.
type HookFuncs struct {
	SetupFunc    func(ctx context.Context, c *Context) error
	TeardownFunc func(ctx context.Context, c *Context) error
}

// Setup implements Hooks
func (h HookFuncs) Setup(ctx context.Context, c *Context) error {
	if h.SetupFunc == nil {
		return nil
	}
	return h.SetupFunc(ctx, c)
}

// Teardown implements Hooks
func (h HookFuncs) Teardown(ctx context.Context, c *Context) error {
	if h.TeardownFunc == nil {
		return nil
	}
	return h.TeardownFunc(ctx, c)
}
