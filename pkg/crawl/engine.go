package crawl

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"linkprobe/pkg/config"
	"linkprobe/pkg/fetch"
	"linkprobe/pkg/models"
	"linkprobe/pkg/queue"
	"linkprobe/pkg/resolve"
	"linkprobe/pkg/session"
	"linkprobe/pkg/store"
	"linkprobe/pkg/utils"
)

// ExternalProber abstracts the reachability check for external references
type ExternalProber interface {
	Probe(ctx context.Context, absURL string) int
}

// Engine orchestrates a crawl run: it iterates seeds, drives each seed's
// worklist to exhaustion (or to the page limit), classifies and probes every
// discovered reference exactly once per seed, and accumulates per-seed state.
type Engine struct {
	cfg      *config.AppConfig
	site     *url.URL
	seeds    []Seed
	resolver *resolve.Resolver
	prober   ExternalProber
	ignore   IgnoreFunc          // Engine-wide exclusion, applied before per-seed predicates
	reqSem   *semaphore.Weighted // Global cap on in-flight requests
	runID    string
	log      *logrus.Entry
}

// EngineOptions contains optional parameters for NewWithOptions
type EngineOptions struct {
	// Prober substitutes the external reachability check (test doubles).
	// If nil, a default prober with the configured probe timeout is used.
	Prober ExternalProber

	// Ignore excludes matching references across every seed. It is
	// consulted before the seed's own predicate.
	Ignore IgnoreFunc
}

// New creates and initializes an Engine and its components
func New(cfg *config.AppConfig, seeds []Seed, baseLogger *logrus.Entry) (*Engine, error) {
	return NewWithOptions(cfg, seeds, baseLogger, nil)
}

// NewWithOptions creates an Engine with optional overrides
func NewWithOptions(cfg *config.AppConfig, seeds []Seed, baseLogger *logrus.Entry, opts *EngineOptions) (*Engine, error) {
	site, err := url.Parse(cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing site URL '%s': %w", utils.ErrConfigValidation, cfg.SiteURL, err)
	}
	if site.Scheme != "http" && site.Scheme != "https" {
		return nil, fmt.Errorf("%w: site URL must be http or https, got '%s'", utils.ErrConfigValidation, cfg.SiteURL)
	}
	if len(seeds) == 0 {
		return nil, fmt.Errorf("%w: no seeds to crawl", utils.ErrConfigValidation)
	}

	runID := uuid.NewString()
	logger := baseLogger.WithField("run_id", runID)

	var prober ExternalProber
	var ignore IgnoreFunc
	if opts != nil {
		prober = opts.Prober
		ignore = opts.Ignore
	}
	if prober == nil {
		probeClient := fetch.NewClient(config.HTTPClientConfig{
			Timeout:      cfg.EffectiveProbeTimeout(),
			MaxRedirects: cfg.HTTPClient.MaxRedirects,
		}, logger)
		prober = fetch.NewProber(probeClient, logger)
	}

	return &Engine{
		cfg:      cfg,
		site:     site,
		seeds:    seeds,
		resolver: resolve.New(site),
		prober:   prober,
		ignore:   ignore,
		reqSem:   semaphore.NewWeighted(int64(cfg.EffectiveMaxRequests())),
		runID:    runID,
		log:      logger,
	}, nil
}

// Run crawls all seeds in order and returns the accumulated result. A fatal
// error in one seed is recorded on its SeedResult and does not abort the
// others; only context cancellation stops the run early.
func (e *Engine) Run(ctx context.Context) *Result {
	e.log.WithFields(logrus.Fields{"site": e.site.String(), "seeds": len(e.seeds), "workers": e.cfg.EffectiveWorkers()}).
		Info("Crawl starting")
	start := time.Now()

	result := &Result{RunID: e.runID, Site: e.site.String()}
	for _, seed := range e.seeds {
		if ctx.Err() != nil {
			e.log.Warnf("Crawl context cancelled, skipping remaining seeds: %v", ctx.Err())
			result.Seeds = append(result.Seeds, &SeedResult{
				Seed:  seed.Key(),
				Path:  seed.Path,
				State: models.SeedStateNotStarted,
				Links: make(map[string]*models.Reference),
				Err:   ctx.Err(),
			})
			continue
		}
		result.Seeds = append(result.Seeds, e.runSeed(ctx, seed))
	}

	totalLinks, totalFiles := 0, 0
	for _, s := range result.Seeds {
		totalLinks += len(s.Links)
		totalFiles += len(s.Files)
	}
	e.log.WithFields(logrus.Fields{
		"duration": time.Since(start).String(),
		"links":    totalLinks,
		"files":    totalFiles,
	}).Info("Crawl finished")
	return result
}

// runSeed drives one seed from session acquisition through worklist
// exhaustion to teardown
func (e *Engine) runSeed(ctx context.Context, seed Seed) *SeedResult {
	seedLog := e.log.WithField("seed", seed.Key())
	res := &SeedResult{
		Seed:  seed.Key(),
		Path:  seed.Path,
		State: models.SeedStateNotStarted,
		Links: make(map[string]*models.Reference),
	}

	fail := func(err error) *SeedResult {
		res.Err = err
		res.State = models.SeedStateFinished
		seedLog.WithField("category", utils.CategorizeError(err)).Errorf("Seed failed: %v", err)
		return res
	}

	captureStore, err := store.NewCaptureStore(seedLog)
	if err != nil {
		return fail(err)
	}
	defer captureStore.Close()

	// Acquire the seed session: a pre-built one wins, otherwise build from
	// the seed's auth configuration
	sess := seed.Session
	if sess == nil {
		sess, err = session.New(e.site, e.cfg.HTTPClient, seed.BasicAuth,
			e.cfg.EffectiveUserAgent(), e.cfg.EffectiveMaxPageSize(), seedLog)
		if err != nil {
			return fail(err)
		}
	}
	if seed.FormLogin != nil {
		if err := sess.Login(ctx, seed.FormLogin); err != nil {
			return fail(err)
		}
	}

	hookCtx := &Context{Seed: seed.Key(), SeedPath: seed.Path, Session: sess, Log: seedLog}
	if seed.Hooks != nil {
		if err := seed.Hooks.Setup(ctx, hookCtx); err != nil {
			return fail(fmt.Errorf("%w: setup hook: %w", utils.ErrSeedSetup, err))
		}
	}

	res.State = models.SeedStateRunning
	seedLog.Info("Seed crawl starting")
	start := time.Now()

	run := &seedRun{
		engine: e,
		seed:   seed,
		sess:   sess,
		store:  captureStore,
		res:    res,
		wl:     queue.NewWorklist(seedLog),
		seen:   make(map[string]bool),
		log:    seedLog,
	}

	// Fetch the entry page through the session and capture it
	// unconditionally; the entry point is trusted to be valid HTML. A
	// malformed entry simply yields no further links.
	entry, err := sess.Fetch(ctx, seed.Path)
	if err != nil {
		res.Err = fmt.Errorf("%w: fetching entry page '%s': %w", utils.ErrSeedSetup, seed.Path, err)
		seedLog.WithField("category", utils.CategorizeError(res.Err)).Errorf("Entry fetch failed: %v", err)
	} else {
		if file, ferr := models.NewFile(seed.Path, entry.ContentType(), entry.Body); ferr != nil {
			seedLog.Errorf("Failed to compress entry page body: %v", ferr)
		} else if perr := captureStore.Put(file); perr != nil {
			seedLog.Errorf("Failed to store entry page body: %v", perr)
		}
		if entry.Doc != nil {
			run.enqueue(&models.Page{Path: seed.Path, URL: entry.FinalURL.String(), Doc: entry.Doc})
		} else {
			seedLog.Warn("Entry page did not parse as HTML; nothing to traverse")
		}
	}

	workers := e.cfg.EffectiveWorkers()
	var workerWg sync.WaitGroup
	for i := 1; i <= workers; i++ {
		workerWg.Add(1)
		go func(id int) {
			defer workerWg.Done()
			run.worker(ctx, seedLog.WithField("worker_id", id))
		}(i)
	}

	// Close the worklist once every queued page has been accounted for
	go func() {
		run.tasks.Wait()
		run.wl.Close()
	}()

	workerWg.Wait()

	if seed.Hooks != nil {
		if terr := seed.Hooks.Teardown(ctx, hookCtx); terr != nil {
			seedLog.Warnf("Teardown hook failed: %v", terr)
		}
	}

	if files, ferr := captureStore.Files(); ferr != nil {
		seedLog.Errorf("Failed to collect captured files: %v", ferr)
	} else {
		res.Files = files
	}
	run.mu.Lock()
	res.PagesParsed = run.parsed
	run.mu.Unlock()
	res.State = models.SeedStateFinished

	seedLog.WithFields(logrus.Fields{
		"duration": time.Since(start).String(),
		"pages":    res.PagesParsed,
		"links":    len(res.Links),
		"files":    len(res.Files),
	}).Info("Seed crawl finished")
	return res
}

// seedRun is the mutable traversal state for one seed's crawl
type seedRun struct {
	engine *Engine
	seed   Seed
	sess   *session.Session
	store  *store.CaptureStore
	res    *SeedResult
	wl     *queue.Worklist
	log    *logrus.Entry

	tasks sync.WaitGroup // One unit per page on the worklist

	mu       sync.Mutex // Guards seen, parsed, stopping
	seen     map[string]bool
	parsed   int
	stopping bool

	linksMu sync.Mutex // Guards res.Links and occurrence appends
}

// enqueue adds a fetched page to the worklist unless its path was already
// queued or parsed
func (r *seedRun) enqueue(page *models.Page) {
	r.mu.Lock()
	if r.stopping || r.seen[page.Path] {
		r.mu.Unlock()
		return
	}
	r.seen[page.Path] = true
	r.mu.Unlock()

	r.tasks.Add(1)
	if !r.wl.Add(page) {
		r.tasks.Done()
	}
}

// worker drains the worklist until it is closed and empty
func (r *seedRun) worker(ctx context.Context, workerLog *logrus.Entry) {
	for {
		page, ok := r.wl.Pop()
		if !ok {
			return
		}
		if r.beginParse(ctx) {
			r.parsePage(ctx, page, workerLog)
		}
		r.tasks.Done()
	}
}

// beginParse enforces the page limit as a hard ceiling on pages parsed: the
// page that would cross the limit is never parsed and the remaining worklist
// is discarded.
func (r *seedRun) beginParse(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopping {
		return false
	}
	if ctx.Err() != nil {
		r.stopping = true
		r.wl.Close()
		r.log.Warnf("Crawl context cancelled, discarding remaining worklist: %v", ctx.Err())
		return false
	}
	if limit := r.engine.cfg.Limit; limit > 0 && r.parsed >= limit {
		r.stopping = true
		r.wl.Close()
		r.log.WithField("limit", limit).Info("Page limit reached, discarding remaining worklist")
		return false
	}
	r.parsed++
	return true
}

// parsePage walks a page's reference elements in document order
func (r *seedRun) parsePage(ctx context.Context, page *models.Page, workerLog *logrus.Entry) {
	pageLog := workerLog.WithField("page", page.Path)
	pageLog.WithField("worklist_remaining", r.wl.Len()).Debug("Parsing page...")

	base, err := url.Parse(page.URL)
	if err != nil {
		pageLog.Warnf("Unparseable page URL '%s': %v", page.URL, err)
		return
	}
	// An explicit <base href> overrides the page URL as the resolution base
	if href, ok := page.Doc.Find("base[href]").First().Attr("href"); ok {
		if resolved, baseErr := base.Parse(strings.TrimSpace(href)); baseErr == nil {
			base = resolved
		}
	}

	elements := 0
	page.Doc.Find("a, link, script").Each(func(_ int, sel *goquery.Selection) {
		elements++
		r.handleReference(ctx, page, base, sel, pageLog)
	})
	pageLog.WithFields(logrus.Fields{"elements": elements, "worklist_remaining": r.wl.Len()}).Debug("Page parsed")
}

// handleReference applies the skip rules, folds repeat occurrences, consults
// the ignore predicate and dispatches the probe for new references
func (r *seedRun) handleReference(ctx context.Context, page *models.Page, base *url.URL, sel *goquery.Selection, pageLog *logrus.Entry) {
	ref, err := r.engine.resolver.FromSelection(sel, base)
	if err != nil {
		pageLog.Debugf("Skipping unresolvable reference: %v", err)
		return
	}
	if ref == nil {
		return
	}

	refLog := pageLog.WithField("url", ref.AbsURL)

	// Skip rules: non-hyperlink schemes are never probed; self references
	// and the seed's own entry path are never recorded
	if !ref.Hyperlink {
		refLog.Trace("Skipping non-hyperlink scheme")
		return
	}
	if ref.AbsURL == page.URL {
		return
	}
	if ref.Internal && ref.AbsPath == r.seed.Path {
		return
	}

	// A reference is probed at most once per seed: repeat occurrences of an
	// identical absolute URL only extend the occurrence list
	if r.foldOccurrence(ref.AbsURL, page.Path) {
		refLog.Trace("Occurrence folded into existing reference")
		return
	}

	// Ignored references are excluded from seed state entirely. Both
	// predicates are re-evaluated per occurrence, never cached.
	if r.engine.ignore != nil || r.seed.Ignore != nil {
		c := r.snapshot(page.Path)
		if r.engine.ignore != nil && r.engine.ignore(c, ref) {
			refLog.Trace("Reference ignored by engine predicate")
			return
		}
		if r.seed.Ignore != nil && r.seed.Ignore(c, ref) {
			refLog.Trace("Reference ignored by seed predicate")
			return
		}
	}

	if !r.claim(ref, page.Path) {
		// A concurrent worker recorded the same URL between the fold check
		// and the claim; its occurrence was appended there.
		return
	}

	r.probe(ctx, ref, refLog)
}

// foldOccurrence appends an occurrence to an already-recorded reference.
// Returns false if the URL is not recorded yet.
func (r *seedRun) foldOccurrence(absURL, pagePath string) bool {
	r.linksMu.Lock()
	defer r.linksMu.Unlock()
	if existing, ok := r.res.Links[absURL]; ok {
		existing.Occurrences = append(existing.Occurrences, pagePath)
		return true
	}
	return false
}

// claim atomically records the reference before any probe is dispatched, so
// a given absolute URL is probed at most once per seed even under
// concurrent discovery
func (r *seedRun) claim(ref *models.Reference, pagePath string) bool {
	r.linksMu.Lock()
	defer r.linksMu.Unlock()
	if existing, ok := r.res.Links[ref.AbsURL]; ok {
		existing.Occurrences = append(existing.Occurrences, pagePath)
		return false
	}
	ref.Occurrences = append(ref.Occurrences, pagePath)
	r.res.Links[ref.AbsURL] = ref
	return true
}

// snapshot builds the immutable context value handed to ignore predicates
func (r *seedRun) snapshot(pagePath string) *Context {
	r.mu.Lock()
	parsed := r.parsed
	r.mu.Unlock()
	return &Context{
		Seed:        r.seed.Key(),
		SeedPath:    r.seed.Path,
		PagePath:    pagePath,
		PagesParsed: parsed,
		Session:     r.sess,
		Log:         r.log,
	}
}

// probe determines the reference's reachability and, for internal HTML
// pages, captures the body and extends the worklist
func (r *seedRun) probe(ctx context.Context, ref *models.Reference, refLog *logrus.Entry) {
	if err := r.engine.reqSem.Acquire(ctx, 1); err != nil {
		ref.Failure = err.Error()
		return
	}
	defer r.engine.reqSem.Release(1)

	if !ref.Internal {
		ref.Status = r.engine.prober.Probe(ctx, ref.AbsURL)
		refLog.WithField("status", ref.Status).Trace("External reference probed")
		return
	}

	resp, err := r.sess.Fetch(ctx, ref.AbsPath)
	if err != nil {
		// Transport failures are contained in the reference record; the
		// traversal continues.
		ref.Failure = err.Error()
		refLog.WithField("category", utils.CategorizeError(err)).Warnf("Internal fetch failed: %v", err)
		return
	}
	ref.Status = resp.StatusCode
	refLog.WithField("status", ref.Status).Trace("Internal reference probed")

	if resp.StatusCode != 200 || !resp.IsHTML() {
		return
	}

	file, ferr := models.NewFile(ref.AbsPath, resp.ContentType(), resp.Body)
	if ferr != nil {
		refLog.Errorf("Failed to compress captured body: %v", ferr)
		return
	}
	if perr := r.store.Put(file); perr != nil {
		refLog.Errorf("Failed to store captured body: %v", perr)
	}
	if resp.Doc != nil {
		r.enqueue(&models.Page{Path: ref.AbsPath, URL: ref.AbsURL, Doc: resp.Doc})
	}
}
