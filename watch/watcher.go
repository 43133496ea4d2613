// Package watch regenerates Verse source whenever a graph record in a
// watched directory changes.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/teranos/verseblueprint/blueprint"
	"github.com/teranos/verseblueprint/errors"
	"github.com/teranos/verseblueprint/graphstore"
	"github.com/teranos/verseblueprint/logger"
	"github.com/teranos/verseblueprint/versegen"
)

const (
	DefaultDebounce        = 300 * time.Millisecond
	DefaultMaxPerSecond    = 4.0
	DefaultBurst           = 4
	generatedFileExtension = ".verse"
)

// ResultFunc receives the outcome of every regeneration.
type ResultFunc func(graphPath, outputPath string, err error)

// Watcher watches one directory of graph records.
type Watcher struct {
	dir      string
	store    *graphstore.Store
	gen      *versegen.Generator
	logger   *zap.SugaredLogger
	debounce time.Duration
	limiter  *rate.Limiter
	onResult ResultFunc

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// Option configures a Watcher
type Option func(*Watcher)

// WithDebounce sets how long a path must be quiet before it is regenerated.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) { w.debounce = d }
}

// WithRateLimit caps regenerations across all paths.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(w *Watcher) {
		if perSecond <= 0 {
			w.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		w.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// OnResult registers a callback for regeneration outcomes.
func OnResult(fn ResultFunc) Option {
	return func(w *Watcher) { w.onResult = fn }
}

// New creates a watcher for dir.
func New(dir string, store *graphstore.Store, gen *versegen.Generator, log *zap.SugaredLogger, opts ...Option) *Watcher {
	w := &Watcher{
		dir:      dir,
		store:    store,
		gen:      gen,
		logger:   logger.OrNop(log).Named("watch"),
		debounce: DefaultDebounce,
		limiter:  rate.NewLimiter(rate.Limit(DefaultMaxPerSecond), DefaultBurst),
		timers:   make(map[string]*time.Timer),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// OutputPath is where the source generated from the graph at graphPath is
// written: Graph.FilePath when set (relative to the graph's directory),
// otherwise the graph path with a .verse extension.
func OutputPath(graphPath string, g *blueprint.Graph) string {
	if g.FilePath != "" {
		if filepath.IsAbs(g.FilePath) {
			return g.FilePath
		}
		return filepath.Join(filepath.Dir(graphPath), g.FilePath)
	}
	return strings.TrimSuffix(graphPath, filepath.Ext(graphPath)) + generatedFileExtension
}

// Regenerate loads one graph record and writes its Verse source. A record
// that does not decode leaves the existing output untouched.
func (w *Watcher) Regenerate(graphPath string) (string, error) {
	g, err := w.store.LoadStrict(graphPath)
	if err != nil {
		return "", err
	}

	out := OutputPath(graphPath, g)
	if err := w.gen.ExportToFile(g, out); err != nil {
		return out, err
	}
	return out, nil
}

// Run regenerates every graph already in the directory, then watches for
// changes until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create fsnotify watcher")
	}
	defer fsw.Close()

	if err := fsw.Add(w.dir); err != nil {
		return errors.Wrapf(err, "failed to watch %s", w.dir)
	}

	w.logger.Infow("Watching graph directory", logger.FieldFile, w.dir)

	existing, err := w.graphFiles()
	if err != nil {
		return err
	}
	for _, path := range existing {
		w.run(ctx, path)
	}

	defer w.stopTimers()

	for {
		select {
		case <-ctx.Done():
			w.logger.Infow("Watcher stopped", logger.FieldFile, w.dir)
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !graphstore.IsGraphFile(event.Name) {
				continue
			}
			w.logger.Debugw("Graph changed", logger.FieldFile, event.Name, "op", event.Op.String())
			w.schedule(ctx, event.Name)

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warnw("Watcher error", logger.FieldError, err)
		}
	}
}

func (w *Watcher) graphFiles() ([]string, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", w.dir)
	}

	var paths []string
	for _, entry := range entries {
		if entry.IsDir() || !graphstore.IsGraphFile(entry.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(w.dir, entry.Name()))
	}
	sort.Strings(paths)
	return paths, nil
}

// schedule restarts the per-path debounce timer.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if t, ok := w.timers[path]; ok {
		t.Stop()
	}
	var t *time.Timer
	t = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		if w.timers[path] == t {
			delete(w.timers, path)
		}
		w.mu.Unlock()
		w.run(ctx, path)
	})
	w.timers[path] = t
}

func (w *Watcher) run(ctx context.Context, path string) {
	if err := w.limiter.Wait(ctx); err != nil {
		return
	}

	start := time.Now()
	out, err := w.Regenerate(path)
	if err != nil {
		w.logger.Errorw("Regeneration failed", logger.FieldFile, path, logger.FieldError, err)
	} else {
		w.logger.Infow("Regenerated",
			logger.FieldFile, path,
			logger.FieldOutput, out,
			logger.FieldDurationMS, time.Since(start).Milliseconds())
	}

	if w.onResult != nil {
		w.onResult(path, out, err)
	}
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for path, t := range w.timers {
		t.Stop()
		delete(w.timers, path)
	}
}
