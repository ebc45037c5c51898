// Package markdown mirrors records into human-readable Markdown files
// with YAML frontmatter, one file per record. The canonical store stays
// authoritative: queries delegate to its full-text index, and the mirror
// exists so people can read and grep their memory directly.
//
// The mirror directory is watched with fsnotify. Edits made outside the
// process are logged as drift; they are not synced back.
package markdown

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/engramco/engram/pkg/engine"
	"github.com/engramco/engram/pkg/logger"
	"github.com/engramco/engram/pkg/store"
)

const instructions = "Memory mirrored to Markdown files with YAML frontmatter. " +
	"Search is full-text over the canonical index; the files themselves are " +
	"a read-only mirror for humans."

// selfWriteWindow is how long after our own write we ignore watcher
// events for a path.
const selfWriteWindow = 2 * time.Second

// frontmatter is the YAML header of each mirror file.
type frontmatter struct {
	ID          string    `yaml:"id"`
	ContentType string    `yaml:"content_type"`
	Source      string    `yaml:"source,omitempty"`
	CreatedAt   time.Time `yaml:"created_at"`
}

// Engine mirrors records to mirrorDir and queries via the canonical
// store.
type Engine struct {
	store     *store.Canonical
	mirrorDir string
	logger    *slog.Logger

	watcher *fsnotify.Watcher
	done    chan struct{}

	mu         sync.Mutex
	selfWrites map[string]time.Time
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates a markdown engine mirroring into mirrorDir and starts the
// drift watcher.
func New(s *store.Canonical, mirrorDir string, opts ...Option) (*Engine, error) {
	if err := os.MkdirAll(mirrorDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create mirror directory: %w", err)
	}

	e := &Engine{
		store:      s,
		mirrorDir:  mirrorDir,
		logger:     logger.Nop(),
		done:       make(chan struct{}),
		selfWrites: map[string]time.Time{},
	}

	for _, opt := range opts {
		opt(e)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create mirror watcher: %w", err)
	}
	if err := watcher.Add(mirrorDir); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch mirror directory: %w", err)
	}

	e.watcher = watcher
	go e.watch()

	return e, nil
}

// Name implements engine.Engine.
func (e *Engine) Name() string { return "markdown" }

// Capabilities implements engine.Engine.
func (e *Engine) Capabilities() engine.Capabilities {
	return engine.Capabilities{
		engine.OperationInfo,
		engine.OperationQuery,
		engine.OperationInsert,
		engine.OperationDelete,
	}
}

// Info reports the mirror size and location.
func (e *Engine) Info(ctx context.Context) (*engine.InfoResponse, error) {
	n, err := e.store.CountRecords(ctx)
	if err != nil {
		return nil, err
	}

	mirrored, err := filepath.Glob(filepath.Join(e.mirrorDir, "*.md"))
	if err != nil {
		return nil, fmt.Errorf("failed to scan mirror directory: %w", err)
	}

	return &engine.InfoResponse{
		Engine:  e.Name(),
		Records: n,
		Metadata: map[string]string{
			"mirror_dir":     e.mirrorDir,
			"mirrored_files": fmt.Sprintf("%d", len(mirrored)),
		},
		Instructions: instructions,
	}, nil
}

// Query delegates to the canonical full-text index.
func (e *Engine) Query(ctx context.Context, query string, limit int) (*engine.QueryResponse, error) {
	records, err := e.store.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	results := make([]engine.QueryResult, 0, len(records))
	for _, r := range records {
		results = append(results, engine.QueryResult{
			ID:        r.ID,
			Content:   r.Content,
			Source:    r.Source,
			CreatedAt: r.CreatedAt,
		})
	}

	return &engine.QueryResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	}, nil
}

// Insert writes the record's mirror file.
func (e *Engine) Insert(_ context.Context, r *store.Record) error {
	if strings.ContainsRune(r.ID, os.PathSeparator) {
		return &store.InvalidArgumentError{Reason: "record id must not contain path separators"}
	}

	head, err := yaml.Marshal(frontmatter{
		ID:          r.ID,
		ContentType: string(r.ContentType),
		Source:      r.Source,
		CreatedAt:   r.CreatedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal frontmatter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(r.Content)
	buf.WriteString("\n")

	path := e.path(r.ID)
	e.markSelfWrite(path)

	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write mirror file: %w", err)
	}

	return nil
}

// Delete removes the record's mirror file if present.
func (e *Engine) Delete(_ context.Context, id string) error {
	path := e.path(id)
	e.markSelfWrite(path)

	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove mirror file: %w", err)
	}

	return nil
}

// Close stops the drift watcher.
func (e *Engine) Close() error {
	close(e.done)
	return e.watcher.Close()
}

func (e *Engine) path(id string) string {
	return filepath.Join(e.mirrorDir, id+".md")
}

func (e *Engine) markSelfWrite(path string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.selfWrites[path] = time.Now()
}

func (e *Engine) isSelfWrite(path string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	at, ok := e.selfWrites[path]
	if !ok {
		return false
	}
	if time.Since(at) > selfWriteWindow {
		delete(e.selfWrites, path)
		return false
	}

	return true
}

// watch logs external modifications of the mirror so drift from the
// canonical store is visible.
func (e *Engine) watch() {
	for {
		select {
		case <-e.done:
			return
		case event, ok := <-e.watcher.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".md" || e.isSelfWrite(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0 {
				e.logger.Warn("mirror file changed outside the process; canonical store is unaffected",
					"path", event.Name,
					"op", event.Op.String(),
				)
			}
		case err, ok := <-e.watcher.Errors:
			if !ok {
				return
			}
			e.logger.Warn("mirror watcher error", "error", err)
		}
	}
}

var (
	_ engine.Engine   = (*Engine)(nil)
	_ engine.Inserter = (*Engine)(nil)
	_ engine.Deleter  = (*Engine)(nil)
)
