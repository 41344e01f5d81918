package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/loam"
	"github.com/aretw0/loam/pkg/core"
	"github.com/aretw0/scenaria/internal/logging"
	"github.com/aretw0/scenaria/pkg/domain"
	"github.com/aretw0/scenaria/pkg/interchange"
	"github.com/aretw0/scenaria/pkg/schema"
	"github.com/mitchellh/mapstructure"
)

// archiveDir holds one copy of every version written through Put, as
// archiveDir/<id>/v<version>. It is hidden from List and Watch.
const archiveDir = "_versions"

// Library adapts a Loam repository to ports.ScenarioLibrary and ports.VersionedLibrary.
// Every document in the repository is one interchange document. JSON and YAML files hold
// it whole; Markdown files hold it in the frontmatter and may use the body as the
// scenario system prompt.
type Library struct {
	repo   core.Repository
	typed  *loam.TypedRepository[interchange.Document]
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]*domain.Scenario
}

// Option configures the Library.
type Option func(*Library)

// WithLogger configures a logger for the Library.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Library) {
		l.logger = logger
	}
}

// New creates a Library over an initialized repository.
func New(repo core.Repository, opts ...Option) *Library {
	l := &Library{
		repo:   repo,
		typed:  loam.NewTypedRepository[interchange.Document](repo),
		logger: logging.NewNop(),
		cache:  make(map[string]*domain.Scenario),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open initializes a read-only Loam repository at path.
// Strict mode keeps numbers as json.Number so ids never pass through float64.
func Open(path string, opts ...Option) (*Library, error) {
	return open(path, opts, loam.WithReadOnly(true))
}

// OpenWritable initializes a Loam repository that also accepts Put.
// Versioning is left off, published scenarios carry their own version counter.
// Writes go to path itself, never to a temporary sandbox.
func OpenWritable(path string, opts ...Option) (*Library, error) {
	return open(path, opts, loam.WithVersioning(false), loam.WithForceTemp(false))
}

func open(path string, opts []Option, modes ...loam.Option) (*Library, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}
	repo, err := loam.Init(absPath, append([]loam.Option{loam.WithStrict(true)}, modes...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize loam: %w", err)
	}
	return New(repo, opts...), nil
}

// Get loads, schema-checks and imports a scenario. Parsed scenarios are cached until
// Watch reports a change.
func (l *Library) Get(ctx context.Context, id string) (*domain.Scenario, error) {
	id = trimExtension(id)

	l.mu.RLock()
	cached, ok := l.cache[id]
	l.mu.RUnlock()
	if ok {
		return cached.Clone(), nil
	}

	doc, err := l.repo.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%v)", domain.ErrScenarioNotFound, id, err)
	}

	sc, err := decode(doc.Metadata, doc.Content)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", id, err)
	}

	l.mu.Lock()
	l.cache[id] = sc
	l.mu.Unlock()

	l.logger.Debug("scenario loaded", "scenario", id, "phases", len(sc.Phases))
	return sc.Clone(), nil
}

// List returns the ids of every document in the repository, extensions stripped.
func (l *Library) List(ctx context.Context) ([]string, error) {
	docs, err := l.typed.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	ids := make([]string, 0, len(docs))
	for _, doc := range docs {
		id := trimExtension(doc.ID)
		if archived(id) {
			continue
		}
		if existing, ok := seen[id]; ok {
			return nil, fmt.Errorf("collision detected: ID '%s' is defined in both '%s' and '%s'", id, existing, doc.ID)
		}
		seen[id] = doc.ID
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Put exports sc and saves it under id, plus an archived copy for its version. The
// repository must not be read-only.
func (l *Library) Put(ctx context.Context, id string, sc *domain.Scenario) error {
	id = trimExtension(id)
	if id == "" || archived(id) {
		return &domain.ValidationError{Field: "id", Reason: fmt.Sprintf("%q is not a scenario id", id)}
	}
	doc, err := interchange.Export(sc)
	if err != nil {
		return err
	}

	for _, target := range []string{versionID(id, sc.Version), id} {
		if err := l.typed.Save(ctx, &loam.DocumentModel[interchange.Document]{
			ID:   target,
			Data: *doc,
		}); err != nil {
			return fmt.Errorf("loam save failed for %s: %w", target, err)
		}
		l.invalidate(target)
	}

	l.logger.Info("scenario saved", "scenario", id, "version", sc.Version)
	return nil
}

// GetVersion returns one version of a scenario: the current document when it carries
// that version, otherwise the copy archived by Put.
func (l *Library) GetVersion(ctx context.Context, id string, version int) (*domain.Scenario, error) {
	id = trimExtension(id)
	if latest, err := l.Get(ctx, id); err == nil && latest.Version == version {
		return latest, nil
	}
	return l.Get(ctx, versionID(id, version))
}

// Watch reports ids of changed documents. Cached copies are dropped before the id is sent.
func (l *Library) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.typed.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)
	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				id := trimExtension(evt.ID)
				if archived(id) {
					continue
				}
				l.invalidate(id)
				select {
				case ch <- id:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

func (l *Library) invalidate(id string) {
	l.mu.Lock()
	delete(l.cache, id)
	l.mu.Unlock()
}

// decode validates raw metadata against the document schema and imports it.
func decode(meta map[string]any, body string) (*domain.Scenario, error) {
	if err := schema.ValidateValue(meta); err != nil {
		return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
	}

	var doc interchange.Document
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &doc,
		TagName:          "mapstructure",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build decoder: %w", err)
	}
	if err := dec.Decode(meta); err != nil {
		return nil, &domain.ValidationError{Field: "document", Reason: err.Error()}
	}

	if doc.Scenario.SystemPrompt == "" {
		doc.Scenario.SystemPrompt = strings.TrimSpace(body)
	}
	return interchange.Import(&doc)
}

func versionID(id string, version int) string {
	return fmt.Sprintf("%s/%s/v%d", archiveDir, id, version)
}

func archived(id string) bool {
	return strings.HasPrefix(id, archiveDir+"/")
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
