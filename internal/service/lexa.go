// Package service wires the loader, index, prompt composer, generator and
// cache into the Lexa question-answering pipeline.
package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"lexa/internal/cache"
	"lexa/internal/config"
	"lexa/internal/domain"
	"lexa/internal/index"
	"lexa/internal/loader"
	"lexa/internal/logging"
	"lexa/internal/prompt"
	"lexa/internal/summarizer"
)

// Fixed replies.
const (
	EmptyQueryMessage = "Please ask a legal question."
	GreetingMessage   = "Hello! I'm Lexa, your Nigerian legal assistant. Ask me about Contract Law or Land Law!"
	ApologyMessage    = "Sorry, I encountered an error. Please try again."
)

var greetingRe = regexp.MustCompile(`(?i)^(hi|hello|hey|good\s+(morning|afternoon|evening))\b`)

// IsGreeting reports whether the trimmed query opens with a greeting.
func IsGreeting(query string) bool {
	return greetingRe.MatchString(strings.TrimSpace(query))
}

// Option customizes construction.
type Option func(*options)

type options struct {
	embedder     domain.Embedder
	generator    domain.Generator
	log          *zap.Logger
	forceRebuild bool
}

// WithEmbedder replaces the embedder selected by configuration.
func WithEmbedder(e domain.Embedder) Option { return func(o *options) { o.embedder = e } }

// WithGenerator replaces the chat completion backend. No generation
// credential is required when set.
func WithGenerator(g domain.Generator) Option { return func(o *options) { o.generator = g } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

// WithForceRebuild ignores any persisted snapshot and rebuilds the index.
func WithForceRebuild(force bool) Option { return func(o *options) { o.forceRebuild = force } }

// Lexa answers legal questions from the indexed knowledge base. After New
// returns it is safe for concurrent use.
type Lexa struct {
	log       *zap.Logger
	index     *index.Index
	retriever *index.Retriever
	composer  *prompt.Composer
	generator domain.Generator
	cache     *cache.QueryCache
	topK      int
	summary   string
}

var _ domain.Assistant = (*Lexa)(nil)

// New builds a ready assistant. Every failure is a *domain.Error of kind
// domain.ErrInitialization that also matches the specific cause kind.
func New(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*Lexa, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.log)
	start := time.Now()

	l, err := build(ctx, cfg, o, log)
	if err != nil {
		kind := kindOf(err, domain.ErrInitialization)
		log.Error("initialization failed", zap.NamedError("kind", kind), zap.Error(err))
		return nil, domain.NewError(domain.ErrInitialization, "Lexa failed to initialize: "+kind.Error(), err)
	}
	log.Info("lexa ready",
		zap.Int("chunks", l.index.Len()),
		zap.String("embedder", l.index.Manifest().Embedder),
		zap.Duration("took", time.Since(start)))
	return l, nil
}

func build(ctx context.Context, cfg *config.AppConfig, o options, log *zap.Logger) (*Lexa, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: no configuration", domain.ErrConfiguration)
	}
	composer, err := prompt.New(cfg.Prompt.Template)
	if err != nil {
		return nil, err
	}
	qc, err := newCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	docs, idx, err := loadKnowledgeBase(ctx, cfg, o, o.generator == nil, log)
	if err != nil {
		return nil, err
	}
	gen := o.generator
	if gen == nil {
		if gen, err = newGenerator(cfg.Generator, log); err != nil {
			return nil, err
		}
	}
	digest, err := summarizer.Digest(summarizer.NewFrequencySummarizer(), docs, cfg.Summarizer.MaxSentences)
	if err != nil {
		// the digest is informational only
		log.Warn("knowledge base digest failed", zap.Error(err))
		digest = fmt.Sprintf("%d documents loaded.", len(docs))
	}

	return &Lexa{
		log:       log,
		index:     idx,
		retriever: index.NewRetriever(idx, log.Named("retriever")),
		composer:  composer,
		generator: gen,
		cache:     qc,
		topK:      cfg.Retriever.TopK,
		summary:   digest,
	}, nil
}

// loadKnowledgeBase runs the checks that must pass before any index work,
// then loads documents and loads or builds the index.
func loadKnowledgeBase(ctx context.Context, cfg *config.AppConfig, o options, needKey bool, log *zap.Logger) ([]domain.LegalDocument, *index.Index, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("%w: no configuration", domain.ErrConfiguration)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}
	if err := checkDatasets(cfg.Datasets, log); err != nil {
		return nil, nil, err
	}
	if err := index.EnsureWritable(cfg.Index.Dir); err != nil {
		return nil, nil, fmt.Errorf("%w: index directory %s: %w", domain.ErrConfiguration, cfg.Index.Dir, err)
	}
	if needKey {
		// checked before any index work
		if _, err := generationKey(cfg.Generator); err != nil {
			return nil, nil, err
		}
	}

	emb := o.embedder
	if emb == nil {
		var err error
		if emb, err = newEmbedder(cfg.Embedder, log); err != nil {
			return nil, nil, err
		}
	}
	ch, err := newChunker(cfg.Chunker)
	if err != nil {
		return nil, nil, err
	}
	builder, err := newBuilder(cfg, emb, ch, log)
	if err != nil {
		return nil, nil, err
	}

	docs, err := loader.New(log.Named("loader")).Load(ctx, cfg.Datasets.Paths)
	if err != nil {
		return nil, nil, err
	}
	idx, err := builder.LoadOrBuild(ctx, docs, o.forceRebuild)
	if err != nil {
		return nil, nil, err
	}
	return docs, idx, nil
}

// BuildKnowledgeBase loads the datasets and loads or rebuilds the persisted
// index without setting up generation.
func BuildKnowledgeBase(ctx context.Context, cfg *config.AppConfig, opts ...Option) (*index.Index, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	log := logging.OrNop(o.log)
	_, idx, err := loadKnowledgeBase(ctx, cfg, o, false, log)
	if err != nil {
		kind := kindOf(err, domain.ErrIndexBuildFailed)
		return nil, domain.NewError(domain.ErrInitialization, "index build failed: "+kind.Error(), err)
	}
	return idx, nil
}

// ProcessQuery answers query. Empty input and greetings get fixed replies.
// On failure the apology text is returned together with a *domain.Error
// whose message is that same text.
func (l *Lexa) ProcessQuery(ctx context.Context, query string) (string, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return EmptyQueryMessage, nil
	}
	if greetingRe.MatchString(q) {
		return GreetingMessage, nil
	}
	if l == nil || l.retriever == nil {
		return ApologyMessage, domain.NewError(domain.ErrNotReady, ApologyMessage, nil)
	}

	key := cache.Key(q)
	if answer, ok := l.cache.Get(key); ok {
		l.log.Debug("cache hit", zap.String("query", preview(q)))
		return answer, nil
	}

	start := time.Now()
	answer, err := l.answer(ctx, q)
	if err != nil {
		kind := kindOf(err, domain.ErrGenerationFailed)
		l.log.Error("query failed",
			zap.String("query", preview(q)),
			zap.NamedError("kind", kind),
			zap.Error(err))
		return ApologyMessage, domain.NewError(kind, ApologyMessage, err)
	}
	l.cache.Put(key, answer)
	l.log.Info("query answered",
		zap.String("query", preview(q)),
		zap.Int("chars", len(answer)),
		zap.Duration("took", time.Since(start)))
	return answer, nil
}

func (l *Lexa) answer(ctx context.Context, q string) (answer string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic while answering: %v", r)
		}
	}()
	chunks, err := l.retriever.Retrieve(ctx, q, l.topK)
	if err != nil {
		return "", err
	}
	p := l.composer.Compose(chunks, q)
	answer, err = l.generator.Generate(ctx, p)
	if err != nil {
		if !errors.Is(err, domain.ErrGenerationFailed) {
			err = fmt.Errorf("%w: %w", domain.ErrGenerationFailed, err)
		}
		return "", err
	}
	return answer, nil
}

// Reset forgets memoized answers. It is a no-op on an assistant that is
// not ready.
func (l *Lexa) Reset() {
	if l == nil || l.cache == nil {
		return
	}
	l.cache.Reset()
	l.log.Info("lexa reset")
}

// Summary describes the loaded knowledge base.
func (l *Lexa) Summary() string {
	if l == nil {
		return ""
	}
	return l.summary
}

// Index exposes the search index.
func (l *Lexa) Index() *index.Index { return l.index }

// Provider lazily constructs one shared Lexa. Concurrent callers wait for
// the same construction and see the same result, including a failure.
type Provider struct {
	cfg  *config.AppConfig
	opts []Option

	once sync.Once
	lexa *Lexa
	err  error
}

func NewProvider(cfg *config.AppConfig, opts ...Option) *Provider {
	return &Provider{cfg: cfg, opts: opts}
}

// Get returns the shared assistant, constructing it on first use.
func (p *Provider) Get(ctx context.Context) (*Lexa, error) {
	p.once.Do(func() {
		p.lexa, p.err = New(ctx, p.cfg, p.opts...)
	})
	return p.lexa, p.err
}

var kinds = []error{
	domain.ErrConfiguration,
	domain.ErrKnowledgeBaseEmpty,
	domain.ErrIndexIntegrity,
	domain.ErrIndexStale,
	domain.ErrIndexBuildFailed,
	domain.ErrRetrieval,
	domain.ErrGenerationFailed,
	domain.ErrNotReady,
}

// kindOf returns the first known error kind err matches, or fallback.
func kindOf(err error, fallback error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return fallback
}

func preview(q string) string {
	const n = 50
	r := []rune(q)
	if len(r) <= n {
		return q
	}
	return string(r[:n]) + "..."
}
