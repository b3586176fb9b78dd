package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"lexa/internal/domain"
	"lexa/internal/logging"
	"lexa/internal/vectorstore"
	"lexa/internal/vectorstore/memory"
	"lexa/internal/vectorstore/sqlite"
)

// Options configures a Builder.
type Options struct {
	Embedder domain.Embedder
	Chunker  domain.Chunker
	Metric   vectorstore.Metric
	// Dir is the snapshot directory.
	Dir string
	// Checksum, when set, pins the expected SHA-256 of the data file and
	// takes precedence over the manifest.
	Checksum    string
	Parallelism int
	Logger      *zap.Logger
}

// Builder turns documents into an Index and manages its on-disk snapshot.
type Builder struct {
	embedder    domain.Embedder
	chunker     domain.Chunker
	metric      vectorstore.Metric
	dir         string
	checksum    string
	parallelism int
	log         *zap.Logger

	group singleflight.Group
}

func NewBuilder(opts Options) *Builder {
	if opts.Metric == "" {
		opts.Metric = vectorstore.Cosine
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 4
	}
	return &Builder{
		embedder:    opts.Embedder,
		chunker:     opts.Chunker,
		metric:      opts.Metric,
		dir:         opts.Dir,
		checksum:    strings.ToLower(strings.TrimSpace(opts.Checksum)),
		parallelism: opts.Parallelism,
		log:         logging.OrNop(opts.Logger),
	}
}

func (b *Builder) Dir() string { return b.dir }

// Build chunks and embeds docs into a fresh in-memory index.
func (b *Builder) Build(ctx context.Context, docs []domain.LegalDocument) (*Index, error) {
	start := time.Now()
	var chunks []domain.Chunk
	for _, d := range docs {
		cs, err := b.chunker.Chunk(d)
		if err != nil {
			return nil, fmt.Errorf("%w: chunk document %s: %w", domain.ErrIndexBuildFailed, d.ID, err)
		}
		chunks = append(chunks, cs...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced from %d documents", domain.ErrIndexBuildFailed, len(docs))
	}

	corpus := make([]string, len(chunks))
	for i, c := range chunks {
		corpus[i] = c.Content()
	}
	if err := b.embedder.Prepare(corpus); err != nil {
		return nil, fmt.Errorf("%w: prepare embedder: %w", domain.ErrIndexBuildFailed, err)
	}

	vectors := make([][]float32, len(chunks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)
	for i := range chunks {
		g.Go(func() error {
			v, err := b.embedder.Embed(gctx, corpus[i])
			if err != nil {
				return fmt.Errorf("embed chunk %s: %w", chunks[i].ID, err)
			}
			vectors[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}

	store := memory.NewStorage(b.metric)
	if err := store.Init(len(vectors[0])); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}
	if err := store.Upsert(chunks, vectors); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexBuildFailed, err)
	}

	b.log.Info("index built",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
		zap.Int("dimension", len(vectors[0])),
		zap.String("embedder", b.embedder.Name()),
		zap.Duration("took", time.Since(start)))

	return New(store, b.embedder, Manifest{
		Version:     formatVersion,
		Embedder:    b.embedder.Name(),
		Dimension:   len(vectors[0]),
		Metric:      string(b.metric),
		Chunker:     b.chunker.Name(),
		Documents:   len(docs),
		Chunks:      len(chunks),
		Fingerprint: Fingerprint(docs),
		CreatedAt:   time.Now().UTC(),
	}), nil
}

// Persist writes idx as a snapshot into the builder's directory. The
// snapshot is written to a sibling temp directory and swapped in, so an
// interrupted write never leaves a half-written snapshot behind.
func (b *Builder) Persist(ctx context.Context, idx *Index) error {
	if err := b.persist(ctx, idx); err != nil {
		return fmt.Errorf("%w: persist snapshot to %s: %w", domain.ErrIndexBuildFailed, b.dir, err)
	}
	return nil
}

func (b *Builder) persist(ctx context.Context, idx *Index) error {
	parent := filepath.Dir(filepath.Clean(b.dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	tmp, err := os.MkdirTemp(parent, "."+filepath.Base(b.dir)+"-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmp)

	dataPath := filepath.Join(tmp, DataFile)
	if err := writeData(ctx, dataPath, idx); err != nil {
		return err
	}
	sum, err := FileChecksum(dataPath)
	if err != nil {
		return err
	}
	m := idx.manifest
	m.Checksum = sum
	if err := writeManifest(tmp, m); err != nil {
		return err
	}
	if err := swapDir(tmp, b.dir); err != nil {
		return err
	}
	idx.manifest = m

	if b.checksum != "" && b.checksum != sum {
		b.log.Warn("configured index checksum does not match the new snapshot; update index.checksum",
			zap.String("configured", b.checksum), zap.String("actual", sum))
	}
	b.log.Info("index snapshot written", zap.String("dir", b.dir), zap.String("checksum", sum))
	return nil
}

func writeData(ctx context.Context, path string, idx *Index) error {
	st, err := sqlite.Create(ctx, path)
	if err != nil {
		return err
	}
	chunks := make([]domain.Chunk, 0, idx.Len())
	vectors := make([][]float32, 0, idx.Len())
	idx.store.Entries(func(c domain.Chunk, v []float32) bool {
		chunks = append(chunks, c)
		vectors = append(vectors, v)
		return true
	})
	if err := st.PutChunks(ctx, chunks, vectors); err != nil {
		st.Close()
		return err
	}
	var state []byte
	if se, ok := idx.embedder.(domain.StatefulEmbedder); ok {
		if state, err = se.Snapshot(); err != nil {
			st.Close()
			return fmt.Errorf("snapshot embedder state: %w", err)
		}
	}
	if err := st.PutEmbedderState(ctx, idx.embedder.Name(), state); err != nil {
		st.Close()
		return err
	}
	return st.Close()
}

// swapDir replaces dst with src, keeping the previous dst until the
// rename succeeds.
func swapDir(src, dst string) error {
	old := ""
	if _, err := os.Stat(dst); err == nil {
		old = dst + ".old"
		_ = os.RemoveAll(old)
		if err := os.Rename(dst, old); err != nil {
			return err
		}
	}
	if err := os.Rename(src, dst); err != nil {
		if old != "" {
			_ = os.Rename(old, dst)
		}
		return err
	}
	if old != "" {
		_ = os.RemoveAll(old)
	}
	return nil
}

// Load reads and verifies the snapshot in the builder's directory.
// fingerprint identifies the documents the caller expects the snapshot to
// be built from. It fails with ErrNoSnapshot, domain.ErrIndexIntegrity or
// domain.ErrIndexStale.
func (b *Builder) Load(ctx context.Context, fingerprint string) (*Index, error) {
	m, err := readManifest(b.dir)
	if err != nil {
		return nil, err
	}
	dataPath := filepath.Join(b.dir, DataFile)
	sum, err := FileChecksum(dataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: read data file: %w", domain.ErrIndexIntegrity, err)
	}
	want := m.Checksum
	if b.checksum != "" {
		want = b.checksum
	}
	if sum != want {
		return nil, fmt.Errorf("%w: checksum %s, want %s", domain.ErrIndexIntegrity, sum, want)
	}

	switch {
	case m.Version != formatVersion:
		return nil, fmt.Errorf("%w: format version %d, want %d", domain.ErrIndexStale, m.Version, formatVersion)
	case m.Embedder != b.embedder.Name():
		return nil, fmt.Errorf("%w: built with embedder %q, configured %q", domain.ErrIndexStale, m.Embedder, b.embedder.Name())
	case m.Metric != string(b.metric):
		return nil, fmt.Errorf("%w: built with metric %q, configured %q", domain.ErrIndexStale, m.Metric, b.metric)
	case m.Chunker != b.chunker.Name():
		return nil, fmt.Errorf("%w: built with chunker %q, configured %q", domain.ErrIndexStale, m.Chunker, b.chunker.Name())
	case m.Fingerprint != fingerprint:
		return nil, fmt.Errorf("%w: documents changed since the snapshot was built", domain.ErrIndexStale)
	}

	st, err := sqlite.Open(ctx, dataPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexIntegrity, err)
	}
	defer st.Close()

	store := memory.NewStorage(b.metric)
	n, err := st.LoadInto(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexIntegrity, err)
	}
	if n != m.Chunks || store.Dimension() != m.Dimension {
		return nil, fmt.Errorf("%w: snapshot holds %d chunks of dimension %d, manifest says %d of %d",
			domain.ErrIndexIntegrity, n, store.Dimension(), m.Chunks, m.Dimension)
	}

	name, state, err := st.EmbedderState(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrIndexIntegrity, err)
	}
	if name != m.Embedder {
		return nil, fmt.Errorf("%w: embedder state for %q, manifest says %q", domain.ErrIndexIntegrity, name, m.Embedder)
	}
	if se, ok := b.embedder.(domain.StatefulEmbedder); ok {
		if err := se.Restore(state); err != nil {
			return nil, fmt.Errorf("%w: restore embedder state: %w", domain.ErrIndexIntegrity, err)
		}
	}
	if d := b.embedder.Dimension(); d != 0 && d != m.Dimension {
		return nil, fmt.Errorf("%w: embedder dimension %d, snapshot %d", domain.ErrIndexStale, d, m.Dimension)
	}

	b.log.Info("index snapshot loaded",
		zap.String("dir", b.dir), zap.Int("chunks", n), zap.String("checksum", sum))
	return New(store, b.embedder, m), nil
}

// LoadOrBuild returns the persisted index when it is valid for docs and
// otherwise rebuilds and persists it. force skips the load. Concurrent
// calls share one load or build.
func (b *Builder) LoadOrBuild(ctx context.Context, docs []domain.LegalDocument, force bool) (*Index, error) {
	v, err, shared := b.group.Do(b.dir, func() (any, error) {
		if !force {
			idx, err := b.Load(ctx, Fingerprint(docs))
			if err == nil {
				return idx, nil
			}
			if errors.Is(err, ErrNoSnapshot) {
				b.log.Info("no index snapshot, building", zap.String("dir", b.dir))
			} else {
				b.log.Warn("index snapshot unusable, rebuilding", zap.String("dir", b.dir), zap.Error(err))
			}
		}
		idx, err := b.Build(ctx, docs)
		if err != nil {
			return nil, err
		}
		if err := b.Persist(ctx, idx); err != nil {
			return nil, err
		}
		return idx, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		b.log.Debug("index construction shared with a concurrent caller")
	}
	return v.(*Index), nil
}

// EnsureWritable checks that dir can be created and written.
func EnsureWritable(dir string) error {
	if dir == "" {
		return errors.New("empty index directory")
	}
	if info, err := os.Stat(dir); err == nil && !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}
	parent := filepath.Dir(filepath.Clean(dir))
	if err := os.MkdirAll(parent, 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(parent, ".lexa-probe-*")
	if err != nil {
		return err
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}
