package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	qdrantpb "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"

	"securecode/internal/models"
	"securecode/internal/parser"
	"securecode/internal/qdrant"
	"securecode/internal/utils"
)

const (
	defaultCollectionName = "securecode_default"
	collectionPrefix      = "securecode_"
	NumWorkers            = 4
)

var ErrNoCollection = errors.New("collection name is not set on indexer")

// Embedder turns text into vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorStore is the subset of the Qdrant client the indexer needs.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, vectorSize uint64) error
	DeleteCollection(ctx context.Context, name string) error
	Upsert(ctx context.Context, collection string, points []*qdrantpb.PointStruct) error
	Search(ctx context.Context, collection string, vector []float32, limit uint64) ([]*qdrantpb.ScoredPoint, error)
	DeleteByFilter(ctx context.Context, collection string, filter *qdrantpb.Filter) error
}

// CollectionName returns the Qdrant collection name for a given project ID.
// If projectID is empty, the shared default collection is used.
func CollectionName(projectID string) string {
	projectID = strings.TrimSpace(projectID)
	if projectID == "" {
		return defaultCollectionName
	}
	return collectionPrefix + projectID
}

// Result summarizes one IndexProject run.
type Result struct {
	Files     int
	Changed   int
	Deleted   int
	Functions int
	Failed    int
}

type Indexer struct {
	store      VectorStore
	embeddings Embedder
	parsers    *parser.ParserFactory
	log        zerolog.Logger
	progress   io.Writer

	projectID  string
	collection string

	ensureMu sync.Mutex
	ensured  bool
}

type Option func(*Indexer)

func WithLogger(log zerolog.Logger) Option {
	return func(idx *Indexer) { idx.log = log }
}

// WithProgress draws a progress bar on w while files are indexed.
func WithProgress(w io.Writer) Option {
	return func(idx *Indexer) { idx.progress = w }
}

func NewIndexer(store VectorStore, emb Embedder, opts ...Option) *Indexer {
	idx := &Indexer{
		store:      store,
		embeddings: emb,
		parsers:    parser.NewParserFactory(),
		log:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Open binds the indexer to the project rooted at rootPath and returns the
// normalized root.
func (idx *Indexer) Open(rootPath string) (string, error) {
	normalizedRoot, err := utils.NormalizeProjectRoot(rootPath)
	if err != nil {
		return "", fmt.Errorf("failed to normalize project root: %w", err)
	}
	projectID, err := utils.ComputeProjectID(normalizedRoot)
	if err != nil {
		return "", fmt.Errorf("failed to compute project id: %w", err)
	}
	idx.projectID = projectID
	idx.collection = CollectionName(projectID)
	idx.ensured = false
	return normalizedRoot, nil
}

func (idx *Indexer) ProjectID() string  { return idx.projectID }
func (idx *Indexer) Collection() string { return idx.collection }

// IndexProject indexes every C function under rootPath, re-embedding only
// files whose content changed since the last run.
func (idx *Indexer) IndexProject(ctx context.Context, rootPath string) (Result, error) {
	normalizedRoot, err := idx.Open(rootPath)
	if err != nil {
		return Result{}, err
	}
	idx.log.Info().Str("project", shortID(idx.projectID)).Str("collection", idx.collection).Msg("indexing project")

	files, err := utils.GetAllSourceFiles(normalizedRoot, parser.SupportedExtensions())
	if err != nil {
		return Result{}, err
	}
	res := Result{Files: len(files)}
	if len(files) == 0 {
		idx.log.Warn().Msg("no source files found to index")
		return res, nil
	}

	prevHashes, err := loadFileHashes(idx.projectID)
	if err != nil {
		return res, fmt.Errorf("failed to load file hashes: %w", err)
	}
	prevHashes = canonicalizeHashKeys(prevHashes, normalizedRoot)

	currentHashes := make(map[string]string, len(files))
	var changedFiles []string
	for _, f := range files {
		hash, herr := hashFile(f)
		if herr != nil {
			idx.log.Warn().Err(herr).Str("file", f).Msg("failed to hash file")
			continue
		}
		key := normalizeFilePath(f)
		currentHashes[key] = hash
		if prev, ok := prevHashes[key]; !ok || prev != hash {
			changedFiles = append(changedFiles, f)
		}
	}

	var deletedFiles []string
	for path := range prevHashes {
		if _, ok := currentHashes[path]; !ok {
			deletedFiles = append(deletedFiles, path)
		}
	}
	res.Changed = len(changedFiles)
	res.Deleted = len(deletedFiles)
	idx.log.Info().
		Int("changed", len(changedFiles)).
		Int("deleted", len(deletedFiles)).
		Int("total", len(files)).
		Msg("incremental index")

	if len(changedFiles) == 0 && len(deletedFiles) == 0 {
		return res, nil
	}

	for _, normalizedPath := range deletedFiles {
		if err := idx.deleteFilePoints(ctx, normalizedPath); err != nil {
			idx.log.Error().Err(err).Str("file", normalizedPath).Msg("failed to delete vectors for removed file")
		}
	}

	if len(changedFiles) > 0 {
		var bar *progressbar.ProgressBar
		if idx.progress != nil {
			bar = progressbar.NewOptions(len(changedFiles),
				progressbar.OptionSetWriter(idx.progress),
				progressbar.OptionSetDescription("Indexing"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionThrottle(65*time.Millisecond),
			)
		}

		var (
			wg sync.WaitGroup
			mu sync.Mutex
		)
		fileCh := make(chan string, len(changedFiles))
		for i := 0; i < NumWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for path := range fileCh {
					n, err := idx.processFile(ctx, path)
					mu.Lock()
					if err != nil {
						res.Failed++
						// Forget the hash so the file is retried next run.
						delete(currentHashes, normalizeFilePath(path))
						idx.log.Error().Err(err).Str("file", path).Msg("failed to index file")
					}
					res.Functions += n
					if bar != nil {
						_ = bar.Add(1)
					}
					mu.Unlock()
				}
			}()
		}
		for _, f := range changedFiles {
			fileCh <- f
		}
		close(fileCh)
		wg.Wait()
		if bar != nil {
			_ = bar.Finish()
		}
	}

	if err := ctx.Err(); err != nil {
		return res, err
	}
	if err := saveFileHashes(idx.projectID, currentHashes); err != nil {
		return res, fmt.Errorf("failed to save file hashes: %w", err)
	}
	return res, nil
}

func (idx *Indexer) processFile(ctx context.Context, path string) (int, error) {
	if idx.collection == "" {
		return 0, ErrNoCollection
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	normalizedPath := normalizeFilePath(path)

	// Clear stale points first so removed functions do not linger.
	if err := idx.deleteFilePoints(ctx, normalizedPath); err != nil {
		idx.log.Debug().Err(err).Str("file", path).Msg("could not clear existing vectors")
	}

	p, err := idx.parsers.GetParserByFilePath(path)
	if err != nil {
		return 0, nil
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	funcs, err := p.ExtractFunctions(path, code)
	if err != nil {
		idx.log.Debug().Err(err).Str("file", path).Msg("extraction was partial")
	}
	if len(funcs) == 0 {
		return 0, nil
	}

	texts := make([]string, 0, len(funcs))
	for _, fn := range funcs {
		texts = append(texts, embeddingText(normalizedPath, p.Language(), fn))
	}

	vectors, err := idx.embeddings.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed %s: %w", path, err)
	}
	if len(vectors) != len(funcs) || len(vectors[0]) == 0 {
		return 0, fmt.Errorf("got %d embedding vectors for %d functions in %s", len(vectors), len(funcs), path)
	}

	if err := idx.ensureCollection(ctx, uint64(len(vectors[0]))); err != nil {
		return 0, err
	}

	points := make([]*qdrantpb.PointStruct, 0, len(funcs))
	for i, fn := range funcs {
		hash := utils.HashContent(fn.Code)
		payload := models.FunctionPayload{
			FilePath:  normalizedPath,
			Language:  p.Language(),
			Name:      fn.Name,
			StartLine: fn.StartLine,
			EndLine:   fn.EndLine,
			CodeHash:  hash,
			Content:   fn.Code,
		}
		points = append(points, qdrant.FunctionPoint(pointID(normalizedPath, fn.StartByte, hash), vectors[i], payload))
	}

	if err := idx.store.Upsert(ctx, idx.collection, points); err != nil {
		return 0, fmt.Errorf("upsert %s: %w", path, err)
	}
	idx.log.Debug().Str("file", path).Int("functions", len(points)).Msg("indexed")
	return len(points), nil
}

// ensureCollection creates the collection once per run, sized from the first
// embedding returned.
func (idx *Indexer) ensureCollection(ctx context.Context, size uint64) error {
	idx.ensureMu.Lock()
	defer idx.ensureMu.Unlock()
	if idx.ensured {
		return nil
	}
	if err := idx.store.EnsureCollection(ctx, idx.collection, size); err != nil {
		return err
	}
	idx.ensured = true
	return nil
}

// Search embeds query and returns the topK most similar functions.
func (idx *Indexer) Search(ctx context.Context, query string, topK int) ([]models.SearchHit, error) {
	if idx.collection == "" {
		return nil, ErrNoCollection
	}
	query = utils.NormalizeQuery(query)
	if query == "" {
		return nil, errors.New("empty query")
	}
	if topK <= 0 {
		topK = 10
	}
	vec, err := idx.embeddings.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	points, err := idx.store.Search(ctx, idx.collection, vec, uint64(topK))
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", idx.collection, err)
	}
	return qdrant.ToSearchHits(points), nil
}

// Clear drops the project's collection and its local state.
func (idx *Indexer) Clear(ctx context.Context) error {
	if idx.collection == "" {
		return ErrNoCollection
	}
	if err := idx.store.DeleteCollection(ctx, idx.collection); err != nil {
		return fmt.Errorf("delete collection %s: %w", idx.collection, err)
	}
	idx.ensured = false
	return ClearProjectState(idx.projectID)
}

func embeddingText(path, lang string, fn parser.FunctionRecord) string {
	meta := []string{
		"file_path: " + path,
		"language: " + lang,
		"function: " + fn.Name,
		fmt.Sprintf("lines: %d-%d", fn.StartLine, fn.EndLine),
	}
	return strings.Join(meta, "\n") + "\n\n" + fn.Code
}

// pointID derives a stable 64-bit point ID from the function's location and
// content, so identical bodies in different files do not collide.
func pointID(path string, startByte int, codeHash string) uint64 {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s:%d:%s", path, startByte, codeHash)))
	return binary.BigEndian.Uint64(h[:8])
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

// hashFile computes a stable hash for a file's entire contents.
func hashFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return utils.HashContent(string(data)), nil
}

func normalizeFilePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}

	abs := path
	if !filepath.IsAbs(abs) {
		if a, err := filepath.Abs(abs); err == nil {
			abs = a
		}
	}
	normalized := filepath.ToSlash(filepath.Clean(abs))
	if runtime.GOOS == "windows" {
		normalized = strings.ToLower(normalized)
	}
	return normalized
}

func canonicalizeHashKeys(hashes map[string]string, normalizedRoot string) map[string]string {
	if len(hashes) == 0 {
		return hashes
	}
	root := strings.TrimSpace(normalizedRoot)
	if root == "" {
		return hashes
	}
	root = filepath.Clean(root)

	out := make(map[string]string, len(hashes))
	for k, v := range hashes {
		key := strings.TrimSpace(k)
		if key == "" {
			continue
		}
		p := filepath.FromSlash(key)
		if !filepath.IsAbs(p) {
			p = filepath.Join(root, p)
		}
		out[normalizeFilePath(p)] = v
	}
	return out
}

// loadFileHashes loads the last-seen file hash map, stored as JSON under
// ~/.securecode and scoped by project ID.
func loadFileHashes(projectID string) (map[string]string, error) {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}

	var hashes map[string]string
	if err := json.Unmarshal(data, &hashes); err != nil {
		return nil, err
	}
	if hashes == nil {
		hashes = make(map[string]string)
	}
	return hashes, nil
}

func saveFileHashes(projectID string, hashes map[string]string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(hashes, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(statePath, data, 0o644)
}

func fileHashStatePath(projectID string) (string, error) {
	stateDir, err := utils.UserStateDir()
	if err != nil {
		return "", err
	}
	if projectID == "" {
		projectID = "default"
	}
	return filepath.Join(stateDir, projectID+"_file_hashes.json"), nil
}

// ClearProjectState removes the file-hash map used for incremental indexing.
func ClearProjectState(projectID string) error {
	statePath, err := fileHashStatePath(projectID)
	if err != nil {
		return err
	}
	if err := os.Remove(statePath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// deleteFilePoints removes all vectors whose payload file_path matches path.
func (idx *Indexer) deleteFilePoints(ctx context.Context, path string) error {
	if idx.collection == "" {
		return ErrNoCollection
	}
	return idx.store.DeleteByFilter(ctx, idx.collection, qdrant.FileFilter(path))
}
