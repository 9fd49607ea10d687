package store

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/coder/hnsw"
)

var errStoreClosed = errors.New("vector store is closed")

// manifestSuffix names the JSON file saved next to the exported graph.
const manifestSuffix = ".meta"

// vectorEntry ties a passage to its graph node and owning document.
type vectorEntry struct {
	Key      uint64 `json:"key"`
	Document string `json:"document"`
}

// vectorManifest is everything the graph export does not carry.
type vectorManifest struct {
	Dimensions int                    `json:"dimensions"`
	Metric     string                 `json:"metric"`
	NextKey    uint64                 `json:"next_key"`
	Passages   map[string]vectorEntry `json:"passages"`
}

// HNSWStore keeps passage embeddings of every document in one coder/hnsw
// graph. Replaced and deleted passages stay in the graph as orphans that
// searches skip; they disappear when the document set is re-indexed.
type HNSWStore struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorStoreConfig

	passages map[string]vectorEntry // passage ID -> node
	owners   map[uint64]string      // live node key -> passage ID
	docSize  map[string]int         // document ID -> live passages
	nextKey  uint64
	closed   bool
}

// NewHNSWStore creates an empty store. Zero config fields take the
// values of DefaultVectorStoreConfig.
func NewHNSWStore(cfg VectorStoreConfig) (*HNSWStore, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("vector dimensions must be positive, got %d", cfg.Dimensions)
	}
	def := DefaultVectorStoreConfig(cfg.Dimensions)
	if cfg.Metric == "" {
		cfg.Metric = def.Metric
	}
	if cfg.M == 0 {
		cfg.M = def.M
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = def.EfSearch
	}
	if cfg.OverFetch <= 0 {
		cfg.OverFetch = def.OverFetch
	}

	s := &HNSWStore{config: cfg}
	s.reset()
	return s, nil
}

// reset installs an empty graph and empty mappings.
func (s *HNSWStore) reset() {
	g := hnsw.NewGraph[uint64]()
	g.M = s.config.M
	g.EfSearch = s.config.EfSearch
	g.Ml = 0.25
	if s.config.Metric == "l2" {
		g.Distance = hnsw.EuclideanDistance
	} else {
		g.Distance = hnsw.CosineDistance
	}

	s.graph = g
	s.passages = make(map[string]vectorEntry)
	s.owners = make(map[uint64]string)
	s.docSize = make(map[string]int)
	s.nextKey = 0
}

// Add stores vectors for passages of documentID. A passage that is
// already stored gets a fresh node and its old node is orphaned.
func (s *HNSWStore) Add(ctx context.Context, documentID string, ids []string, vectors [][]float32) error {
	if len(ids) != len(vectors) {
		return fmt.Errorf("got %d passage ids for %d vectors", len(ids), len(vectors))
	}
	if len(ids) == 0 {
		return nil
	}
	for _, v := range vectors {
		if len(v) != s.config.Dimensions {
			return ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(v)}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		s.forget(id)

		key := s.nextKey
		s.nextKey++
		s.graph.Add(hnsw.MakeNode(key, s.prepare(vectors[i])))

		s.passages[id] = vectorEntry{Key: key, Document: documentID}
		s.owners[key] = id
		s.docSize[documentID]++
	}
	return nil
}

// forget drops the live mapping of a passage. Its node stays in the graph.
// coder/hnsw misbehaves when the last node of a layer is deleted, so
// nodes are never removed from the graph itself.
func (s *HNSWStore) forget(id string) {
	e, ok := s.passages[id]
	if !ok {
		return
	}
	delete(s.owners, e.Key)
	delete(s.passages, id)
	if s.docSize[e.Document] <= 1 {
		delete(s.docSize, e.Document)
	} else {
		s.docSize[e.Document]--
	}
}

// prepare copies v, unit-normalizing it under the cosine metric.
func (s *HNSWStore) prepare(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	if s.config.Metric != "cos" {
		return out
	}

	var sum float64
	for _, x := range out {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range out {
		out[i] *= inv
	}
	return out
}

// Search returns up to k passages of documentID nearest to query, best
// first. An empty documentID searches every document. Scoped searches
// start at k*OverFetch graph candidates and double until k hits, every
// passage of the document, or the whole graph has been seen.
func (s *HNSWStore) Search(ctx context.Context, documentID string, query []float32, k int) ([]*VectorResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, errStoreClosed
	}
	if len(query) != s.config.Dimensions {
		return nil, ErrDimensionMismatch{Expected: s.config.Dimensions, Got: len(query)}
	}

	want := k
	if documentID != "" {
		want = min(k, s.docSize[documentID])
	} else {
		want = min(k, len(s.passages))
	}
	if want <= 0 {
		return []*VectorResult{}, nil
	}

	q := s.prepare(query)
	fetch := want
	if documentID != "" || len(s.owners) < s.graph.Len() {
		fetch = want * s.config.OverFetch
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		hits := s.collect(documentID, q, fetch)
		if len(hits) >= want || fetch >= s.graph.Len() {
			if len(hits) > want {
				hits = hits[:want]
			}
			return hits, nil
		}
		fetch *= 2
	}
}

// collect runs one graph search and keeps live, in-scope nodes.
func (s *HNSWStore) collect(documentID string, q []float32, fetch int) []*VectorResult {
	nodes := s.graph.Search(q, fetch)

	hits := make([]*VectorResult, 0, len(nodes))
	for _, n := range nodes {
		id, live := s.owners[n.Key]
		if !live {
			continue
		}
		if documentID != "" && s.passages[id].Document != documentID {
			continue
		}
		d := s.graph.Distance(q, n.Value)
		hits = append(hits, &VectorResult{ID: id, Distance: d, Score: s.similarity(d)})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Distance < hits[j].Distance
	})
	return hits
}

// similarity turns a distance into a score, higher meaning closer. For
// cosine this is the cosine similarity itself, in [-1, 1].
func (s *HNSWStore) similarity(d float32) float32 {
	if s.config.Metric == "l2" {
		return 1 / (1 + d)
	}
	return 1 - d
}

// Delete forgets passages. Unknown IDs are ignored.
func (s *HNSWStore) Delete(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}
	for _, id := range ids {
		s.forget(id)
	}
	return nil
}

// AllIDs returns the stored passage IDs in sorted order.
func (s *HNSWStore) AllIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil
	}
	ids := make([]string, 0, len(s.passages))
	for id := range s.passages {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Contains reports whether a passage has a vector.
func (s *HNSWStore) Contains(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.passages[id]
	return ok && !s.closed
}

// Count returns the number of stored passages.
func (s *HNSWStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return len(s.passages)
}

// DocumentCount returns the number of stored passages of one document.
func (s *HNSWStore) DocumentCount(documentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.docSize[documentID]
}

// Orphans returns graph nodes no passage points at any more.
func (s *HNSWStore) Orphans() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0
	}
	return s.graph.Len() - len(s.owners)
}

// Save writes the graph to path and the manifest to path+".meta". Both
// are written to a temp file first and renamed into place.
func (s *HNSWStore) Save(path string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errStoreClosed
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create vector index directory: %w", err)
	}

	if err := writeAtomic(path, func(f *os.File) error { return s.graph.Export(f) }); err != nil {
		return fmt.Errorf("save vector graph: %w", err)
	}

	m := vectorManifest{
		Dimensions: s.config.Dimensions,
		Metric:     s.config.Metric,
		NextKey:    s.nextKey,
		Passages:   s.passages,
	}
	err := writeAtomic(path+manifestSuffix, func(f *os.File) error {
		return json.NewEncoder(f).Encode(m)
	})
	if err != nil {
		return fmt.Errorf("save vector manifest: %w", err)
	}
	return nil
}

// writeAtomic writes through a temp file beside path and renames it.
func writeAtomic(path string, write func(*os.File) error) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return nil
}

// Load replaces the store contents with a graph saved by Save.
func (s *HNSWStore) Load(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errStoreClosed
	}

	m, err := readManifest(path)
	if err != nil {
		return err
	}
	if m.Dimensions != s.config.Dimensions {
		return ErrDimensionMismatch{Expected: m.Dimensions, Got: s.config.Dimensions}
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open vector graph: %w", err)
	}
	defer func() { _ = f.Close() }()

	s.reset()
	// Import needs an io.ByteReader.
	if err := s.graph.Import(bufio.NewReader(f)); err != nil {
		s.reset()
		return fmt.Errorf("import vector graph: %w", err)
	}

	s.nextKey = m.NextKey
	for id, e := range m.Passages {
		s.passages[id] = e
		s.owners[e.Key] = id
		s.docSize[e.Document]++
	}
	return nil
}

// readManifest decodes the manifest saved beside vectorPath.
func readManifest(vectorPath string) (*vectorManifest, error) {
	data, err := os.ReadFile(vectorPath + manifestSuffix)
	if err != nil {
		return nil, fmt.Errorf("read vector manifest: %w", err)
	}
	var m vectorManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decode vector manifest: %w", err)
	}
	if m.Passages == nil {
		m.Passages = make(map[string]vectorEntry)
	}
	return &m, nil
}

// Close releases the graph. Closing twice is a no-op.
func (s *HNSWStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	s.graph = nil
	return nil
}

// ReadHNSWStoreDimensions returns the dimensions a saved vector index was
// built with, or 0 when nothing has been saved at vectorPath yet.
func ReadHNSWStoreDimensions(vectorPath string) (int, error) {
	m, err := readManifest(vectorPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, err
	}
	return m.Dimensions, nil
}

var _ VectorStore = (*HNSWStore)(nil)
