package chat

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/floatchat/floatchat-backend/internal/chat/intent"
	"github.com/floatchat/floatchat-backend/internal/chat/sqlgen"
	"github.com/floatchat/floatchat-backend/internal/clients/rediscache"
	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/repos"
	"github.com/floatchat/floatchat-backend/internal/vector"
)

// Result is the canonical retrieval payload. Row maps serialize with sorted
// keys, so equal results are byte-identical after JSON encoding regardless of
// which path produced them.
type Result struct {
	Columns  []string                 `json:"columns"`
	Rows     []map[string]interface{} `json:"rows"`
	SQL      string                   `json:"sql,omitempty"`
	Source   string                   `json:"source"`
	CacheHit bool                     `json:"-"`
}

// StoreBackend bundles the per-store read surfaces the executor needs.
type StoreBackend struct {
	Queries  repos.QueryExecutor
	Profiles repos.ProfileRepo
}

// Executor routes a classified query to SQL, vector search, or the hybrid
// combination, behind a fingerprint-keyed result cache. Each store indexes
// into its own vector namespace, so a semantic search and the hydration of
// its matches always read the same population.
type Executor struct {
	stores map[intent.StoreSelection]StoreBackend
	synth  *sqlgen.Synthesizer
	cache  *rediscache.Cache
	vec    vector.Store
	embed  vector.EmbedFunc
	topK   int
	log    *logger.Logger
}

func NewExecutor(
	stores map[intent.StoreSelection]StoreBackend,
	synth *sqlgen.Synthesizer,
	cache *rediscache.Cache,
	vec vector.Store,
	embed vector.EmbedFunc,
	topK int,
	baseLog *logger.Logger,
) *Executor {
	if topK <= 0 {
		topK = 20
	}
	return &Executor{
		stores: stores,
		synth:  synth,
		cache:  cache,
		vec:    vec,
		embed:  embed,
		topK:   topK,
		log:    baseLog.With("service", "RetrievalExecutor"),
	}
}

// Fingerprint hashes the normalized query, intent, entity bag, and store
// selection into the cache key.
func Fingerprint(cls intent.Classification) string {
	payload := struct {
		Normalized string          `json:"normalized"`
		Intent     intent.Intent   `json:"intent"`
		Entities   intent.Entities `json:"entities"`
		Store      string          `json:"store"`
	}{cls.Normalized, cls.Intent, cls.Entities, string(cls.Store)}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

func (e *Executor) Execute(ctx context.Context, cls intent.Classification) (*Result, error) {
	fingerprint := Fingerprint(cls)
	if e.cache != nil {
		var cached Result
		hit, err := e.cache.Get(ctx, fingerprint, &cached)
		if err != nil {
			e.log.Warn("cache read failed", "error", err)
		} else if hit {
			cached.CacheHit = true
			return &cached, nil
		}
	}

	result, err := e.executeUncached(ctx, cls)
	if err != nil {
		return nil, err
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, fingerprint, result); err != nil {
			e.log.Warn("cache write failed", "error", err)
		}
		e.cache.PushRecent(ctx, cls.Normalized)
	}
	return result, nil
}

func (e *Executor) executeUncached(ctx context.Context, cls intent.Classification) (*Result, error) {
	switch cls.Intent {
	case intent.Semantic:
		return e.executeVector(ctx, cls)
	case intent.Hybrid:
		return e.executeHybrid(ctx, cls)
	default:
		return e.executeSQL(ctx, cls, nil)
	}
}

func (e *Executor) executeSQL(ctx context.Context, cls intent.Classification, candidateIDs []int64) (*Result, error) {
	_, backend, err := e.backend(cls.Store)
	if err != nil {
		return nil, err
	}
	stmt, err := e.synth.Synthesize(cls, candidateIDs)
	if err != nil {
		return nil, err
	}
	rows, err := backend.Queries.Execute(ctx, stmt.SQL, stmt.Params)
	if err != nil {
		return nil, err
	}
	source := "sql"
	if len(candidateIDs) > 0 {
		source = "hybrid"
	}
	return &Result{Columns: rows.Columns, Rows: rows.Rows, SQL: stmt.SQL, Source: source}, nil
}

func (e *Executor) executeVector(ctx context.Context, cls intent.Classification) (*Result, error) {
	store, backend, err := e.backend(cls.Store)
	if err != nil {
		return nil, err
	}
	matches, err := e.vectorSearch(ctx, cls, e.topK, string(store))
	if err != nil {
		return nil, err
	}

	ids := make([]int64, 0, len(matches))
	scores := make(map[int64]float64, len(matches))
	for _, m := range matches {
		id, err := strconv.ParseInt(m.ID, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
		scores[id] = m.Score
	}
	profiles, err := backend.Profiles.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrate vector matches: %w", err)
	}

	columns := []string{"global_profile_id", "float_id", "cycle_number", "latitude", "longitude", "datetime", "measurement_count", "region", "similarity_score"}
	rows := make([]map[string]interface{}, 0, len(profiles))
	for _, p := range profiles {
		row := map[string]interface{}{
			"global_profile_id": p.GlobalProfileID,
			"float_id":          p.FloatID,
			"cycle_number":      int64(p.CycleNumber),
			"latitude":          floatOrNil(p.Latitude),
			"longitude":         floatOrNil(p.Longitude),
			"datetime":          timeOrNil(p.Datetime),
			"measurement_count": int64(p.MeasurementCount),
			"region":            vector.Region(p.Latitude, p.Longitude),
			"similarity_score":  round6(scores[p.GlobalProfileID]),
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		si := rows[i]["similarity_score"].(float64)
		sj := rows[j]["similarity_score"].(float64)
		if si == sj {
			return rows[i]["global_profile_id"].(int64) < rows[j]["global_profile_id"].(int64)
		}
		return si > sj
	})
	return &Result{Columns: columns, Rows: rows, Source: "vector"}, nil
}

// executeHybrid narrows with a vector search first, then refines the
// candidate set with precise SQL filters. When the semantic side is down it
// degrades to SQL alone rather than failing the query.
func (e *Executor) executeHybrid(ctx context.Context, cls intent.Classification) (*Result, error) {
	store, _, err := e.backend(cls.Store)
	if err != nil {
		return nil, err
	}
	matches, err := e.vectorSearch(ctx, cls, e.topK*3, string(store))
	if err != nil {
		e.log.Warn("hybrid vector stage failed; degrading to sql only", "error", err)
		return e.executeSQL(ctx, cls, nil)
	}
	ids := make([]int64, 0, len(matches))
	for _, m := range matches {
		if id, err := strconv.ParseInt(m.ID, 10, 64); err == nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return e.executeSQL(ctx, cls, nil)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return e.executeSQL(ctx, cls, ids)
}

// vectorSearch queries the namespace of the store that will also serve the
// relational side of the query, so matches are never hydrated against a
// store that does not hold them.
func (e *Executor) vectorSearch(ctx context.Context, cls intent.Classification, topK int, namespace string) ([]vector.Match, error) {
	if e.vec == nil || e.embed == nil {
		return nil, fmt.Errorf("semantic search unavailable")
	}
	embeddings, err := e.embed(ctx, []string{cls.Normalized})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(embeddings))
	}
	return e.vec.QueryMatches(ctx, namespace, embeddings[0], topK, vectorFilters(cls.Entities))
}

// vectorFilters derives structured metadata predicates from the entity bag.
func vectorFilters(e intent.Entities) map[string]interface{} {
	filters := map[string]interface{}{}
	if len(e.Regions) > 0 {
		filters["region"] = e.Regions[0]
	}
	if len(e.Seasons) > 0 {
		filters["season"] = e.Seasons[0]
	}
	if len(e.Years) > 0 {
		filters["year"] = e.Years[0]
	}
	if len(e.Institutions) > 0 {
		filters["institution"] = e.Institutions[0]
	}
	if len(e.DepthTerms) > 0 {
		filters["depth_band"] = e.DepthTerms[0]
	}
	return filters
}

// backend resolves a store selection, returning the selection actually
// served so callers can scope vector lookups to the same store.
func (e *Executor) backend(store intent.StoreSelection) (intent.StoreSelection, StoreBackend, error) {
	backend, ok := e.stores[store]
	if !ok {
		// The live store is optional in some deployments; the dev snapshot
		// always exists.
		if fallback, ok := e.stores[intent.StoreDev]; ok {
			return intent.StoreDev, fallback, nil
		}
		return store, StoreBackend{}, fmt.Errorf("no store available for selection %q", store)
	}
	return store, backend, nil
}

func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func timeOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}

func round6(v float64) float64 {
	scaled, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'g', 6, 64), 64)
	return scaled
}
