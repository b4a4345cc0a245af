package vector

import (
	"context"
	"fmt"
	"strconv"

	"github.com/floatchat/floatchat-backend/internal/platform/logger"
	"github.com/floatchat/floatchat-backend/internal/types"
)

// Indexer writes profiles into the semantic index under one store's
// namespace. Vectors are keyed by the profile's global ID in string form;
// the per-store namespace keeps searches and orphan repair scoped to the
// store that owns the profiles.
type Indexer struct {
	store     Store
	embed     EmbedFunc
	namespace string
	log       *logger.Logger
}

func NewIndexer(store Store, embed EmbedFunc, namespace string, baseLog *logger.Logger) (*Indexer, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store required")
	}
	if embed == nil {
		return nil, fmt.Errorf("embed capability required")
	}
	return &Indexer{
		store:     store,
		embed:     embed,
		namespace: namespace,
		log:       baseLog.With("service", "VectorIndexer"),
	}, nil
}

// IndexProfiles embeds and upserts a batch of profiles.
func (ix *Indexer) IndexProfiles(ctx context.Context, profiles []*types.ArgoProfile) error {
	if len(profiles) == 0 {
		return nil
	}
	docs := make([]string, len(profiles))
	for i, p := range profiles {
		docs[i] = DocText(p)
	}
	embeddings, err := ix.embed(ctx, docs)
	if err != nil {
		return fmt.Errorf("embed profiles: %w", err)
	}
	if len(embeddings) != len(profiles) {
		return fmt.Errorf("embed profiles: expected %d vectors, got %d", len(profiles), len(embeddings))
	}

	vectors := make([]Vector, len(profiles))
	for i, p := range profiles {
		vectors[i] = Vector{
			ID:       strconv.FormatInt(p.GlobalProfileID, 10),
			Values:   embeddings[i],
			Metadata: Metadata(p),
		}
	}
	if err := ix.store.Upsert(ctx, ix.namespace, vectors); err != nil {
		return fmt.Errorf("vector upsert: %w", err)
	}
	return nil
}

// RepairOrphans deletes vector records in this indexer's namespace whose
// profile no longer exists in the owning store. exists is consulted with
// every indexed global ID.
func (ix *Indexer) RepairOrphans(ctx context.Context, exists func(ctx context.Context, ids []int64) (map[int64]bool, error)) (int, error) {
	ids, err := ix.store.ListIDs(ctx, ix.namespace)
	if err != nil {
		return 0, fmt.Errorf("list vector ids: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	numeric := make([]int64, 0, len(ids))
	byString := make(map[int64]string, len(ids))
	for _, raw := range ids {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			ix.log.Warn("non-numeric vector id in index", "vector_id", raw)
			continue
		}
		numeric = append(numeric, id)
		byString[id] = raw
	}

	present, err := exists(ctx, numeric)
	if err != nil {
		return 0, fmt.Errorf("orphan existence check: %w", err)
	}

	var orphans []string
	for _, id := range numeric {
		if !present[id] {
			orphans = append(orphans, byString[id])
		}
	}
	if len(orphans) == 0 {
		return 0, nil
	}
	if err := ix.store.DeleteIDs(ctx, ix.namespace, orphans); err != nil {
		return 0, fmt.Errorf("delete orphans: %w", err)
	}
	ix.log.Info("repaired orphaned vector records", "count", len(orphans))
	return len(orphans), nil
}
