package textvec

import (
	"context"
	"fmt"
	"sync"
)

// VocabularySource is the persisted vocabulary.
type VocabularySource interface {
	VocabularyGeneration(ctx context.Context) (int64, error)
	LoadVocabulary(ctx context.Context) (*Vocabulary, error)
}

// VocabularyCache keeps the last loaded vocabulary and reloads it only when
// the stored generation moves on.
type VocabularyCache struct {
	source VocabularySource
	holder VocabularyHolder
	mu     sync.Mutex // serializes reloads
}

func NewVocabularyCache(source VocabularySource) *VocabularyCache {
	return &VocabularyCache{source: source}
}

// Current returns a complete vocabulary for the stored generation.
func (c *VocabularyCache) Current(ctx context.Context) (*Vocabulary, error) {
	gen, err := c.source.VocabularyGeneration(ctx)
	if err != nil {
		return nil, fmt.Errorf("read vocabulary generation: %w", err)
	}

	if v := c.holder.Load(); v != nil && v.Generation == gen {
		return v, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if v := c.holder.Load(); v != nil && v.Generation == gen {
		return v, nil
	}

	v, err := c.source.LoadVocabulary(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vocabulary: %w", err)
	}
	c.holder.Store(v)
	return v, nil
}
