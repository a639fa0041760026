/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package arena

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	applog "blockviewer/internal/log"
	"blockviewer/internal/storage"
)

// Fetcher returns the raw payload of a block.
type Fetcher interface {
	BlockJSON(ctx context.Context, id int64) ([]byte, error)
}

// Cache is a keyed block cache. Concurrent callers for one id share a single
// request. Results are kept in memory and written through to an optional store.
// Cache is safe for concurrent use.
type Cache struct {
	src   Fetcher
	store *storage.Store
	group singleflight.Group
	log   *slog.Logger

	mu     sync.RWMutex
	blocks map[int64]*Block
}

// NewCache wraps src. store may be nil.
func NewCache(src Fetcher, store *storage.Store) *Cache {
	return &Cache{
		src:    src,
		store:  store,
		log:    applog.WithComponent("arena"),
		blocks: make(map[int64]*Block),
	}
}

// Peek returns a block only if it is already in memory.
func (c *Cache) Peek(id int64) (*Block, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.blocks[id]
	return b, ok
}

// Get returns the block from memory, then the store, then the network.
func (c *Cache) Get(ctx context.Context, id int64) (*Block, error) {
	if b, ok := c.Peek(id); ok {
		return b, nil
	}
	v, err, _ := c.group.Do(strconv.FormatInt(id, 10), func() (any, error) {
		if b, ok := c.Peek(id); ok {
			return b, nil
		}
		if b := c.fromStore(ctx, id); b != nil {
			c.remember(b)
			return b, nil
		}
		data, err := c.src.BlockJSON(ctx, id)
		if err != nil {
			return nil, err
		}
		b, err := DecodeBlock(data)
		if err != nil {
			return nil, err
		}
		c.remember(b)
		if c.store != nil {
			if err := c.store.Put(ctx, id, data); err != nil {
				c.log.Warn("store block", slog.Int64("id", id), slog.Any("err", err))
			}
		}
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Block), nil
}

func (c *Cache) fromStore(ctx context.Context, id int64) *Block {
	if c.store == nil {
		return nil
	}
	data, ok, err := c.store.Get(ctx, id)
	if err != nil || !ok {
		if err != nil {
			c.log.Warn("read stored block", slog.Int64("id", id), slog.Any("err", err))
		}
		return nil
	}
	b, err := DecodeBlock(data)
	if err != nil {
		// stale schema; refetch and overwrite
		_ = c.store.Delete(ctx, id)
		return nil
	}
	return b
}

func (c *Cache) remember(b *Block) {
	c.mu.Lock()
	c.blocks[b.ID] = b
	c.mu.Unlock()
}

// Forget drops id from memory and the store.
func (c *Cache) Forget(ctx context.Context, id int64) error {
	c.mu.Lock()
	delete(c.blocks, id)
	c.mu.Unlock()
	if c.store == nil {
		return nil
	}
	return c.store.Delete(ctx, id)
}

// Prefetch loads every id concurrently and returns the blocks in the order
// given. Blocks the API does not know are left nil; any other error aborts.
func (c *Cache) Prefetch(ctx context.Context, ids []int64) ([]*Block, error) {
	out := make([]*Block, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, id := range ids {
		g.Go(func() error {
			b, err := c.Get(gctx, id)
			if errors.Is(err, ErrNotFound) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("prefetch block %d: %w", id, err)
			}
			out[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
