/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package arena

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"blockviewer/internal/storage"
)

func blockJSON(id int64) string {
	return fmt.Sprintf(`{"id":%d,"title":"Block %d","description_html":null,"class":"Image",
"image":{"thumb":{"url":"https://img/%d/thumb.jpg"},"display":{"url":"https://img/%d/display.jpg"},"original":{"url":"https://img/%d.jpg","file_size":1234}}}`, id, id, id, id, id)
}

type apiServer struct {
	*httptest.Server
	hits atomic.Int32
	auth atomic.Value
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()
	s := &apiServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.auth.Store(r.Header.Get("Authorization"))
		id := strings.TrimPrefix(r.URL.Path, "/v2/blocks/")
		switch id {
		case "404":
			http.NotFound(w, r)
		case "500":
			http.Error(w, "boom", http.StatusInternalServerError)
		case "bad":
			fmt.Fprint(w, `{"id":"x"}`)
		default:
			var n int64
			fmt.Sscan(id, &n)
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, blockJSON(n))
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func TestClientBlock(t *testing.T) {
	srv := newAPIServer(t)
	c := NewClient(srv.URL+"/", "tok", 0)
	b, err := c.Block(context.Background(), 7)
	if err != nil {
		t.Fatalf("block: %v", err)
	}
	if b.ID != 7 || b.Title != "Block 7" || b.Class != "Image" {
		t.Fatalf("unexpected block: %+v", b)
	}
	if b.DisplayURL() != "https://img/7/display.jpg" || b.ThumbURL() != "https://img/7/thumb.jpg" {
		t.Fatalf("urls: %q %q", b.DisplayURL(), b.ThumbURL())
	}
	if b.Image.Original.FileSize != 1234 {
		t.Fatalf("file size: %d", b.Image.Original.FileSize)
	}
	if got := srv.auth.Load(); got != "Bearer tok" {
		t.Fatalf("authorization header: %v", got)
	}
}

func TestClientErrors(t *testing.T) {
	srv := newAPIServer(t)
	c := NewClient(srv.URL, "", 0)
	ctx := context.Background()
	if _, err := c.Block(ctx, 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}
	if _, err := c.Block(ctx, 500); err == nil || errors.Is(err, ErrNotFound) {
		t.Fatalf("want server error, got %v", err)
	}
	if got := srv.auth.Load(); got != "" {
		t.Fatalf("no token should send no header, got %v", got)
	}
	data, err := c.get(ctx, "/v2/blocks/bad")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, err := DecodeBlock(data); !errors.Is(err, ErrInvalidBlock) {
		t.Fatalf("want ErrInvalidBlock, got %v", err)
	}
}

func TestBlockAltFallback(t *testing.T) {
	var nilBlock *Block
	if nilBlock.DisplayURL() != "" || nilBlock.Alt() != "arena block image" {
		t.Fatalf("nil block helpers")
	}
	b := &Block{ID: 1, Title: "  ", Class: "Text"}
	if b.Alt() != "arena block image" || b.ThumbURL() != "" {
		t.Fatalf("blank title should fall back")
	}
}

func TestBlockDescription(t *testing.T) {
	cases := []struct {
		html, want string
	}{
		{"", ""},
		{"<p>One  <em>two</em>\nthree</p>", "One two three"},
		{"<p>First</p><p>Second<br>line</p>", "First\n\nSecond\nline"},
		{"<p>Shot on <a href=\"https://x\">film</a>.</p><script>alert(1)</script>", "Shot on film."},
	}
	for _, c := range cases {
		b := &Block{DescriptionHTML: c.html}
		if got := b.Description(); got != c.want {
			t.Errorf("Description(%q) = %q, want %q", c.html, got, c.want)
		}
	}
	var nilBlock *Block
	if nilBlock.Description() != "" {
		t.Fatal("nil block should have no description")
	}
}

func TestCacheSharesRequests(t *testing.T) {
	srv := newAPIServer(t)
	cache := NewCache(NewClient(srv.URL, "", 0), nil)
	var wg sync.WaitGroup
	results := make([]*Block, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := cache.Get(context.Background(), 3)
			if err != nil {
				t.Errorf("get: %v", err)
				return
			}
			results[i] = b
		}()
	}
	wg.Wait()
	if n := srv.hits.Load(); n != 1 {
		t.Fatalf("want 1 request, got %d", n)
	}
	for _, b := range results {
		if b != results[0] {
			t.Fatalf("callers should share one block")
		}
	}
}

type failingFetcher struct{}

func (failingFetcher) BlockJSON(context.Context, int64) ([]byte, error) {
	return nil, errors.New("offline")
}

func TestCacheWritesThroughToStore(t *testing.T) {
	ctx := context.Background()
	store, err := storage.Open(ctx, filepath.Join(t.TempDir(), "blocks.sqlite"), 0)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	srv := newAPIServer(t)
	if _, err := NewCache(NewClient(srv.URL, "", 0), store).Get(ctx, 11); err != nil {
		t.Fatalf("get: %v", err)
	}
	offline := NewCache(failingFetcher{}, store)
	b, err := offline.Get(ctx, 11)
	if err != nil {
		t.Fatalf("stored block should be served offline: %v", err)
	}
	if b.ID != 11 {
		t.Fatalf("id: %d", b.ID)
	}
	if err := offline.Forget(ctx, 11); err != nil {
		t.Fatalf("forget: %v", err)
	}
	if _, err := offline.Get(ctx, 11); err == nil {
		t.Fatalf("forgotten block should miss")
	}
}

func TestPrefetchKeepsOrdering(t *testing.T) {
	srv := newAPIServer(t)
	cache := NewCache(NewClient(srv.URL, "", 0), nil)
	ids := []int64{30, 10, 404, 20}
	got, err := cache.Prefetch(context.Background(), ids)
	if err != nil {
		t.Fatalf("prefetch: %v", err)
	}
	if len(got) != len(ids) {
		t.Fatalf("len: %d", len(got))
	}
	for i, id := range ids {
		if id == 404 {
			if got[i] != nil {
				t.Fatalf("missing block should be nil")
			}
			continue
		}
		if got[i] == nil || got[i].ID != id {
			t.Fatalf("slot %d: want %d, got %+v", i, id, got[i])
		}
	}
	if _, ok := cache.Peek(20); !ok {
		t.Fatalf("prefetched block should be in memory")
	}
	if _, err := cache.Prefetch(context.Background(), []int64{1, 500}); err == nil {
		t.Fatalf("server error should abort prefetch")
	}
}

func TestInspectImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 64, 48))); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/img.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)

	size, format, err := InspectImage(context.Background(), srv.Client(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("inspect: %v", err)
	}
	if size.W != 64 || size.H != 48 || format != "png" {
		t.Fatalf("got %v %q", size, format)
	}
	if _, _, err := InspectImage(context.Background(), srv.Client(), srv.URL+"/missing"); err == nil {
		t.Fatalf("404 should fail")
	}
	if _, _, err := DecodeSize(strings.NewReader("not an image")); err == nil {
		t.Fatalf("garbage should fail")
	}
}

func TestFetchImage(t *testing.T) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 3, 5))); err != nil {
		t.Fatal(err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(buf.Bytes())
	}))
	t.Cleanup(srv.Close)
	img, err := FetchImage(context.Background(), nil, srv.URL)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 3 || b.Dy() != 5 {
		t.Fatalf("bounds: %v", b)
	}
}
