/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package arena is the data provider of the viewer: an Are.na API client,
// a keyed block cache backed by the sqlite store and an image inspector that
// reads natural image sizes.
package arena

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

var (
	// ErrNotFound is returned for a block the API does not know.
	ErrNotFound = errors.New("arena: block not found")
	// ErrInvalidBlock is returned when a response does not match the block schema.
	ErrInvalidBlock = errors.New("arena: invalid block")
)

//go:embed block.schema.json
var blockSchema []byte

var compiledSchema = sync.OnceValues(func() (*gojsonschema.Schema, error) {
	return gojsonschema.NewSchema(gojsonschema.NewBytesLoader(blockSchema))
})

// Version is one rendition of a block image.
type Version struct {
	URL      string `json:"url"`
	FileSize int64  `json:"file_size,omitempty"`
}

// Image holds the renditions of an image block.
type Image struct {
	Filename    string   `json:"filename,omitempty"`
	ContentType string   `json:"content_type,omitempty"`
	Thumb       *Version `json:"thumb,omitempty"`
	Square      *Version `json:"square,omitempty"`
	Display     *Version `json:"display,omitempty"`
	Large       *Version `json:"large,omitempty"`
	Original    *Version `json:"original,omitempty"`
}

// Block is the record the viewer displays.
type Block struct {
	ID              int64  `json:"id"`
	Title           string `json:"title,omitempty"`
	DescriptionHTML string `json:"description_html,omitempty"`
	Class           string `json:"class"`
	Image           *Image `json:"image,omitempty"`
}

// DisplayURL returns the URL of the display rendition, or "".
func (b *Block) DisplayURL() string {
	if b == nil || b.Image == nil || b.Image.Display == nil {
		return ""
	}
	return b.Image.Display.URL
}

// ThumbURL returns the thumbnail URL, falling back to the display rendition.
func (b *Block) ThumbURL() string {
	if b != nil && b.Image != nil && b.Image.Thumb != nil && b.Image.Thumb.URL != "" {
		return b.Image.Thumb.URL
	}
	return b.DisplayURL()
}

// Alt is the text shown in place of the image.
func (b *Block) Alt() string {
	if b != nil && strings.TrimSpace(b.Title) != "" {
		return b.Title
	}
	return "arena block image"
}

// DecodeBlock validates data against the block schema and decodes it.
func DecodeBlock(data []byte) (*Block, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile block schema: %w", err)
	}
	res, err := schema.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidBlock, strings.Join(msgs, "; "))
	}
	// null fields decode as zero values
	var b Block
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBlock, err)
	}
	return &b, nil
}
