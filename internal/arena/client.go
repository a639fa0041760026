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
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is the public Are.na API.
const DefaultBaseURL = "https://api.are.na"

// Client is a minimal HTTP client for the Are.na v2 API.
type Client struct {
	BaseURL string
	Token   string // bearer token, optional for public blocks
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash; it will be normalized.
// A zero timeout means 10 seconds.
func NewClient(baseURL, token string, timeout time.Duration) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: timeout},
	}
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, u.Path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("arena GET %s: %s", u.Path, resp.Status)
	}
	return io.ReadAll(resp.Body)
}

// BlockJSON fetches the raw payload of a block without validating it.
func (c *Client) BlockJSON(ctx context.Context, id int64) ([]byte, error) {
	return c.get(ctx, "/v2/blocks/"+strconv.FormatInt(id, 10))
}

// Block fetches and decodes a single block.
func (c *Client) Block(ctx context.Context, id int64) (*Block, error) {
	data, err := c.BlockJSON(ctx, id)
	if err != nil {
		return nil, err
	}
	return DecodeBlock(data)
}
