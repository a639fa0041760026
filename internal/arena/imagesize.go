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
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"

	_ "golang.org/x/image/webp"

	"blockviewer/internal/geom"
)

func download(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", url, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("get %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// InspectImage downloads url and reports the natural size of the image.
// Only the header is decoded.
func InspectImage(ctx context.Context, client *http.Client, url string) (geom.Size, string, error) {
	body, err := download(ctx, client, url)
	if err != nil {
		return geom.Size{}, "", err
	}
	defer body.Close()
	return DecodeSize(body)
}

// FetchImage downloads and fully decodes the image at url.
func FetchImage(ctx context.Context, client *http.Client, url string) (image.Image, error) {
	body, err := download(ctx, client, url)
	if err != nil {
		return nil, err
	}
	defer body.Close()
	img, _, err := image.Decode(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}
	return img, nil
}

// DecodeSize reads an image header from r.
func DecodeSize(r io.Reader) (geom.Size, string, error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return geom.Size{}, "", fmt.Errorf("decode image config: %w", err)
	}
	return geom.Size{W: float32(cfg.Width), H: float32(cfg.Height)}, format, nil
}
