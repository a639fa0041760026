/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"blockviewer/internal/arena"
	applog "blockviewer/internal/log"
	"blockviewer/internal/nav"
	"blockviewer/internal/ui"
	"blockviewer/internal/version"
	"blockviewer/internal/zoom"
)

// parseTarget accepts a bare id or a block URL as produced by nav.BlockURL.
func parseTarget(arg, ordering, context string) (nav.Location, error) {
	if strings.HasPrefix(arg, "/block/") {
		loc, err := nav.ParseBlockURL(arg)
		if err != nil {
			return nav.Location{}, err
		}
		if ordering != "" {
			loc.Order = nav.ParseOrder(ordering)
		}
		if context != "" {
			loc.Context = context
		}
		return loc, nil
	}
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return nav.Location{}, fmt.Errorf("invalid block id %q", arg)
	}
	return nav.Location{ID: id, Order: nav.ParseOrder(ordering), Context: context}, nil
}

func newViewCmd(a *app) *cobra.Command {
	var ordering, context string
	cmd := &cobra.Command{
		Use:   "view <id|/block/<id>?...>",
		Short: "Open a block in the desktop viewer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseTarget(args[0], ordering, context)
			if err != nil {
				return err
			}
			blocks, err := a.blocks(cmd.Context())
			if err != nil {
				return err
			}
			u := nav.BlockURL(loc.ID, loc.Context, loc.Order)
			a.log.Info("view", slog.String("url", u))
			a.note("block", strconv.FormatInt(loc.ID, 10))
			return ui.Run(ui.RunOptions{
				Location:   loc,
				Blocks:     blocks,
				HTTP:       a.http,
				Policy:     zoom.PolicyFor(a.cfg.Viewer.ZoomMode, a.cfg.Viewer.MaxScale),
				ShowFooter: a.cfg.Viewer.ShowFooter,
				OnSession:  func(s *ui.Session) { a.watch(s.Navigator().URL) },
			})
		},
	}
	cmd.Flags().StringVar(&ordering, "ordering", "", "comma-separated block ids to swipe through")
	cmd.Flags().StringVar(&context, "context", "", "path to return to when the viewer closes")
	return cmd
}

// blockInfo is what `block` prints.
type blockInfo struct {
	*arena.Block
	URL     string `json:"url"`
	Natural *struct {
		Width  float32 `json:"width"`
		Height float32 `json:"height"`
		Format string  `json:"format"`
	} `json:"natural,omitempty"`
}

func newBlockCmd(a *app) *cobra.Command {
	var inspect bool
	var ordering, context string
	cmd := &cobra.Command{
		Use:   "block <id>",
		Short: "Print a block as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loc, err := parseTarget(args[0], ordering, context)
			if err != nil {
				return err
			}
			a.note("block", strconv.FormatInt(loc.ID, 10))
			ctx := applog.ContextWithItem(cmd.Context(), loc.ID)
			blocks, err := a.blocks(ctx)
			if err != nil {
				return err
			}
			b, err := blocks.Get(ctx, loc.ID)
			if err != nil {
				return fmt.Errorf("block %d: %w", loc.ID, err)
			}
			info := blockInfo{Block: b, URL: nav.BlockURL(loc.ID, loc.Context, loc.Order)}
			if inspect && b.DisplayURL() != "" {
				size, format, err := arena.InspectImage(ctx, a.http, b.DisplayURL())
				if err != nil {
					return err
				}
				info.Natural = &struct {
					Width  float32 `json:"width"`
					Height float32 `json:"height"`
					Format string  `json:"format"`
				}{size.W, size.H, format}
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(info)
		},
	}
	cmd.Flags().BoolVar(&inspect, "inspect", false, "download the display image and report its natural size")
	cmd.Flags().StringVar(&ordering, "ordering", "", "ordering to include in the printed URL")
	cmd.Flags().StringVar(&context, "context", "", "context to include in the printed URL")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			printf(cmd.OutOrStdout(), "blockviewer %s\n", version.String())
		},
	}
}
