/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package cli

import (
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"blockviewer/internal/config"
)

func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or trim the local block cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "stats",
		Short: "Show cached rows and bytes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil || s == nil {
				return err
			}
			st, err := s.Stats(cmd.Context())
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "path:  %s\nrows:  %d\nbytes: %d\ncap:   %d\n", s.Path(), st.Rows, st.Bytes, a.cfg.Cache.MaxBytes)
			return nil
		},
	})
	var maxBytes int64
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Evict least recently used blocks until the cache fits",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil || s == nil {
				return err
			}
			limit := a.cfg.Cache.MaxBytes
			if cmd.Flags().Changed("max-bytes") {
				limit = maxBytes
			}
			n, err := s.EvictToFit(cmd.Context(), limit)
			if err != nil {
				return err
			}
			printf(cmd.OutOrStdout(), "evicted %d blocks\n", n)
			return nil
		},
	}
	prune.Flags().Int64Var(&maxBytes, "max-bytes", 0, "size to trim the cache to (default: configured cap)")
	cmd.AddCommand(prune, &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached block",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil || s == nil {
				return err
			}
			return s.Clear(cmd.Context())
		},
	})
	return cmd
}

func newTokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the Are.na personal access token in the OS keychain",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set <token>",
		Short: "Store a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tok := strings.TrimSpace(args[0])
			if tok == "" {
				return errors.New("empty token")
			}
			return config.SetToken(tok)
		},
	}, &cobra.Command{
		Use:   "clear",
		Short: "Remove the stored token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.SetToken("")
		},
	}, &cobra.Command{
		Use:   "status",
		Short: "Report whether a token is configured",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			src := "none"
			switch {
			case config.Token() == "":
			case strings.TrimSpace(os.Getenv(config.EnvToken)) != "":
				src = config.EnvToken
			default:
				src = "keychain"
			}
			printf(cmd.OutOrStdout(), "token: %s\n", src)
		},
	})
	return cmd
}
