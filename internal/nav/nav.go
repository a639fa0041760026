/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package nav is the navigation provider of the viewer: block orderings,
// block URLs and the navigator that resolves previous/next/close into URLs.
package nav

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	applog "blockviewer/internal/log"
)

const blockPrefix = "/block/"

// Order is the ordered list of block ids of the current browsing context.
type Order []int64

// ParseOrder parses a comma separated id list. Entries that are not
// integers are skipped. An empty result is nil.
func ParseOrder(s string) Order {
	var o Order
	for _, part := range strings.Split(s, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		o = append(o, id)
	}
	return o
}

func (o Order) String() string {
	parts := make([]string, len(o))
	for i, id := range o {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// IndexOf returns the position of id, or -1.
func (o Order) IndexOf(id int64) int {
	for i, x := range o {
		if x == id {
			return i
		}
	}
	return -1
}

// Offset returns the id n places from current, wrapping around both ends.
// A current id that is not in the ordering counts as position -1, so +1
// lands on the first id. ok is false for an empty ordering.
func (o Order) Offset(current int64, n int) (id int64, ok bool) {
	if len(o) == 0 {
		return 0, false
	}
	l := len(o)
	i := ((o.IndexOf(current)+n)%l + l) % l
	return o[i], true
}

// escape matches encodeURIComponent so URLs agree with the web viewer's links.
func escape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// BlockURL builds the viewer URL for id. The ordering is only carried when
// there is one.
func BlockURL(id int64, context string, order Order) string {
	u := fmt.Sprintf("%s%d?articleContext=%s", blockPrefix, id, escape(context))
	if order != nil {
		u += "&blockOrdering=" + escape(order.String())
	}
	return u
}

// ParseParams reads the ordering and article context from a query.
func ParseParams(q url.Values) (Order, string) {
	var order Order
	if v := q.Get("blockOrdering"); v != "" {
		order = ParseOrder(v)
	}
	return order, q.Get("articleContext")
}

// Location is a parsed block URL.
type Location struct {
	ID      int64
	Order   Order
	Context string
}

// ParseBlockURL parses a URL produced by BlockURL.
func ParseBlockURL(raw string) (Location, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parse block url: %w", err)
	}
	rest, found := strings.CutPrefix(u.Path, blockPrefix)
	if !found {
		return Location{}, fmt.Errorf("not a block url: %q", raw)
	}
	id, err := strconv.ParseInt(strings.Trim(rest, "/"), 10, 64)
	if err != nil {
		return Location{}, fmt.Errorf("block id in %q: %w", raw, err)
	}
	order, ctx := ParseParams(u.Query())
	return Location{ID: id, Order: order, Context: ctx}, nil
}

// Navigator resolves navigation intents against the current location and
// hands the resulting URL to the go function.
type Navigator struct {
	loc     Location
	visit   func(url string)
	history *History
	log     *slog.Logger
}

// NewNavigator returns a navigator at loc. goTo receives every URL the
// navigator resolves; history may be nil.
func NewNavigator(loc Location, goTo func(string), history *History) *Navigator {
	if goTo == nil {
		goTo = func(string) {}
	}
	n := &Navigator{loc: loc, visit: goTo, history: history, log: applog.WithComponent("nav")}
	if history != nil {
		history.Visit(n.URL())
	}
	return n
}

func (n *Navigator) Location() Location { return n.loc }
func (n *Navigator) Order() Order       { return n.loc.Order }
func (n *Navigator) Current() int64     { return n.loc.ID }

// HasOrder reports whether previous/next navigation is available.
func (n *Navigator) HasOrder() bool { return len(n.loc.Order) > 0 }

// URL returns the URL of the current location.
func (n *Navigator) URL() string { return BlockURL(n.loc.ID, n.loc.Context, n.loc.Order) }

// Offset navigates n places through the ordering. Without an ordering it
// does nothing and returns false.
func (n *Navigator) Offset(off int) bool {
	id, ok := n.loc.Order.Offset(n.loc.ID, off)
	if !ok {
		return false
	}
	n.Open(id)
	return true
}

func (n *Navigator) Previous() bool { return n.Offset(-1) }
func (n *Navigator) Next() bool     { return n.Offset(1) }

// Open navigates to id within the current ordering and context.
func (n *Navigator) Open(id int64) {
	n.loc.ID = id
	u := n.URL()
	if n.history != nil {
		n.history.Visit(u)
	}
	n.log.Debug("navigate", slog.Int64("id", id))
	n.visit(u)
}

// CloseURL is where closing the viewer leads: the article context, or the
// site root.
func (n *Navigator) CloseURL() string {
	if n.loc.Context != "" {
		return n.loc.Context
	}
	return "/"
}

// Close leaves the viewer.
func (n *Navigator) Close() {
	u := n.CloseURL()
	n.log.Debug("close", slog.String("to", u))
	n.visit(u)
}

// Back moves to the previously visited block, if any.
func (n *Navigator) Back() bool {
	if n.history == nil {
		return false
	}
	return n.travel(n.history.Back)
}

// Forward re-visits the block left with Back, if any.
func (n *Navigator) Forward() bool {
	if n.history == nil {
		return false
	}
	return n.travel(n.history.Forward)
}

func (n *Navigator) travel(step func() (string, bool)) bool {
	u, ok := step()
	if !ok {
		return false
	}
	loc, err := ParseBlockURL(u)
	if err != nil {
		n.log.Warn("history entry is not a block url", slog.String("url", u), slog.Any("err", err))
		return false
	}
	n.loc = loc
	n.visit(u)
	return true
}
