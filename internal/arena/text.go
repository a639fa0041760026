/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package arena

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// block-level elements that start a new paragraph in the plain text
var paragraphTags = map[string]bool{
	"p": true, "div": true, "li": true, "blockquote": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

// Description renders DescriptionHTML as plain text for the side panel.
// Paragraphs are separated by a blank line, <br> becomes a newline and
// runs of whitespace collapse. Markup that fails to parse yields "".
func (b *Block) Description() string {
	if b == nil || strings.TrimSpace(b.DescriptionHTML) == "" {
		return ""
	}
	root, err := html.Parse(strings.NewReader(b.DescriptionHTML))
	if err != nil {
		return ""
	}
	var paras []string
	var cur []byte
	flush := func() {
		if s := strings.TrimSpace(string(cur)); s != "" {
			paras = append(paras, s)
		}
		cur = cur[:0]
	}
	space := func() {
		if n := len(cur); n > 0 && cur[n-1] != ' ' && cur[n-1] != '\n' {
			cur = append(cur, ' ')
		}
	}
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				if n.Data != "" {
					space()
				}
				return
			}
			if strings.TrimLeftFunc(n.Data, unicode.IsSpace) != n.Data {
				space()
			}
			cur = append(cur, strings.Join(words, " ")...)
			if strings.TrimRightFunc(n.Data, unicode.IsSpace) != n.Data {
				space()
			}
			return
		case html.ElementNode:
			switch n.Data {
			case "script", "style":
				return
			case "br":
				cur = append(cur, '\n')
				return
			}
		}
		block := n.Type == html.ElementNode && paragraphTags[n.Data]
		if block {
			flush()
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if block {
			flush()
		}
	}
	walk(root)
	flush()
	for i, p := range paras {
		lines := strings.Split(p, "\n")
		for j := range lines {
			lines[j] = strings.TrimSpace(lines[j])
		}
		paras[i] = strings.Join(lines, "\n")
	}
	return strings.Join(paras, "\n\n")
}
