/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package viewport

import "blockviewer/internal/gesture"

// Icon names a directional affordance the renderer draws.
type Icon string

const (
	IconArrowLeft  Icon = "arrow-left"
	IconArrowRight Icon = "arrow-right"
	IconClose      Icon = "close"
)

// Icons are the icon slots of the four swipe indicators.
type Icons struct {
	Left, Right, Up, Down Icon
}

// DefaultIcons are used for every slot that is not overridden.
func DefaultIcons() Icons {
	return Icons{Left: IconArrowLeft, Right: IconArrowRight, Up: IconClose, Down: IconClose}
}

// Override returns i with every non-empty slot of o applied.
func (i Icons) Override(o Icons) Icons {
	if o.Left != "" {
		i.Left = o.Left
	}
	if o.Right != "" {
		i.Right = o.Right
	}
	if o.Up != "" {
		i.Up = o.Up
	}
	if o.Down != "" {
		i.Down = o.Down
	}
	return i
}

// For returns the icon of the indicator for d.
func (i Icons) For(d gesture.Direction) Icon {
	switch d {
	case gesture.DirLeft:
		return i.Left
	case gesture.DirRight:
		return i.Right
	case gesture.DirUp:
		return i.Up
	case gesture.DirDown:
		return i.Down
	}
	return ""
}
