/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package nav

import (
	"sync"
	"time"
)

// Position is one visited reading position.
type Position struct {
	Page  int
	Panel int
	TS    time.Time
}

// HistoryConfig bounds the navigation history.
type HistoryConfig struct {
	// MaxDepth caps retained positions per stack (0 = default 64).
	MaxDepth int
	// MinInterval coalesces positions recorded faster than this
	// (0 = default 250ms).
	MinInterval time.Duration
}

const (
	defaultHistoryDepth    = 64
	defaultHistoryInterval = 250 * time.Millisecond
)

func (c HistoryConfig) normalized() HistoryConfig {
	if c.MaxDepth <= 0 {
		c.MaxDepth = defaultHistoryDepth
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaultHistoryInterval
	}
	return c
}

// History keeps back and forward stacks of visited positions. Rapid
// successive pushes coalesce into one entry so panel-stepping bursts do not
// flood the stack.
type History struct {
	mu      sync.Mutex
	cfg     HistoryConfig
	back    []Position
	forward []Position
}

// NewHistory creates an empty history with cfg's limits.
func NewHistory(cfg HistoryConfig) *History {
	return &History{cfg: cfg.normalized()}
}

// Push records a position being left. Any push invalidates the forward
// stack. A push within MinInterval of the previous one replaces it.
func (h *History) Push(pos Position) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.forward = h.forward[:0]
	if n := len(h.back); n > 0 {
		dt := pos.TS.Sub(h.back[n-1].TS)
		if dt >= 0 && dt < h.cfg.MinInterval {
			h.back[n-1] = pos
			return
		}
	}
	h.back = append(h.back, pos)
	if len(h.back) > h.cfg.MaxDepth {
		h.back = h.back[len(h.back)-h.cfg.MaxDepth:]
	}
}

// StepBack pops the most recent position, moving cur onto the forward stack.
func (h *History) StepBack(cur Position) (Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.back)
	if n == 0 {
		return Position{}, false
	}
	pos := h.back[n-1]
	h.back = h.back[:n-1]
	h.forward = append(h.forward, cur)
	if len(h.forward) > h.cfg.MaxDepth {
		h.forward = h.forward[len(h.forward)-h.cfg.MaxDepth:]
	}
	return pos, true
}

// StepForward pops the most recently undone position, moving cur back onto
// the back stack.
func (h *History) StepForward(cur Position) (Position, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	n := len(h.forward)
	if n == 0 {
		return Position{}, false
	}
	pos := h.forward[n-1]
	h.forward = h.forward[:n-1]
	h.back = append(h.back, cur)
	if len(h.back) > h.cfg.MaxDepth {
		h.back = h.back[len(h.back)-h.cfg.MaxDepth:]
	}
	return pos, true
}

// Len reports the back stack depth.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.back)
}

// ForwardLen reports the forward stack depth.
func (h *History) ForwardLen() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.forward)
}

// Clear drops both stacks.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.back = nil
	h.forward = nil
}
