/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package hostcap registers reader capabilities with the hosting shell.
// Capabilities install hooks (tap handling, menu entries) and get a handle
// that restores the prior bindings on uninstall; bindings are captured
// explicitly, never patched in place.
package hostcap

import (
	"context"
	"log/slog"
	"sync"

	applog "gopanelreader/internal/log"
)

// TapHandler consumes a touch at x,y. Returning false passes the tap on to
// whatever the host does by default.
type TapHandler func(ctx context.Context, x, y int) bool

// MenuItem is one entry a capability contributes to the host menu.
type MenuItem struct {
	Label  string
	Action func(ctx context.Context)
}

// MenuProvider returns the capability's current menu entries.
type MenuProvider func() []MenuItem

// Hooks are the bindings a capability installs. Nil fields leave the
// existing binding in place.
type Hooks struct {
	Tap  TapHandler
	Menu MenuProvider
}

// Registry holds the active host bindings.
type Registry struct {
	mu    sync.Mutex
	tap   TapHandler
	menu  MenuProvider
	owner *Handle
	log   *slog.Logger
}

// Handle identifies one install and carries the bindings to restore.
type Handle struct {
	reg       *Registry
	prevTap   TapHandler
	prevMenu  MenuProvider
	prevOwner *Handle
	installed bool
}

// NewRegistry creates a registry with no bindings.
func NewRegistry() *Registry {
	return &Registry{log: applog.WithComponent("hostcap")}
}

// Install applies the non-nil hooks and returns a handle holding the
// complete prior state.
func (r *Registry) Install(h Hooks) *Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	hd := &Handle{
		reg:       r,
		prevTap:   r.tap,
		prevMenu:  r.menu,
		prevOwner: r.owner,
		installed: true,
	}
	if h.Tap != nil {
		r.tap = h.Tap
	}
	if h.Menu != nil {
		r.menu = h.Menu
	}
	r.owner = hd
	r.log.Debug("capability installed",
		slog.Bool("tap", h.Tap != nil), slog.Bool("menu", h.Menu != nil))
	return hd
}

// Uninstall restores the bindings captured at install time. Only the most
// recent install may uninstall; out-of-order calls are refused so they never
// clobber a later capability. Uninstalling twice is a no-op.
func (h *Handle) Uninstall() {
	r := h.reg
	r.mu.Lock()
	defer r.mu.Unlock()
	if !h.installed {
		return
	}
	h.installed = false
	if r.owner != h {
		r.log.Warn("out-of-order capability uninstall refused")
		return
	}
	r.tap = h.prevTap
	r.menu = h.prevMenu
	r.owner = h.prevOwner
	r.log.Debug("capability uninstalled")
}

// Tap dispatches a touch to the active handler; false when unbound or
// unconsumed.
func (r *Registry) Tap(ctx context.Context, x, y int) bool {
	r.mu.Lock()
	tap := r.tap
	r.mu.Unlock()
	if tap == nil {
		return false
	}
	return tap(ctx, x, y)
}

// MenuItems collects the active provider's entries, nil when unbound.
func (r *Registry) MenuItems() []MenuItem {
	r.mu.Lock()
	menu := r.menu
	r.mu.Unlock()
	if menu == nil {
		return nil
	}
	return menu()
}
