/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package nav drives panel-by-panel reading: it owns the session state
// machine, panel index, page turns, preloading and the navigation history.
package nav

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gopanelreader/internal/domain"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/render"
	"gopanelreader/internal/sidecar"
	"gopanelreader/internal/telemetry"
)

// State is the session's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StateDisplaying
	StatePreloading
	StateSwitching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDisplaying:
		return "displaying"
	case StatePreloading:
		return "preloading"
	case StateSwitching:
		return "switching"
	}
	return "unknown"
}

const (
	// switchCooldown drops navigation events arriving hot on each other's
	// heels, matching the slowest e-ink refresh.
	switchCooldown = 300 * time.Millisecond
	// preloadDelay defers the next-panel render until the current one has
	// settled on screen.
	preloadDelay = 150 * time.Millisecond
	// settleDelay gives the host pager time to finish a page turn before
	// panels are re-resolved.
	settleDelay = 100 * time.Millisecond
)

// Pager turns pages in the hosting document view.
type Pager interface {
	TurnPage(ctx context.Context, delta int) error
}

// Display receives finished frames. Show transfers buffer ownership to the
// display; the display releases a frame when the next one supersedes it and
// on Close. All three methods run inside session transitions and must not
// call back into the session.
type Display interface {
	Show(r *render.Rendered)
	Close()
	Notify(msg string)
}

// preloaded is one panel rendered ahead of need.
type preloaded struct {
	page  int
	index int
	gen   uint64
	out   *render.Rendered
}

// Config assembles a session's collaborators.
type Config struct {
	Document string
	Store    *sidecar.Store
	Pipeline *render.Pipeline
	Pager    Pager
	Display  Display
	Screen   domain.ScreenDimensions
	OffsetX  int
	Render   render.Options
	// PageSources report the host's current page number; they are probed in
	// order and the first hit wins, with a final fallback of page 1.
	PageSources []func() (int, bool)
	History     HistoryConfig
}

// Session is the per-reading-session navigation state. All mutation happens
// under its mutex; timers re-enter through short locked continuations. Create
// a fresh session per document.
type Session struct {
	mu sync.Mutex

	doc      string
	store    *sidecar.Store
	pipeline *render.Pipeline
	pager    Pager
	display  Display
	screen   domain.ScreenDimensions
	offsetX  int
	render   render.Options
	sources  []func() (int, bool)
	hist     *History

	state      State
	page       int
	panels     domain.PanelList
	index      int
	direction  domain.ReadingDirection
	generation uint64
	switching  bool
	preload    *preloaded

	cancelSwitch  func()
	cancelPreload func()
	cancelSettle  func()

	// now and schedule are indirected so tests can drive time by hand.
	now      func() time.Time
	schedule func(d time.Duration, fn func()) func()

	log *slog.Logger
}

// NewSession builds an idle session; Enter starts panel mode.
func NewSession(cfg Config) *Session {
	return &Session{
		doc:       cfg.Document,
		store:     cfg.Store,
		pipeline:  cfg.Pipeline,
		pager:     cfg.Pager,
		display:   cfg.Display,
		screen:    cfg.Screen,
		offsetX:   cfg.OffsetX,
		render:    cfg.Render,
		sources:   cfg.PageSources,
		hist:      NewHistory(cfg.History),
		direction: domain.DirectionRTL,
		now:       time.Now,
		schedule: func(d time.Duration, fn func()) func() {
			t := time.AfterFunc(d, fn)
			return func() { t.Stop() }
		},
		log: applog.WithDocument(applog.WithComponent("nav"), cfg.Document),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.switching {
		return StateSwitching
	}
	return s.state
}

// Page reports the page the session is tracking.
func (s *Session) Page() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.page
}

// Index reports the 1-based panel index, 0 when the page has no panels.
func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// PanelCount reports how many panels the tracked page has.
func (s *Session) PanelCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.panels)
}

// Direction reports the document reading direction.
func (s *Session) Direction() domain.ReadingDirection {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.direction
}

// History exposes the session's back/forward stacks.
func (s *Session) History() *History {
	return s.hist
}

// Enter activates panel mode on the host's current page. Pages with panels
// start at panel 1; pages without fall back to the whole-page view.
func (s *Session) Enter(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetLocked()
	s.page = s.currentPageLocked()
	s.panels = s.store.Resolve(s.doc, s.page)
	s.direction = s.store.Direction(s.doc)
	s.log.Info("panel mode entered", slog.Int("page", s.page), slog.Int("panels", len(s.panels)))
	telemetry.Event(telemetry.EventPanelOpen, map[string]any{"page": s.page, "panels": len(s.panels)})
	if len(s.panels) == 0 {
		s.showWholePageLocked(ctx)
		return
	}
	s.showPanelLocked(ctx, 1)
}

// Next advances one panel, turning the page at the end. Events during the
// switch cooldown are dropped.
func (s *Session) Next(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || !s.beginSwitchLocked() {
		return
	}
	if s.index < len(s.panels) {
		prev := s.positionLocked()
		if s.showPanelLocked(ctx, s.index+1) {
			telemetry.Event(telemetry.EventPanelNext, map[string]any{"page": s.page, "panel": s.index})
			if prev.Panel > 0 {
				s.hist.Push(prev)
			}
		}
		return
	}
	s.turnLocked(ctx, 1)
}

// Prev steps back one panel; at the first panel it turns back and enters the
// previous page at its last panel.
func (s *Session) Prev(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || !s.beginSwitchLocked() {
		return
	}
	if s.index > 1 {
		prev := s.positionLocked()
		if s.showPanelLocked(ctx, s.index-1) && prev.Panel > 0 {
			s.hist.Push(prev)
		}
		return
	}
	s.turnLocked(ctx, -1)
}

// PageChanged tells the session the host turned the page on its own, dir
// being the turn direction. The session re-syncs after the settle delay;
// forward turns enter at the first panel, backward at the last.
func (s *Session) PageChanged(ctx context.Context, dir int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	s.generation++
	s.dropPreloadLocked()
	telemetry.Event(telemetry.EventPageTurn, map[string]any{"dir": dir})
	target := targetFirst
	if dir < 0 {
		target = targetLast
	}
	s.scheduleSettleLocked(ctx, target, false, s.pushFromLocked())
}

// JumpTo moves to a specific page and panel, turning pages through the host
// when needed. Used by bookmarks and progress restore.
func (s *Session) JumpTo(ctx context.Context, page, panel int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		return
	}
	s.jumpLocked(ctx, page, panel, true)
}

// Back returns to the previously shown position. The position being left
// becomes reachable again through Forward.
func (s *Session) Back(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || s.hist.Len() == 0 || !s.beginSwitchLocked() {
		return false
	}
	pos, ok := s.hist.StepBack(s.positionLocked())
	if !ok {
		return false
	}
	s.jumpLocked(ctx, pos.Page, pos.Panel, false)
	return true
}

// Forward re-applies a position undone by Back.
func (s *Session) Forward(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle || s.hist.ForwardLen() == 0 || !s.beginSwitchLocked() {
		return false
	}
	pos, ok := s.hist.StepForward(s.positionLocked())
	if !ok {
		return false
	}
	s.jumpLocked(ctx, pos.Page, pos.Panel, false)
	return true
}

// Shutdown leaves panel mode, releases the preloaded buffer and closes the
// display, which releases the displayed one. Idempotent.
func (s *Session) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasIdle := s.state == StateIdle
	s.resetLocked()
	s.state = StateIdle
	if !wasIdle {
		s.display.Close()
		s.log.Info("panel mode left")
		telemetry.Event(telemetry.EventViewerClose, nil)
	}
}

// resetLocked clears timers, preload and counters for a fresh start.
func (s *Session) resetLocked() {
	s.generation++
	if s.cancelSwitch != nil {
		s.cancelSwitch()
		s.cancelSwitch = nil
	}
	if s.cancelPreload != nil {
		s.cancelPreload()
		s.cancelPreload = nil
	}
	if s.cancelSettle != nil {
		s.cancelSettle()
		s.cancelSettle = nil
	}
	s.switching = false
	s.dropPreloadLocked()
	s.panels = nil
	s.index = 0
	s.page = 0
	s.hist.Clear()
}

// beginSwitchLocked gates navigation events: false while the cooldown runs.
func (s *Session) beginSwitchLocked() bool {
	if s.switching {
		s.log.Debug("event dropped during switch cooldown")
		return false
	}
	s.switching = true
	if s.cancelSwitch != nil {
		s.cancelSwitch()
	}
	s.cancelSwitch = s.schedule(switchCooldown, func() {
		s.mu.Lock()
		s.switching = false
		s.cancelSwitch = nil
		s.mu.Unlock()
	})
	return true
}

// currentPageLocked probes the page sources in order; first hit wins.
func (s *Session) currentPageLocked() int {
	for _, src := range s.sources {
		if src == nil {
			continue
		}
		if page, ok := src(); ok && page >= 1 {
			return page
		}
	}
	return 1
}

func (s *Session) positionLocked() Position {
	return Position{Page: s.page, Panel: s.index, TS: s.now()}
}

// pushFromLocked captures the position a settle continuation should record,
// nil when no panel is on display.
func (s *Session) pushFromLocked() *Position {
	if s.index == 0 {
		return nil
	}
	p := s.positionLocked()
	return &p
}

// jumpLocked moves to page/panel; record=false keeps history-driven jumps
// from feeding the history again.
func (s *Session) jumpLocked(ctx context.Context, page, panel int, record bool) {
	if page == s.page && len(s.panels) > 0 {
		prev := s.positionLocked()
		if s.showPanelLocked(ctx, clampIndex(panel, len(s.panels))) && record && prev.Panel > 0 {
			s.hist.Push(prev)
		}
		return
	}
	s.generation++
	s.dropPreloadLocked()
	if err := s.pager.TurnPage(ctx, page-s.page); err != nil {
		s.log.Warn("jump turn failed", slog.Int("page", page), slog.Any("err", err))
		return
	}
	var pushFrom *Position
	if record {
		pushFrom = s.pushFromLocked()
	}
	s.scheduleSettleLocked(ctx, panel, false, pushFrom)
}

// showPanelLocked renders (or adopts a preloaded frame for) panel idx of the
// tracked page and commits the move. A render failure leaves the previous
// display untouched and reports false.
func (s *Session) showPanelLocked(ctx context.Context, idx int) bool {
	if idx < 1 || idx > len(s.panels) {
		return false
	}
	var out *render.Rendered
	if pre := s.preload; pre != nil {
		s.preload = nil
		if pre.gen == s.generation && pre.page == s.page && pre.index == idx {
			out = pre.out
			telemetry.Event(telemetry.EventPreloadHit, map[string]any{"page": s.page, "panel": idx})
		} else {
			pre.out.Buffer.Release()
		}
	}
	if out == nil {
		var err error
		out, err = s.pipeline.RenderPanel(ctx, s.page, s.panels[idx-1], s.screen, s.offsetX, s.render)
		if err != nil {
			return false
		}
	}
	s.index = idx
	s.state = StateDisplaying
	s.display.Show(out)
	s.schedulePreloadLocked()
	return true
}

// showWholePageLocked displays the full page centered; used when a page has
// no panel data on explicit entry.
func (s *Session) showWholePageLocked(ctx context.Context) {
	out, err := s.pipeline.RenderPage(ctx, s.page, s.screen, s.render)
	if err != nil {
		return
	}
	s.index = 0
	s.state = StateDisplaying
	s.display.Show(out)
}

// Sentinel targets for settle continuations.
const (
	targetFirst = 0
	targetLast  = -1
)

// turnLocked asks the host for a page turn and schedules the re-sync.
func (s *Session) turnLocked(ctx context.Context, dir int) {
	s.generation++
	s.dropPreloadLocked()
	pushFrom := s.pushFromLocked()
	if err := s.pager.TurnPage(ctx, dir); err != nil {
		s.log.Warn("page turn failed", slog.Int("dir", dir), slog.Any("err", err))
		return
	}
	telemetry.Event(telemetry.EventPageTurn, map[string]any{"dir": dir})
	target := targetFirst
	if dir < 0 {
		target = targetLast
	}
	s.scheduleSettleLocked(ctx, target, true, pushFrom)
}

// scheduleSettleLocked re-resolves panels after the host pager settles.
// target selects the entry panel: targetFirst, targetLast or an explicit
// index. navTurn marks turns the session itself initiated; only those show
// the no-panels notice.
func (s *Session) scheduleSettleLocked(ctx context.Context, target int, navTurn bool, pushFrom *Position) {
	if s.cancelSettle != nil {
		s.cancelSettle()
	}
	gen := s.generation
	s.cancelSettle = s.schedule(settleDelay, func() {
		s.settle(ctx, gen, target, navTurn, pushFrom)
	})
}

func (s *Session) settle(ctx context.Context, gen uint64, target int, navTurn bool, pushFrom *Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.generation || s.state == StateIdle {
		return
	}
	s.cancelSettle = nil
	s.page = s.currentPageLocked()
	s.panels = s.store.Resolve(s.doc, s.page)
	s.index = 0
	s.log.Debug("page settled", slog.Int("page", s.page), slog.Int("panels", len(s.panels)))

	if len(s.panels) == 0 {
		s.state = StateIdle
		s.display.Close()
		if navTurn {
			s.display.Notify("no panels on this page")
		}
		return
	}

	var idx int
	switch target {
	case targetFirst:
		idx = 1
	case targetLast:
		idx = len(s.panels)
	default:
		idx = clampIndex(target, len(s.panels))
	}
	if s.showPanelLocked(ctx, idx) && pushFrom != nil {
		s.hist.Push(*pushFrom)
	}
}

// schedulePreloadLocked arms the next-panel preload. Preloading never crosses
// a page boundary; the page turn path re-resolves instead.
func (s *Session) schedulePreloadLocked() {
	if s.cancelPreload != nil {
		s.cancelPreload()
		s.cancelPreload = nil
	}
	next := s.index + 1
	if len(s.panels) == 0 || next > len(s.panels) {
		return
	}
	gen := s.generation
	page := s.page
	panel := s.panels[next-1]
	s.cancelPreload = s.schedule(preloadDelay, func() {
		s.runPreload(gen, page, next, panel)
	})
}

// runPreload renders outside the lock and commits the result only when still
// fresh; stale frames are released, not shown.
func (s *Session) runPreload(gen uint64, page, idx int, panel domain.PanelRect) {
	s.mu.Lock()
	if gen != s.generation {
		s.mu.Unlock()
		return
	}
	s.state = StatePreloading
	screen, offsetX, opts := s.screen, s.offsetX, s.render
	s.mu.Unlock()

	out, err := s.pipeline.RenderPanel(context.Background(), page, panel, screen, offsetX, opts)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StatePreloading {
		s.state = StateDisplaying
	}
	if err != nil {
		return
	}
	if gen != s.generation {
		out.Buffer.Release()
		return
	}
	s.dropPreloadLocked()
	s.preload = &preloaded{page: page, index: idx, gen: gen, out: out}
	s.log.Debug("panel preloaded", slog.Int("page", page), slog.Int("panel", idx))
}

func (s *Session) dropPreloadLocked() {
	if s.preload != nil {
		s.preload.out.Buffer.Release()
		s.preload = nil
	}
}

func clampIndex(idx, n int) int {
	if idx < 1 {
		return 1
	}
	if idx > n {
		return n
	}
	return idx
}
