//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/driver/desktop"
	fstorage "fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"

	"gopanelreader/internal/config"
	"gopanelreader/internal/crash"
	"gopanelreader/internal/domain"
	"gopanelreader/internal/export"
	"gopanelreader/internal/hostcap"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/nav"
	"gopanelreader/internal/pageimage"
	"gopanelreader/internal/pixbuf"
	"gopanelreader/internal/render"
	"gopanelreader/internal/sidecar"
	"gopanelreader/internal/storage"
	"gopanelreader/internal/version"
	"gopanelreader/internal/viewer"
)

// Run starts the Fyne-based desktop reading shell. docPath optionally names a
// document (CBZ, image directory or single image) to open immediately.
func Run(docPath string) error {
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("ui")
	l.Info("starting reader shell")

	cfg, _, err := config.Load()
	if err != nil {
		l.Warn("config load failed, continuing with defaults", slog.Any("err", err))
	}

	// Reading state shared between the Fyne thread and session goroutines.
	var (
		mu         sync.Mutex
		src        *pageimage.Source
		pipe       *render.Pipeline
		session    *nav.Session
		capHandle  *hostcap.Handle
		currentDoc string
		docDigest  string
		page       int
		direction  = domain.DirectionRTL
		offsetX    = cfg.Reader.EffectiveOffsetX()
	)
	renderOpts := render.Options{
		Contrast:  cfg.Render.Contrast,
		Invert:    cfg.Render.Invert,
		Gamma:     cfg.Render.Gamma,
		Grayscale: cfg.Render.Grayscale,
		Dither:    cfg.Render.EffectiveDither(),
	}

	var saveProgress func() error
	defer func() { crash.Recover(currentDoc, saveProgress) }()

	fyneApp := app.NewWithID("gopanelreader")
	w := fyneApp.NewWindow("Go Panel Reader")
	// Restore window size from preferences (with sane minimums)
	prefs := fyneApp.Preferences()
	winW := prefs.IntWithFallback("window.width", 760)
	winH := prefs.IntWithFallback("window.height", 1000)
	if winW < 480 {
		winW = 480
	}
	if winH < 640 {
		winH = 640
	}
	w.Resize(fyne.NewSize(float32(winW), float32(winH)))

	// Frames are rendered for the window size at startup; after a resize the
	// canvas scales them to fit.
	screen := domain.ScreenDimensions{W: winW, H: winH}

	status := widget.NewLabel("No document open. File → Open Document…")
	pc := NewPanelCanvas(screen)
	surface := &canvasSurface{pc: pc, status: status}
	view := viewer.New(surface, screen)

	reg := hostcap.NewRegistry()
	store := sidecar.NewStore()
	panelsMenu := fyne.NewMenu("Panels")

	// Local progress cache; the reader works without it.
	var cache *storage.Cache
	if dir, derr := storage.DataDir(); derr == nil {
		if c, cerr := storage.Open(dir); cerr == nil {
			cache = c
		} else {
			l.Warn("progress cache unavailable", slog.Any("err", cerr))
		}
	} else {
		l.Warn("no data dir for progress cache", slog.Any("err", derr))
	}

	docCtx := func() context.Context {
		mu.Lock()
		doc := currentDoc
		mu.Unlock()
		if doc == "" {
			return context.Background()
		}
		return applog.ContextWithDocument(context.Background(), doc)
	}

	// updateStatus runs on the Fyne thread. Session state is read after the
	// shared lock is dropped so the lock order stays session before shell.
	updateStatus := func() {
		mu.Lock()
		doc := currentDoc
		s := session
		pg := page
		total := 0
		if src != nil {
			total = src.PageCount()
		}
		mu.Unlock()
		if doc == "" {
			status.SetText("No document open. File → Open Document…")
			return
		}
		name := filepath.Base(doc)
		if s != nil && view.IsOpen() {
			status.SetText(fmt.Sprintf("%s — page %d/%d, panel %d/%d", name, s.Page(), total, s.Index(), s.PanelCount()))
			return
		}
		status.SetText(fmt.Sprintf("%s — page %d/%d", name, pg, total))
	}

	refreshPanelsMenu := func() {
		entries := reg.MenuItems()
		items := make([]*fyne.MenuItem, 0, len(entries))
		for _, e := range entries {
			action := e.Action
			items = append(items, fyne.NewMenuItem(e.Label, func() {
				if action == nil {
					return
				}
				go action(docCtx())
			}))
		}
		if len(items) == 0 {
			none := fyne.NewMenuItem("No document open", func() {})
			none.Disabled = true
			items = append(items, none)
		}
		panelsMenu.Items = items
		panelsMenu.Refresh()
	}
	surface.onPainted = func() {
		updateStatus()
		refreshPanelsMenu()
	}

	// showHostPage paints the whole current page. This is the host's own view,
	// shown whenever the panel viewer is closed; it renders through the
	// pipeline but never touches the session.
	showHostPage := func(ctx context.Context) {
		mu.Lock()
		p := pipe
		pg := page
		mu.Unlock()
		if p == nil {
			return
		}
		out, rerr := p.RenderPage(ctx, pg, screen, renderOpts)
		if rerr != nil {
			l.Warn("page paint failed", slog.Int("page", pg), slog.Any("err", rerr))
			return
		}
		img := out.Buffer.ToImage()
		out.Buffer.Release()
		pl := out.Placement
		fyne.Do(func() {
			pc.SetFrame(img, pl)
			updateStatus()
			refreshPanelsMenu()
		})
	}
	view.SetOnClose(func() { go showHostPage(docCtx()) })

	hostPageSource := func() (int, bool) {
		mu.Lock()
		defer mu.Unlock()
		if src == nil {
			return 0, false
		}
		return page, true
	}

	turnHostPage := func(ctx context.Context, delta int) error {
		mu.Lock()
		if src == nil {
			mu.Unlock()
			return errors.New("no document open")
		}
		next := page + delta
		if next < 1 {
			mu.Unlock()
			return errors.New("already at the first page")
		}
		if next > src.PageCount() {
			mu.Unlock()
			return errors.New("already at the last page")
		}
		page = next
		mu.Unlock()
		if !view.IsOpen() {
			go showHostPage(ctx)
		}
		return nil
	}

	saveProgress = func() error {
		mu.Lock()
		s := session
		digest := docDigest
		pg := page
		total := 0
		if src != nil {
			total = src.PageCount()
		}
		mu.Unlock()
		if cache == nil || digest == "" {
			return nil
		}
		panel := 0
		if s != nil && s.State() != nav.StateIdle {
			pg = s.Page()
			panel = s.Index()
		}
		if pg < 1 {
			return nil
		}
		pct := 0.0
		if total > 0 {
			pct = float64(pg) / float64(total)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		return cache.SetProgress(ctx, storage.Progress{
			Document:   digest,
			Page:       pg,
			Panel:      panel,
			Percentage: pct,
			Device:     cfg.Sync.EffectiveDevice(),
		})
	}

	buildSession := func() {
		mu.Lock()
		doc := currentDoc
		p := pipe
		off := offsetX
		mu.Unlock()
		if p == nil {
			return
		}
		s := nav.NewSession(nav.Config{
			Document:    doc,
			Store:       store,
			Pipeline:    p,
			Pager:       pagerFunc(turnHostPage),
			Display:     view,
			Screen:      screen,
			OffsetX:     off,
			Render:      renderOpts,
			PageSources: []func() (int, bool){hostPageSource},
		})
		mu.Lock()
		session = s
		mu.Unlock()
		view.SetNavigator(s)
	}

	enterPanelMode := func(ctx context.Context) {
		mu.Lock()
		s := session
		mu.Unlock()
		if s == nil {
			return
		}
		s.Enter(ctx)
	}
	leavePanelMode := func() {
		mu.Lock()
		s := session
		mu.Unlock()
		if s == nil {
			return
		}
		s.Shutdown()
	}
	sessionBack := func(ctx context.Context) {
		mu.Lock()
		s := session
		mu.Unlock()
		if s == nil {
			return
		}
		if !s.Back(ctx) {
			surface.Notify("nothing to go back to")
		}
	}
	sessionForward := func(ctx context.Context) {
		mu.Lock()
		s := session
		mu.Unlock()
		if s == nil {
			return
		}
		if !s.Forward(ctx) {
			surface.Notify("nothing to go forward to")
		}
	}

	// rebuildSession replaces the session, e.g. after an offset change, and
	// restores the reading position in the new one.
	rebuildSession := func() {
		mu.Lock()
		s := session
		mu.Unlock()
		if s == nil {
			return
		}
		active := s.State() != nav.StateIdle
		pg, idx := s.Page(), s.Index()
		s.Shutdown()
		buildSession()
		ctx := docCtx()
		if !active {
			showHostPage(ctx)
			return
		}
		mu.Lock()
		ns := session
		mu.Unlock()
		if ns == nil {
			return
		}
		ns.Enter(ctx)
		if idx > 1 {
			ns.JumpTo(ctx, pg, idx)
		}
	}

	// hostTurn flips the host page directly, used while the viewer is closed
	// or for explicit page keys. An active session re-syncs via PageChanged.
	hostTurn := func(ctx context.Context, dir int) {
		if terr := turnHostPage(ctx, dir); terr != nil {
			surface.Notify(terr.Error())
			return
		}
		mu.Lock()
		s := session
		mu.Unlock()
		if s != nil {
			s.PageChanged(ctx, dir)
		}
	}

	// stepSide maps a left/right input (side -1 or 1) the same way the tap
	// bands do: the spine side goes forward.
	stepSide := func(ctx context.Context, side int) {
		mu.Lock()
		s := session
		rtl := direction == domain.DirectionRTL
		mu.Unlock()
		if s == nil {
			return
		}
		forward := (side < 0 && rtl) || (side > 0 && !rtl)
		if view.IsOpen() {
			if forward {
				s.Next(ctx)
			} else {
				s.Prev(ctx)
			}
			return
		}
		if forward {
			hostTurn(ctx, 1)
		} else {
			hostTurn(ctx, -1)
		}
	}

	tapCapability := func(ctx context.Context, x, y int) bool {
		if !view.IsOpen() {
			return false
		}
		view.Tap(ctx, x, y)
		return true
	}
	menuCapability := func() []hostcap.MenuItem {
		if view.IsOpen() {
			return []hostcap.MenuItem{
				{Label: "Leave panel mode", Action: func(context.Context) { leavePanelMode() }},
				{Label: "Back", Action: sessionBack},
				{Label: "Forward", Action: sessionForward},
			}
		}
		return []hostcap.MenuItem{
			{Label: "Enter panel mode", Action: enterPanelMode},
		}
	}

	closeDocument := func() {
		if serr := saveProgress(); serr != nil {
			l.Warn("progress save failed", slog.Any("err", serr))
		}
		mu.Lock()
		s := session
		handle := capHandle
		closer := src
		doc := currentDoc
		session = nil
		capHandle = nil
		src = nil
		pipe = nil
		currentDoc = ""
		docDigest = ""
		page = 0
		mu.Unlock()
		if s != nil {
			s.Shutdown()
		}
		if handle != nil {
			handle.Uninstall()
		}
		if closer != nil {
			if cerr := closer.Close(); cerr != nil {
				l.Warn("document close failed", slog.Any("err", cerr))
			}
		}
		if doc != "" {
			l.Info("document closed", slog.String("doc", doc))
		}
		pc.ClearFrame()
	}

	// restorePosition re-opens the document where it was left, entering panel
	// mode when the stored position points at a panel.
	restorePosition := func(ctx context.Context) {
		mu.Lock()
		digest := docDigest
		total := 0
		if src != nil {
			total = src.PageCount()
		}
		mu.Unlock()
		pg, panel := 0, 0
		if cache != nil && digest != "" {
			cctx, cancel := context.WithTimeout(ctx, 3*time.Second)
			prog, ok, perr := cache.GetProgress(cctx, digest)
			cancel()
			if perr != nil {
				l.Warn("progress lookup failed", slog.Any("err", perr))
			} else if ok && prog.Page >= 1 && prog.Page <= total {
				pg, panel = prog.Page, prog.Panel
			}
		}
		if pg > 0 {
			mu.Lock()
			page = pg
			mu.Unlock()
		}
		showHostPage(ctx)
		if pg > 0 && panel > 0 {
			mu.Lock()
			s := session
			mu.Unlock()
			if s != nil {
				s.Enter(ctx)
				if panel > 1 {
					s.JumpTo(ctx, pg, panel)
				}
			}
		}
	}

	var refreshRecentMenu func()
	var refreshBookmarksMenu func()

	openDocument := func(path string) error {
		closeDocument()
		s, oerr := pageimage.Open(path)
		if oerr != nil {
			return oerr
		}
		digest := ""
		if d, derr := storage.DocumentDigest(path); derr == nil {
			digest = d
		} else {
			l.Warn("document digest unavailable", slog.Any("err", derr))
		}
		l.Info("document opened", slog.String("doc", path), slog.Int("pages", s.PageCount()))

		dir := cfg.Reader.EffectiveDirection(store.Direction(path))
		mu.Lock()
		src = s
		pipe = render.NewPipeline(s)
		currentDoc = path
		docDigest = digest
		page = 1
		direction = dir
		mu.Unlock()
		view.SetDirection(dir)

		buildSession()
		handle := reg.Install(hostcap.Hooks{Tap: tapCapability, Menu: menuCapability})
		mu.Lock()
		capHandle = handle
		mu.Unlock()

		w.SetTitle(fmt.Sprintf("Go Panel Reader — %s", filepath.Base(path)))
		addRecentDocument(prefs, path)
		refreshRecentMenu()
		refreshBookmarksMenu()
		refreshPanelsMenu()
		go restorePosition(docCtx())
		return nil
	}

	recentMenu := fyne.NewMenu("")
	recentItem := fyne.NewMenuItem("Open Recent", nil)
	recentItem.ChildMenu = recentMenu
	refreshRecentMenu = func() {
		docs := loadRecentDocuments(prefs)
		items := make([]*fyne.MenuItem, 0, len(docs))
		for _, d := range docs {
			path := d
			items = append(items, fyne.NewMenuItem(filepath.Base(path), func() {
				l.Info("menu: open recent", slog.String("doc", path))
				if oerr := openDocument(path); oerr != nil {
					dialog.ShowError(oerr, w)
				}
			}))
		}
		if len(items) == 0 {
			none := fyne.NewMenuItem("Nothing recent", func() {})
			none.Disabled = true
			items = append(items, none)
		}
		recentMenu.Items = items
		recentMenu.Refresh()
	}
	refreshRecentMenu()

	// Bookmarks live in the progress cache and jump like a restored position.
	jumpToBookmark := func(ctx context.Context, pg, panel int) {
		mu.Lock()
		s := session
		total := 0
		if src != nil {
			total = src.PageCount()
		}
		mu.Unlock()
		if total == 0 {
			return
		}
		if pg < 1 || pg > total {
			surface.Notify("bookmark is past the end of the document")
			return
		}
		mu.Lock()
		page = pg
		mu.Unlock()
		if panel < 1 {
			if view.IsOpen() {
				leavePanelMode()
				return
			}
			showHostPage(ctx)
			return
		}
		if s == nil {
			return
		}
		if view.IsOpen() {
			s.JumpTo(ctx, pg, panel)
			return
		}
		showHostPage(ctx)
		s.Enter(ctx)
		if panel > 1 {
			s.JumpTo(ctx, pg, panel)
		}
	}

	addBookmark := func() {
		mu.Lock()
		s := session
		digest := docDigest
		doc := currentDoc
		pg := page
		mu.Unlock()
		if doc == "" {
			surface.Notify("no document open")
			return
		}
		if cache == nil || digest == "" {
			surface.Notify("bookmarks need the local cache")
			return
		}
		panel := 0
		if s != nil && s.State() != nav.StateIdle {
			pg = s.Page()
			panel = s.Index()
		}
		if pg < 1 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if _, aerr := cache.AddBookmark(ctx, storage.Bookmark{Document: digest, Page: pg, Panel: panel}); aerr != nil {
			l.Warn("bookmark save failed", slog.Any("err", aerr))
			surface.Notify("could not save the bookmark")
			return
		}
		if _, perr := cache.PruneBookmarks(ctx, digest, maxBookmarks); perr != nil {
			l.Warn("bookmark prune failed", slog.Any("err", perr))
		}
		if panel > 0 {
			surface.Notify(fmt.Sprintf("bookmarked page %d, panel %d", pg, panel))
		} else {
			surface.Notify(fmt.Sprintf("bookmarked page %d", pg))
		}
		refreshBookmarksMenu()
	}

	bookmarksMenu := fyne.NewMenu("")
	bookmarksItem := fyne.NewMenuItem("Bookmarks", nil)
	bookmarksItem.ChildMenu = bookmarksMenu
	refreshBookmarksMenu = func() {
		mu.Lock()
		digest := docDigest
		mu.Unlock()
		go func() {
			var marks []storage.Bookmark
			if cache != nil && digest != "" {
				ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
				list, lerr := cache.ListBookmarks(ctx, digest, maxBookmarks)
				cancel()
				if lerr != nil {
					l.Warn("bookmark list failed", slog.Any("err", lerr))
				} else {
					marks = list
				}
			}
			fyne.Do(func() {
				items := make([]*fyne.MenuItem, 0, len(marks))
				for _, b := range marks {
					mark := b
					label := fmt.Sprintf("Page %d, panel %d", mark.Page, mark.Panel)
					if mark.Panel == 0 {
						label = fmt.Sprintf("Page %d", mark.Page)
					}
					if mark.Note != "" {
						label += " — " + mark.Note
					}
					items = append(items, fyne.NewMenuItem(label, func() {
						l.Info("menu: jump to bookmark", slog.Int("page", mark.Page), slog.Int("panel", mark.Panel))
						go jumpToBookmark(docCtx(), mark.Page, mark.Panel)
					}))
				}
				if len(items) == 0 {
					none := fyne.NewMenuItem("No bookmarks yet", func() {})
					none.Disabled = true
					items = append(items, none)
				}
				bookmarksMenu.Items = items
				bookmarksMenu.Refresh()
			})
		}()
	}
	refreshBookmarksMenu()

	showOpenDialog := func() {
		open := dialog.NewFileOpen(func(ur fyne.URIReadCloser, derr error) {
			if derr != nil {
				dialog.ShowError(derr, w)
				return
			}
			if ur == nil {
				return
			}
			path := ur.URI().Path()
			_ = ur.Close()
			if oerr := openDocument(path); oerr != nil {
				dialog.ShowError(oerr, w)
			}
		}, w)
		open.SetFilter(fstorage.NewExtensionFileFilter([]string{".cbz", ".zip", ".png", ".jpg", ".jpeg"}))
		open.Show()
	}
	showOpenFolderDialog := func() {
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, derr error) {
			if derr != nil {
				dialog.ShowError(derr, w)
				return
			}
			if uri == nil {
				return
			}
			if oerr := openDocument(uri.Path()); oerr != nil {
				dialog.ShowError(oerr, w)
			}
		}, w)
		fd.Show()
	}

	pc.SetOnTap(func(x, y int) {
		go func() {
			ctx := docCtx()
			if reg.Tap(ctx, x, y) {
				return
			}
			// Default host behavior: a tap on the page view enters panel mode.
			enterPanelMode(ctx)
		}()
	})

	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		name := ev.Name
		go func() {
			ctx := docCtx()
			switch name {
			case fyne.KeyRight:
				stepSide(ctx, 1)
			case fyne.KeyLeft:
				stepSide(ctx, -1)
			case fyne.KeySpace:
				mu.Lock()
				s := session
				mu.Unlock()
				if s == nil {
					return
				}
				if view.IsOpen() {
					s.Next(ctx)
				} else {
					enterPanelMode(ctx)
				}
			case fyne.KeyReturn, fyne.KeyEnter:
				if !view.IsOpen() {
					enterPanelMode(ctx)
				}
			case fyne.KeyEscape:
				leavePanelMode()
			case fyne.KeyBackspace:
				sessionBack(ctx)
			case fyne.KeyPageDown:
				hostTurn(ctx, 1)
			case fyne.KeyPageUp:
				hostTurn(ctx, -1)
			}
		}()
	})

	// Shortcut: open a document with Ctrl+O
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyO, Modifier: fyne.KeyModifierControl}, func(fyne.Shortcut) {
		showOpenDialog()
	})

	// File menu
	openItem := fyne.NewMenuItem("Open Document…", func() {
		l.Info("menu: open document")
		showOpenDialog()
	})
	openFolderItem := fyne.NewMenuItem("Open Folder…", func() {
		l.Info("menu: open folder")
		showOpenFolderDialog()
	})
	closeDocItem := fyne.NewMenuItem("Close Document", func() {
		l.Info("menu: close document")
		closeDocument()
		w.SetTitle("Go Panel Reader")
		updateStatus()
		refreshPanelsMenu()
		refreshBookmarksMenu()
	})
	fileMenu := fyne.NewMenu("File", openItem, openFolderItem, recentItem, fyne.NewMenuItemSeparator(), closeDocItem)

	// Reading menu
	enterItem := fyne.NewMenuItem("Enter Panel Mode", func() {
		l.Info("menu: enter panel mode")
		go enterPanelMode(docCtx())
	})
	leaveItem := fyne.NewMenuItem("Leave Panel Mode", func() {
		l.Info("menu: leave panel mode")
		go leavePanelMode()
	})
	backItem := fyne.NewMenuItem("Back", func() {
		l.Info("menu: back")
		go sessionBack(docCtx())
	})
	forwardItem := fyne.NewMenuItem("Forward", func() {
		l.Info("menu: forward")
		go sessionForward(docCtx())
	})

	setDirection := func(mode string) {
		cfg.Reader.Direction = mode
		mu.Lock()
		doc := currentDoc
		mu.Unlock()
		base := domain.DirectionRTL
		if doc != "" {
			base = store.Direction(doc)
		}
		d := cfg.Reader.EffectiveDirection(base)
		mu.Lock()
		direction = d
		mu.Unlock()
		view.SetDirection(d)
		if serr := config.Save(cfg, ""); serr != nil {
			l.Warn("config save failed", slog.Any("err", serr))
		}
		status.SetText(fmt.Sprintf("Reading direction: %s", d))
	}
	dirAutoItem := fyne.NewMenuItem("Direction: Auto", func() {
		l.Info("menu: direction auto")
		setDirection("auto")
	})
	dirLTRItem := fyne.NewMenuItem("Direction: Left to Right", func() {
		l.Info("menu: direction ltr")
		setDirection("ltr")
	})
	dirRTLItem := fyne.NewMenuItem("Direction: Right to Left", func() {
		l.Info("menu: direction rtl")
		setDirection("rtl")
	})

	applyNudge := func(delta int, reset bool) {
		mu.Lock()
		if reset {
			offsetX = cfg.Reader.EffectiveOffsetX()
		} else {
			offsetX += delta
		}
		off := offsetX
		mu.Unlock()
		status.SetText(fmt.Sprintf("Panel nudge: %d px", off))
		go rebuildSession()
	}
	nudgeLeftItem := fyne.NewMenuItem("Nudge Panels Left", func() {
		l.Info("menu: nudge left")
		applyNudge(-1, false)
	})
	nudgeRightItem := fyne.NewMenuItem("Nudge Panels Right", func() {
		l.Info("menu: nudge right")
		applyNudge(1, false)
	})
	nudgeResetItem := fyne.NewMenuItem("Reset Nudge", func() {
		l.Info("menu: nudge reset")
		applyNudge(0, true)
	})
	addBookmarkItem := fyne.NewMenuItem("Add Bookmark", func() {
		l.Info("menu: add bookmark")
		go addBookmark()
	})
	readingMenu := fyne.NewMenu("Reading",
		enterItem, leaveItem, backItem, forwardItem,
		fyne.NewMenuItemSeparator(),
		addBookmarkItem, bookmarksItem,
		fyne.NewMenuItemSeparator(),
		dirAutoItem, dirLTRItem, dirRTLItem,
		fyne.NewMenuItemSeparator(),
		nudgeLeftItem, nudgeRightItem, nudgeResetItem)

	// Export menu
	exportSnapshot := func() (domain.PanelDocument, render.Rasterizer, string, int, bool) {
		mu.Lock()
		doc := currentDoc
		s := src
		off := offsetX
		mu.Unlock()
		if s == nil {
			return domain.PanelDocument{}, nil, "", 0, false
		}
		return export.FlattenDocument(store, doc, s.PageCount()), s, doc, off, true
	}
	exportPDFItem := fyne.NewMenuItem("Export Panels as PDF…", func() {
		l.Info("menu: export pdf")
		fdoc, ras, doc, off, ok := exportSnapshot()
		if !ok {
			dialog.ShowInformation("Export PDF", "No document open.", w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, derr error) {
			if derr != nil {
				dialog.ShowError(derr, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			status.SetText("Exporting PDF…")
			go func() {
				eerr := export.ExportPDF(docCtx(), ras, fdoc, outPath, export.PDFOptions{
					Screen:  screen,
					OffsetX: off,
					Render:  renderOpts,
				})
				fyne.Do(func() {
					if eerr != nil {
						dialog.ShowError(eerr, w)
						status.SetText("Export failed.")
						return
					}
					dialog.ShowInformation("Export PDF", "Exported to "+outPath, w)
					updateStatus()
				})
			}()
		}, w)
		save.SetFileName(docStemName(doc) + ".pdf")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".pdf"}))
		save.Show()
	})
	exportCBZItem := fyne.NewMenuItem("Export Panels as CBZ…", func() {
		l.Info("menu: export cbz")
		fdoc, ras, doc, off, ok := exportSnapshot()
		if !ok {
			dialog.ShowInformation("Export CBZ", "No document open.", w)
			return
		}
		save := dialog.NewFileSave(func(uc fyne.URIWriteCloser, derr error) {
			if derr != nil {
				dialog.ShowError(derr, w)
				return
			}
			if uc == nil {
				return
			}
			outPath := uc.URI().Path()
			_ = uc.Close()
			status.SetText("Exporting CBZ…")
			go func() {
				eerr := export.ExportCBZ(docCtx(), ras, fdoc, outPath, export.CBZOptions{
					Screen:  screen,
					OffsetX: off,
					Render:  renderOpts,
				})
				fyne.Do(func() {
					if eerr != nil {
						dialog.ShowError(eerr, w)
						status.SetText("Export failed.")
						return
					}
					dialog.ShowInformation("Export CBZ", "Exported to "+outPath, w)
					updateStatus()
				})
			}()
		}, w)
		save.SetFileName(docStemName(doc) + ".cbz")
		save.SetFilter(fstorage.NewExtensionFileFilter([]string{".cbz"}))
		save.Show()
	})
	exportOverlayItem := fyne.NewMenuItem("Export Crop Overlays…", func() {
		l.Info("menu: export overlays")
		fdoc, ras, _, _, ok := exportSnapshot()
		if !ok {
			dialog.ShowInformation("Export Overlays", "No document open.", w)
			return
		}
		fd := dialog.NewFolderOpen(func(uri fyne.ListableURI, derr error) {
			if derr != nil {
				dialog.ShowError(derr, w)
				return
			}
			if uri == nil {
				return
			}
			outDir := uri.Path()
			status.SetText("Exporting overlays…")
			go func() {
				eerr := export.ExportOverlayPNGs(docCtx(), ras, fdoc, outDir, export.OverlayOptions{})
				fyne.Do(func() {
					if eerr != nil {
						dialog.ShowError(eerr, w)
						status.SetText("Export failed.")
						return
					}
					dialog.ShowInformation("Export Overlays", "Exported pages to "+outDir, w)
					updateStatus()
				})
			}()
		}, w)
		fd.Show()
	})

	runBatchExport := func(preset export.PresetName) {
		l.Info("menu: batch export", slog.String("preset", string(preset)))
		fdoc, ras, doc, _, ok := exportSnapshot()
		if !ok {
			dialog.ShowInformation("Batch Export", "No document open.", w)
			return
		}
		outDir := filepath.Join(filepath.Dir(doc), "exports", string(preset))
		status.SetText(fmt.Sprintf("Exporting for %s…", preset))
		go func() {
			eerr := export.BatchExport(docCtx(), ras, fdoc, doc, export.BatchOptions{
				Preset: preset,
				OutDir: outDir,
			})
			fyne.Do(func() {
				if eerr != nil {
					dialog.ShowError(eerr, w)
					status.SetText("Export failed.")
					return
				}
				dialog.ShowInformation("Batch Export", "Exported to "+outDir, w)
				updateStatus()
			})
		}()
	}
	presets := []export.PresetName{export.PresetKindle, export.PresetKobo, export.PresetRemarkable, export.PresetTablet, export.PresetProof}
	batchItems := make([]*fyne.MenuItem, 0, len(presets))
	for _, preset := range presets {
		p := preset
		batchItems = append(batchItems, fyne.NewMenuItem(string(p), func() { runBatchExport(p) }))
	}
	batchItem := fyne.NewMenuItem("Batch Export for Device", nil)
	batchItem.ChildMenu = fyne.NewMenu("", batchItems...)
	exportMenu := fyne.NewMenu("Export", exportPDFItem, exportCBZItem, exportOverlayItem, fyne.NewMenuItemSeparator(), batchItem)

	// About menu
	aboutItem := fyne.NewMenuItem("About…", func() {
		l.Info("menu: about")
		exe, _ := os.Executable()
		cwd, _ := os.Getwd()
		info := fmt.Sprintf("Go Panel Reader\nVersion: %s\nOS: %s\nArch: %s\nGo: %s\nExecutable: %s\nWorking Dir: %s",
			version.String(), runtime.GOOS, runtime.GOARCH, runtime.Version(), exe, cwd)
		dialog.ShowInformation("About", info, w)
	})
	copyrightItem := fyne.NewMenuItem("Copyright…", func() {
		l.Info("menu: copyright")
		currentYear := time.Now().Year()
		msg := fmt.Sprintf("Go Panel Reader\nCopyright © 2025-%d The Go Panel Reader Authors\n\nLicensed under the Apache License, Version 2.0.\nSee the LICENSE file for details.", currentYear)
		dialog.ShowInformation("Copyright", msg, w)
	})
	aboutMenu := fyne.NewMenu("About", aboutItem, copyrightItem)

	w.SetMainMenu(fyne.NewMainMenu(fileMenu, readingMenu, panelsMenu, exportMenu, aboutMenu))
	w.SetContent(container.NewBorder(nil, status, nil, nil, pc))

	// Persist preferences and the reading position on close
	w.SetCloseIntercept(func() {
		sz := w.Canvas().Size()
		prefs.SetInt("window.width", int(sz.Width))
		prefs.SetInt("window.height", int(sz.Height))
		if serr := saveProgress(); serr != nil {
			l.Warn("progress save failed", slog.Any("err", serr))
		}
		w.Close()
	})

	// Try to open a document if provided
	if docPath != "" {
		if oerr := openDocument(docPath); oerr != nil {
			l.Error("auto-open failed", slog.String("doc", docPath), slog.Any("err", oerr))
			status.SetText("Could not open " + filepath.Base(docPath))
		}
	}

	w.ShowAndRun()

	closeDocument()
	if cache != nil {
		if cerr := cache.Close(); cerr != nil {
			l.Warn("progress cache close failed", slog.Any("err", cerr))
		}
	}
	return nil
}

// pagerFunc adapts a function to the session's Pager.
type pagerFunc func(ctx context.Context, delta int) error

func (f pagerFunc) TurnPage(ctx context.Context, delta int) error { return f(ctx, delta) }

// canvasSurface bridges the panel canvas and status bar to the viewer's
// Surface. Its methods are called from session goroutines, so every widget
// touch is marshalled through fyne.Do. Paint snapshots the buffer before
// returning, per the Surface contract.
type canvasSurface struct {
	pc        *PanelCanvas
	status    *widget.Label
	onPainted func() // runs on the Fyne thread after a frame lands or clears
}

func (s *canvasSurface) Paint(img *pixbuf.Buffer, pl domain.ScreenPlacement) {
	snapshot := img.ToImage()
	fyne.Do(func() {
		s.pc.SetFrame(snapshot, pl)
		if s.onPainted != nil {
			s.onPainted()
		}
	})
}

func (s *canvasSurface) Clear() {
	fyne.Do(func() {
		s.pc.ClearFrame()
		if s.onPainted != nil {
			s.onPainted()
		}
	})
}

func (s *canvasSurface) Notify(msg string) {
	fyne.Do(func() { s.status.SetText(msg) })
}

// docStemName returns the document file name without its extension.
func docStemName(doc string) string {
	base := filepath.Base(doc)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// PanelCanvas shows rendered frames inside a letterboxed device screen area.
// Frames arrive in screen coordinates; the canvas scales the screen area to
// fit the widget and maps taps back into screen space. Frame mutations must
// run on the Fyne thread.
type PanelCanvas struct {
	widget.BaseWidget
	screen domain.ScreenDimensions

	frame     image.Image
	placement domain.ScreenPlacement
	onTap     func(x, y int)
}

func NewPanelCanvas(screen domain.ScreenDimensions) *PanelCanvas {
	pc := &PanelCanvas{screen: screen}
	pc.ExtendBaseWidget(pc)
	return pc
}

// SetOnTap registers the screen-space tap callback.
func (p *PanelCanvas) SetOnTap(fn func(x, y int)) { p.onTap = fn }

// SetFrame adopts a finished frame at its placement.
func (p *PanelCanvas) SetFrame(img image.Image, pl domain.ScreenPlacement) {
	p.frame = img
	p.placement = pl
	p.Refresh()
}

// ClearFrame blanks the screen area.
func (p *PanelCanvas) ClearFrame() {
	p.frame = nil
	p.placement = domain.ScreenPlacement{}
	p.Refresh()
}

// fitScreen centers the device screen in the available space, scaled to fit.
func fitScreen(screen domain.ScreenDimensions, size fyne.Size) (cx, cy, scale float32) {
	sw := float32(screen.W)
	sh := float32(screen.H)
	if sw <= 0 || sh <= 0 || size.Width <= 0 || size.Height <= 0 {
		return 0, 0, 1
	}
	scale = size.Width / sw
	if s := size.Height / sh; s < scale {
		scale = s
	}
	cx = size.Width/2 - sw*scale/2
	cy = size.Height/2 - sh*scale/2
	return cx, cy, scale
}

func (p *PanelCanvas) screenOriginAndScale() (cx, cy, scale float32) {
	return fitScreen(p.screen, p.Size())
}

// toScreenSpace maps a widget position into screen pixels; ok is false for
// positions on the letterbox bars.
func (p *PanelCanvas) toScreenSpace(pos fyne.Position) (x, y int, ok bool) {
	cx, cy, scale := p.screenOriginAndScale()
	if scale <= 0 {
		return 0, 0, false
	}
	fx := (pos.X - cx) / scale
	fy := (pos.Y - cy) / scale
	x = int(fx)
	y = int(fy)
	if fx < 0 || fy < 0 || x >= p.screen.W || y >= p.screen.H {
		return 0, 0, false
	}
	return x, y, true
}

// Tapped forwards the tap in screen coordinates.
func (p *PanelCanvas) Tapped(e *fyne.PointEvent) {
	if p.onTap == nil {
		return
	}
	if x, y, ok := p.toScreenSpace(e.Position); ok {
		p.onTap(x, y)
	}
}

// PreferredSize is half the device screen, enough to judge panel fit.
func (p *PanelCanvas) PreferredSize() fyne.Size {
	return fyne.NewSize(float32(p.screen.W)/2, float32(p.screen.H)/2)
}

// CreateRenderer builds the backdrop, the screen area and the frame image.
func (p *PanelCanvas) CreateRenderer() fyne.WidgetRenderer {
	bg := canvas.NewRectangle(color.RGBA{R: 24, G: 24, B: 27, A: 255})

	device := canvas.NewRectangle(color.Black)
	device.StrokeColor = color.RGBA{R: 70, G: 70, B: 74, A: 255}
	device.StrokeWidth = 1

	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillStretch
	img.ScaleMode = canvas.ImageScaleSmooth
	img.Hide()

	return &panelCanvasRenderer{
		pc:      p,
		objects: []fyne.CanvasObject{bg, device, img},
		bg:      bg,
		device:  device,
		img:     img,
	}
}

// panelCanvasRenderer lays the screen area and frame out for the current size.
type panelCanvasRenderer struct {
	pc      *PanelCanvas
	objects []fyne.CanvasObject
	bg      *canvas.Rectangle
	device  *canvas.Rectangle
	img     *canvas.Image
}

func (r *panelCanvasRenderer) Destroy()                     {}
func (r *panelCanvasRenderer) Objects() []fyne.CanvasObject { return r.objects }
func (r *panelCanvasRenderer) MinSize() fyne.Size           { return r.pc.PreferredSize() }
func (r *panelCanvasRenderer) Refresh()                     { r.Layout(r.pc.Size()); canvas.Refresh(r.pc) }

func (r *panelCanvasRenderer) Layout(size fyne.Size) {
	r.bg.Resize(size)
	r.bg.Move(fyne.NewPos(0, 0))

	cx, cy, scale := fitScreen(r.pc.screen, size)
	r.device.Resize(fyne.NewSize(float32(r.pc.screen.W)*scale, float32(r.pc.screen.H)*scale))
	r.device.Move(fyne.NewPos(cx, cy))

	if r.pc.frame == nil {
		r.img.Hide()
		return
	}
	pl := r.pc.placement
	r.img.Image = r.pc.frame
	r.img.Show()
	r.img.Resize(fyne.NewSize(float32(pl.W)*scale, float32(pl.H)*scale))
	r.img.Move(fyne.NewPos(cx+float32(pl.X)*scale, cy+float32(pl.Y)*scale))
	r.img.Refresh()
}

// Recent document persistence helpers
const recentPrefsKey = "recent.documents"
const recentMax = 10

// maxBookmarks bounds how many saved positions one document keeps.
const maxBookmarks = 50

func loadRecentDocuments(p fyne.Preferences) []string {
	raw := p.StringWithFallback(recentPrefsKey, "")
	var items []string
	if strings.TrimSpace(raw) != "" {
		var tmp []string
		if err := json.Unmarshal([]byte(raw), &tmp); err == nil {
			items = tmp
		}
	}
	if items == nil {
		items = []string{}
	}
	// Filter out non-existing paths
	out := make([]string, 0, len(items))
	for _, s := range items {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, err := os.Stat(s); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func saveRecentDocuments(p fyne.Preferences, items []string) {
	if len(items) > recentMax {
		items = items[:recentMax]
	}
	b, _ := json.Marshal(items)
	p.SetString(recentPrefsKey, string(b))
}

func addRecentDocument(p fyne.Preferences, path string) {
	if strings.TrimSpace(path) == "" {
		return
	}
	abs, _ := filepath.Abs(path)
	rec := loadRecentDocuments(p)
	out := make([]string, 0, 1+len(rec))
	out = append(out, abs)
	for _, s := range rec {
		// de-dup (case-insensitive on Windows)
		if strings.EqualFold(s, abs) {
			continue
		}
		out = append(out, s)
	}
	saveRecentDocuments(p, out)
}
