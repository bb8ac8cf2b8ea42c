/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopanelreader/internal/config"
	"gopanelreader/internal/crash"
	"gopanelreader/internal/domain"
	"gopanelreader/internal/export"
	applog "gopanelreader/internal/log"
	"gopanelreader/internal/pageimage"
	"gopanelreader/internal/render"
	"gopanelreader/internal/sidecar"
	"gopanelreader/internal/storage"
	"gopanelreader/internal/syncsrv"
	"gopanelreader/internal/ui"
	"gopanelreader/internal/version"
)

func usage() {
	fmt.Println("Go Panel Reader — panel-by-panel comic reading")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gopanelreader version|-v|--version           Show version")
	fmt.Println("  gopanelreader inspect <doc>                  Show pages, sidecar and stored position")
	fmt.Println("  gopanelreader panels <doc> <page>            List a page's panels in reading order")
	fmt.Println("  gopanelreader validate <sidecar>             Check a sidecar against the schema")
	fmt.Println("  gopanelreader normalize <sidecar>            Rewrite a sidecar in canonical form")
	fmt.Println("  gopanelreader bookmark add <doc> <page> <panel> [note]")
	fmt.Println("                                               Save a reading position")
	fmt.Println("  gopanelreader bookmark list <doc>            List saved positions")
	fmt.Println("  gopanelreader bookmark rm <id>               Delete a saved position")
	fmt.Println("  gopanelreader render <doc> <page> <panel> [out.png] [WxH]")
	fmt.Println("                                               Render one panel frame to a PNG")
	fmt.Println("  gopanelreader cache stats                    Show render cache usage")
	fmt.Println("  gopanelreader cache clear <doc>              Drop cached frames for a document")
	fmt.Println("  gopanelreader export pdf|cbz|png <doc> [out] Export panel renditions")
	fmt.Println("  gopanelreader sync token <subject>           Request and store a sync token")
	fmt.Println("  gopanelreader sync push|pull <doc>           Sync the reading position")
	fmt.Println("  gopanelreader serve                          Run the progress sync service")
	fmt.Println("  gopanelreader ui [<doc>]                     Launch the desktop reader (build with -tags fyne)")
}

func main() {
	// initialize structured logging using environment defaults
	applog.Init(applog.FromEnv())
	l := applog.WithComponent("cli")
	var doc string
	defer func() { crash.Recover(doc, nil) }()

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) > 1 {
		switch args[1] {
		case "version", "--version", "-v":
			fmt.Println("Go Panel Reader — panel-by-panel comic reading")
			fmt.Println(version.String())
			return
		case "inspect":
			if len(args) < 3 {
				fmt.Println("inspect requires <doc>")
				usage()
				os.Exit(2)
			}
			doc = args[2]
			abs, _ := filepath.Abs(doc)
			l.Info("inspect", slog.String("doc", abs))
			src, err := pageimage.Open(abs)
			if err != nil {
				l.Error("open failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			defer src.Close()
			fmt.Println("Document:", abs)
			fmt.Println("Pages:", src.PageCount())
			st := sidecar.NewStore()
			sp := sidecar.SidecarPath(abs)
			if sdoc, ok := st.Document(abs); ok {
				fmt.Println("Sidecar:", sp)
				fmt.Println("Direction:", st.Direction(abs))
				if n := st.PageCount(abs); n > 0 {
					fmt.Println("Sidecar pages:", n)
				}
				if sdoc.ArchiveName != "" {
					fmt.Println("Archive:", sdoc.ArchiveName)
				}
				total := 0
				for p := 1; p <= src.PageCount(); p++ {
					total += len(st.Resolve(abs, p))
				}
				fmt.Println("Panels:", total)
			} else {
				fmt.Println("Sidecar: none (looked for " + sp + ")")
			}
			if digest, derr := storage.DocumentDigest(abs); derr == nil {
				fmt.Println("Digest:", digest)
				if dir, derr2 := storage.DataDir(); derr2 == nil {
					if cache, cerr := storage.Open(dir); cerr == nil {
						if prog, ok, _ := cache.GetProgress(context.Background(), digest); ok {
							fmt.Printf("Stored position: page %d, panel %d (%.0f%%)\n", prog.Page, prog.Panel, prog.Percentage*100)
						}
						_ = cache.Close()
					}
				}
			}
			return
		case "panels":
			if len(args) < 4 {
				fmt.Println("panels requires <doc> and <page>")
				usage()
				os.Exit(2)
			}
			doc = args[2]
			page, err := strconv.Atoi(args[3])
			if err != nil || page < 1 {
				fmt.Println("page must be a positive number")
				os.Exit(2)
			}
			abs, _ := filepath.Abs(doc)
			st := sidecar.NewStore()
			list := st.Resolve(abs, page)
			if len(list) == 0 {
				fmt.Printf("Page %d has no panels; the viewer shows the whole page.\n", page)
				return
			}
			fmt.Printf("Page %d: %d panel(s), direction %s\n", page, len(list), st.Direction(abs))
			for i, p := range list {
				fmt.Printf("  %2d: x=%.3f y=%.3f w=%.3f h=%.3f\n", i+1, p.X, p.Y, p.W, p.H)
			}
			return
		case "validate":
			if len(args) < 3 {
				fmt.Println("validate requires <sidecar>")
				usage()
				os.Exit(2)
			}
			violations, err := sidecar.ValidateFile(args[2])
			if err != nil {
				l.Error("validate failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			if len(violations) == 0 {
				fmt.Println("OK:", args[2])
				return
			}
			fmt.Printf("%d violation(s) in %s:\n", len(violations), args[2])
			for _, v := range violations {
				fmt.Println(" -", v)
			}
			os.Exit(1)
		case "normalize":
			if len(args) < 3 {
				fmt.Println("normalize requires <sidecar>")
				usage()
				os.Exit(2)
			}
			l.Info("normalize", slog.String("sidecar", args[2]))
			if err := sidecar.NormalizeFile(args[2]); err != nil {
				l.Error("normalize failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			fmt.Println("Normalized", args[2], "(previous file backed up)")
			return
		case "bookmark":
			if len(args) < 3 {
				fmt.Println("bookmark requires add, list or rm")
				usage()
				os.Exit(2)
			}
			if (args[2] == "add" || args[2] == "list") && len(args) >= 4 {
				doc = args[3]
			}
			if err := runBookmark(l, args[2:]); err != nil {
				l.Error("bookmark failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "render":
			if len(args) < 5 {
				fmt.Println("render requires <doc>, <page> and <panel>")
				usage()
				os.Exit(2)
			}
			doc = args[2]
			l.Info("render", slog.String("doc", doc), slog.String("page", args[3]), slog.String("panel", args[4]))
			if err := runRender(l, args[2:]); err != nil {
				l.Error("render failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "cache":
			if len(args) < 3 {
				fmt.Println("cache requires stats or clear")
				usage()
				os.Exit(2)
			}
			if args[2] == "clear" && len(args) >= 4 {
				doc = args[3]
			}
			if err := runCache(args[2:]); err != nil {
				l.Error("cache failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "export":
			if len(args) < 4 {
				fmt.Println("export requires a format (pdf, cbz or png) and <doc>")
				usage()
				os.Exit(2)
			}
			doc = args[3]
			out := ""
			if len(args) >= 5 {
				out = args[4]
			}
			l.Info("export", slog.String("format", args[2]), slog.String("doc", doc))
			if err := runExport(l, args[2], args[3], out); err != nil {
				l.Error("export failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "sync":
			if len(args) < 3 {
				fmt.Println("sync requires token, push or pull")
				usage()
				os.Exit(2)
			}
			if (args[2] == "push" || args[2] == "pull") && len(args) >= 4 {
				doc = args[3]
			}
			if err := runSync(l, args[2:]); err != nil {
				l.Error("sync failed", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "serve":
			l.Info("starting sync service")
			if err := syncsrv.Start(); err != nil {
				l.Error("sync service exited", slog.Any("err", err))
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		case "ui":
			if len(args) >= 3 {
				doc = args[2]
			}
			if err := ui.Run(doc); err != nil {
				fmt.Println("Error:", err)
				os.Exit(1)
			}
			return
		}
	}

	usage()
}

// runRender writes one panel frame as a PNG. args is <doc> <page> <panel>
// plus an optional output path and an optional WxH screen override.
func runRender(l *slog.Logger, args []string) error {
	docPath, _ := filepath.Abs(args[0])
	page, err := strconv.Atoi(args[1])
	if err != nil || page < 1 {
		return fmt.Errorf("page must be a positive number")
	}
	idx, err := strconv.Atoi(args[2])
	if err != nil || idx < 1 {
		return fmt.Errorf("panel must be a positive number")
	}
	outPath := fmt.Sprintf("panel-%d-%d.png", page, idx)
	screen := export.PresetScreen(export.DefaultPreset)
	for _, a := range args[3:] {
		if w, h, ok := parseScreenArg(a); ok {
			screen = domain.ScreenDimensions{W: w, H: h}
			continue
		}
		outPath = a
	}

	cfg, _, cfgErr := config.Load()
	if cfgErr != nil {
		l.Warn("config load failed, continuing with defaults", slog.Any("err", cfgErr))
	}

	src, err := pageimage.Open(docPath)
	if err != nil {
		return err
	}
	defer src.Close()
	if page > src.PageCount() {
		return fmt.Errorf("document has only %d page(s)", src.PageCount())
	}

	st := sidecar.NewStore()
	list := st.Resolve(docPath, page)
	if len(list) == 0 {
		return fmt.Errorf("page %d has no panels", page)
	}
	if idx > len(list) {
		return fmt.Errorf("page %d has only %d panel(s)", page, len(list))
	}

	opts := render.Options{
		Contrast:  cfg.Render.Contrast,
		Invert:    cfg.Render.Invert,
		Gamma:     cfg.Render.Gamma,
		Grayscale: cfg.Render.Grayscale,
		Dither:    cfg.Render.EffectiveDither(),
	}
	pipe := render.NewPipeline(src)
	ctx := applog.ContextWithDocument(context.Background(), docPath)
	off := cfg.Reader.EffectiveOffsetX()

	var placement domain.ScreenPlacement
	renderFrame := func(ctx context.Context) ([]byte, error) {
		out, err := pipe.RenderPanel(ctx, page, list[idx-1], screen, off, opts)
		if err != nil {
			return nil, err
		}
		defer out.Buffer.Release()
		placement = out.Placement
		var buf bytes.Buffer
		if err := png.Encode(&buf, out.Buffer.ToImage()); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	key := storage.RenderKey{
		Page:  page,
		Panel: idx,
		W:     screen.W,
		H:     screen.H,
		Opts:  renderKeyOpts(list[idx-1], off, opts),
	}
	blob, cached, err := cachedFrame(ctx, l, docPath, key, renderFrame)
	if err != nil {
		return err
	}
	if err := os.WriteFile(outPath, blob, 0o644); err != nil {
		return err
	}
	if cached {
		fmt.Printf("Wrote %s from the render cache (%d bytes)\n", outPath, len(blob))
		return nil
	}
	fmt.Printf("Wrote %s (%dx%d placed at %d,%d on a %dx%d screen)\n",
		outPath, placement.W, placement.H, placement.X, placement.Y, screen.W, screen.H)
	return nil
}

// renderKeyOpts folds everything besides the screen that changes the frame
// into the cache key: the panel rect, the horizontal nudge and the tone
// options.
func renderKeyOpts(p domain.PanelRect, offsetX int, o render.Options) string {
	return fmt.Sprintf("r=%.4f:%.4f:%.4f:%.4f ox=%d c=%.2f i=%t g=%.2f rot=%d gs=%t d=%t",
		p.X, p.Y, p.W, p.H, offsetX, o.Contrast, o.Invert, o.Gamma, o.Rotation, o.Grayscale, o.Dither)
}

// cachedFrame looks the key up in the local render cache before falling back
// to gen, storing fresh frames for the next run. Cache trouble never fails
// the render; the frame is just produced directly.
func cachedFrame(ctx context.Context, l *slog.Logger, docPath string, key storage.RenderKey, gen func(context.Context) ([]byte, error)) ([]byte, bool, error) {
	if digest, err := storage.DocumentDigest(docPath); err == nil {
		key.Document = digest
		if dir, derr := storage.DataDir(); derr == nil {
			if cache, cerr := storage.Open(dir); cerr == nil {
				defer func() { _ = cache.Close() }()
				if blob, gerr := cache.GetRender(ctx, key); gerr == nil && blob != nil {
					return blob, true, nil
				}
				blob, err := gen(ctx)
				if err != nil {
					return nil, false, err
				}
				if perr := cache.PutRender(ctx, key, blob); perr != nil {
					l.Warn("render cache store failed", slog.Any("err", perr))
				}
				return blob, false, nil
			}
		}
	}
	blob, err := gen(ctx)
	return blob, false, err
}

func parseScreenArg(s string) (int, int, bool) {
	a, b, found := strings.Cut(strings.ToLower(s), "x")
	if !found {
		return 0, 0, false
	}
	w, werr := strconv.Atoi(a)
	h, herr := strconv.Atoi(b)
	if werr != nil || herr != nil || w <= 0 || h <= 0 {
		return 0, 0, false
	}
	return w, h, true
}

// runExport writes a whole-document rendition. The zero screen makes the
// exporters fall back to the default device preset.
func runExport(l *slog.Logger, format, docArg, outArg string) error {
	docPath, _ := filepath.Abs(docArg)
	src, err := pageimage.Open(docPath)
	if err != nil {
		return err
	}
	defer src.Close()

	st := sidecar.NewStore()
	fdoc := export.FlattenDocument(st, docPath, src.PageCount())

	cfg, _, cfgErr := config.Load()
	if cfgErr != nil {
		l.Warn("config load failed, continuing with defaults", slog.Any("err", cfgErr))
	}
	opts := render.Options{
		Contrast:  cfg.Render.Contrast,
		Invert:    cfg.Render.Invert,
		Gamma:     cfg.Render.Gamma,
		Grayscale: cfg.Render.Grayscale,
		Dither:    cfg.Render.EffectiveDither(),
	}
	off := cfg.Reader.EffectiveOffsetX()

	stem := strings.TrimSuffix(filepath.Base(docPath), filepath.Ext(docPath))
	ctx := applog.ContextWithDocument(context.Background(), docPath)
	switch format {
	case "pdf":
		out := outArg
		if out == "" {
			out = stem + ".pdf"
		}
		if err := export.ExportPDF(ctx, src, fdoc, out, export.PDFOptions{OffsetX: off, Render: opts, Title: stem}); err != nil {
			return err
		}
		fmt.Println("Wrote", out)
	case "cbz":
		out := outArg
		if out == "" {
			// never collide with the source archive
			out = stem + "-panels.cbz"
		}
		if err := export.ExportCBZ(ctx, src, fdoc, out, export.CBZOptions{OffsetX: off, Render: opts, Title: stem}); err != nil {
			return err
		}
		fmt.Println("Wrote", out)
	case "png":
		out := outArg
		if out == "" {
			out = stem + "-overlays"
		}
		if err := export.ExportOverlayPNGs(ctx, src, fdoc, out, export.OverlayOptions{}); err != nil {
			return err
		}
		fmt.Println("Wrote overlays to", out)
	default:
		return fmt.Errorf("unknown export format %q (want pdf, cbz or png)", format)
	}
	return nil
}

// runSync talks to the progress sync service. args is the subcommand plus its
// arguments: token <subject>, push <doc> or pull <doc>.
func runSync(l *slog.Logger, args []string) error {
	cfg, token, cfgErr := config.Load()
	if cfgErr != nil {
		l.Warn("config load failed, continuing with defaults", slog.Any("err", cfgErr))
	}
	switch args[0] {
	case "token":
		if len(args) < 2 {
			return fmt.Errorf("sync token requires <subject>")
		}
		c := syncsrv.NewClient(cfg.Sync, "")
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.Timeout())
		defer cancel()
		tok, err := c.RequestToken(ctx, args[1], 0)
		if err != nil {
			return err
		}
		if err := config.Save(cfg, tok.Token); err != nil {
			return fmt.Errorf("store token: %w", err)
		}
		fmt.Println("Token stored; expires", tok.ExpiresAt)
		return nil
	case "push", "pull":
		if len(args) < 2 {
			return fmt.Errorf("sync %s requires <doc>", args[0])
		}
		if token == "" {
			return fmt.Errorf("no sync token stored; run: gopanelreader sync token <subject>")
		}
		docPath, _ := filepath.Abs(args[1])
		digest, err := storage.DocumentDigest(docPath)
		if err != nil {
			return err
		}
		dir, err := storage.DataDir()
		if err != nil {
			return err
		}
		cache, err := storage.Open(dir)
		if err != nil {
			return err
		}
		defer cache.Close()
		c := syncsrv.NewClient(cfg.Sync, token)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Sync.Timeout())
		defer cancel()

		if args[0] == "push" {
			local, ok, err := cache.GetProgress(ctx, digest)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no local position for %s", docPath)
			}
			dev := local.Device
			if dev == "" {
				dev = cfg.Sync.EffectiveDevice()
			}
			win, err := c.Push(ctx, syncsrv.ProgressRecord{
				Document:   digest,
				Page:       local.Page,
				Panel:      local.Panel,
				Percentage: local.Percentage,
				Device:     dev,
				UpdatedAt:  local.UpdatedAt,
			})
			if err != nil {
				return err
			}
			if win.UpdatedAt.After(local.UpdatedAt) {
				if err := cache.SetProgress(ctx, storage.Progress{
					Document:   digest,
					Page:       win.Page,
					Panel:      win.Panel,
					Percentage: win.Percentage,
					Device:     win.Device,
					UpdatedAt:  win.UpdatedAt,
				}); err != nil {
					return err
				}
				fmt.Printf("Server had a newer position from %s; local updated to page %d, panel %d\n", win.Device, win.Page, win.Panel)
				return nil
			}
			fmt.Printf("Pushed page %d, panel %d\n", win.Page, win.Panel)
			return nil
		}

		rec, found, err := c.Pull(ctx, digest)
		if err != nil {
			return err
		}
		if !found {
			fmt.Println("No server position for this document yet.")
			return nil
		}
		if err := cache.SetProgress(ctx, storage.Progress{
			Document:   digest,
			Page:       rec.Page,
			Panel:      rec.Panel,
			Percentage: rec.Percentage,
			Device:     rec.Device,
			UpdatedAt:  rec.UpdatedAt,
		}); err != nil {
			return err
		}
		fmt.Printf("Pulled page %d, panel %d (from %s)\n", rec.Page, rec.Panel, rec.Device)
		return nil
	}
	return fmt.Errorf("unknown sync command %q (want token, push or pull)", args[0])
}

// maxBookmarks bounds how many saved positions one document keeps.
const maxBookmarks = 50

// runBookmark manages saved positions in the local cache. args is the
// subcommand plus its arguments: add <doc> <page> <panel> [note], list <doc>
// or rm <id>. Positions are keyed by content digest, not path.
func runBookmark(l *slog.Logger, args []string) error {
	dir, err := storage.DataDir()
	if err != nil {
		return err
	}
	cache, err := storage.Open(dir)
	if err != nil {
		return err
	}
	defer cache.Close()
	ctx := context.Background()

	switch args[0] {
	case "add":
		if len(args) < 4 {
			return fmt.Errorf("bookmark add requires <doc>, <page> and <panel>")
		}
		page, err := strconv.Atoi(args[2])
		if err != nil || page < 1 {
			return fmt.Errorf("page must be a positive number")
		}
		panel, err := strconv.Atoi(args[3])
		if err != nil || panel < 0 {
			return fmt.Errorf("panel must be 0 (whole page) or a panel number")
		}
		docPath, _ := filepath.Abs(args[1])
		digest, err := storage.DocumentDigest(docPath)
		if err != nil {
			return err
		}
		note := strings.Join(args[4:], " ")
		id, err := cache.AddBookmark(ctx, storage.Bookmark{Document: digest, Page: page, Panel: panel, Note: note})
		if err != nil {
			return err
		}
		if _, err := cache.PruneBookmarks(ctx, digest, maxBookmarks); err != nil {
			l.Warn("bookmark prune failed", slog.Any("err", err))
		}
		fmt.Printf("Saved bookmark %d at page %d, panel %d\n", id, page, panel)
		return nil
	case "list":
		if len(args) < 2 {
			return fmt.Errorf("bookmark list requires <doc>")
		}
		docPath, _ := filepath.Abs(args[1])
		digest, err := storage.DocumentDigest(docPath)
		if err != nil {
			return err
		}
		marks, err := cache.ListBookmarks(ctx, digest, maxBookmarks)
		if err != nil {
			return err
		}
		if len(marks) == 0 {
			fmt.Println("No bookmarks for this document yet.")
			return nil
		}
		for _, b := range marks {
			pos := fmt.Sprintf("page %d, panel %d", b.Page, b.Panel)
			if b.Panel == 0 {
				pos = fmt.Sprintf("page %d", b.Page)
			}
			line := fmt.Sprintf("  %4d: %s (%s)", b.ID, pos, b.CreatedAt.Local().Format("2006-01-02 15:04"))
			if b.Note != "" {
				line += "  " + b.Note
			}
			fmt.Println(line)
		}
		return nil
	case "rm":
		if len(args) < 2 {
			return fmt.Errorf("bookmark rm requires <id>")
		}
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || id < 1 {
			return fmt.Errorf("id must be a positive number")
		}
		if err := cache.DeleteBookmark(ctx, id); err != nil {
			return err
		}
		fmt.Println("Deleted bookmark", id)
		return nil
	}
	return fmt.Errorf("unknown bookmark command %q (want add, list or rm)", args[0])
}

// runCache reports or trims the local render cache. args is stats, or clear
// plus a document path.
func runCache(args []string) error {
	dir, err := storage.DataDir()
	if err != nil {
		return err
	}
	cache, err := storage.Open(dir)
	if err != nil {
		return err
	}
	defer cache.Close()
	ctx := context.Background()

	switch args[0] {
	case "stats":
		total, err := cache.TotalRenderBytes(ctx)
		if err != nil {
			return err
		}
		capBytes := storage.MaxRenderBytesFromEnv()
		fmt.Printf("Render cache: %.1f MB used of %.1f MB (%s)\n",
			float64(total)/(1024*1024), float64(capBytes)/(1024*1024), dir)
		return nil
	case "clear":
		if len(args) < 2 {
			return fmt.Errorf("cache clear requires <doc>")
		}
		docPath, _ := filepath.Abs(args[1])
		digest, err := storage.DocumentDigest(docPath)
		if err != nil {
			return err
		}
		n, err := cache.InvalidateRenders(ctx, digest)
		if err != nil {
			return err
		}
		fmt.Printf("Dropped %d cached frame(s)\n", n)
		return nil
	}
	return fmt.Errorf("unknown cache command %q (want stats or clear)", args[0])
}
