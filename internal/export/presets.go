/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0
 */

package export

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/render"
	"gopanelreader/internal/sidecar"
)

// PresetName names a device profile: the screen panels are fitted to and the
// post-processing that device wants.
type PresetName string

const (
	PresetKindle     PresetName = "kindle"
	PresetKobo       PresetName = "kobo"
	PresetRemarkable PresetName = "remarkable"
	PresetTablet     PresetName = "tablet"
	PresetProof      PresetName = "proof"
)

// DefaultPreset is used whenever an exporter gets a zero screen.
const DefaultPreset = PresetKindle

// BatchOptions controls batch export across multiple formats.
//
// Path semantics:
//   - If OutDir is empty, outputs go under exports/<preset>/ in the working
//     directory.
//   - PDF/CBZ single-file outputs are named <stem>.pdf/cbz in subfolders pdf/
//     or cbz/ inside OutDir; overlay PNGs go to png/. The stem is the document
//     file name without extension.
type BatchOptions struct {
	Preset  PresetName
	Formats []string // allowed: pdf, cbz, png; empty means preset defaults
	Pages   []int    // 1-based page numbers; empty means all pages
	Screen  domain.ScreenDimensions // when both > 0, overrides the preset screen
	OffsetX int
	Render  *render.Options // when set, overrides the preset post-processing
	OutDir  string
}

// BatchExport runs the exports a preset calls for. docPath names the source
// document and only shapes output file names.
func BatchExport(ctx context.Context, ras render.Rasterizer, doc domain.PanelDocument, docPath string, opt BatchOptions) error {
	if ras == nil {
		return fmt.Errorf("rasterizer is nil")
	}

	formats := opt.Formats
	if len(formats) == 0 {
		formats = presetDefaultFormats(opt.Preset)
	}
	for i := range formats {
		formats[i] = strings.ToLower(strings.TrimSpace(formats[i]))
	}

	baseOut := opt.OutDir
	if baseOut == "" {
		baseOut = filepath.Join("exports", string(opt.Preset))
	}

	screen := opt.Screen
	if screen.W <= 0 || screen.H <= 0 {
		screen = PresetScreen(opt.Preset)
	}
	ropts := presetRender(opt.Preset)
	if opt.Render != nil {
		ropts = *opt.Render
	}

	stem := docStem(doc, docPath)
	for _, f := range formats {
		switch f {
		case "pdf":
			out := filepath.Join(baseOut, "pdf", stem+".pdf")
			po := PDFOptions{Screen: screen, OffsetX: opt.OffsetX, Render: ropts, Pages: opt.Pages}
			if err := ExportPDF(ctx, ras, doc, out, po); err != nil {
				return fmt.Errorf("pdf: %w", err)
			}
		case "cbz":
			out := filepath.Join(baseOut, "cbz", stem+".cbz")
			co := CBZOptions{Screen: screen, OffsetX: opt.OffsetX, Render: ropts, Pages: opt.Pages}
			if err := ExportCBZ(ctx, ras, doc, out, co); err != nil {
				return fmt.Errorf("cbz: %w", err)
			}
		case "png":
			outDir := filepath.Join(baseOut, "png")
			oo := OverlayOptions{Pages: opt.Pages}
			if err := ExportOverlayPNGs(ctx, ras, doc, outDir, oo); err != nil {
				return fmt.Errorf("png: %w", err)
			}
		default:
			return fmt.Errorf("unknown format: %s", f)
		}
	}
	return nil
}

// FlattenDocument resolves every page's panels through the store into the
// flat form the exporters consume. Sharded documents are walked page by page;
// total should be the rasterizer's page count and caps the walk.
func FlattenDocument(st *sidecar.Store, docPath string, total int) domain.PanelDocument {
	doc, _ := st.Document(docPath)
	if total <= 0 {
		total = st.PageCount(docPath)
	}
	flat := domain.PanelDocument{
		ArchiveName:      doc.ArchiveName,
		ReadingDirection: doc.ReadingDirection,
		TotalPages:       total,
	}
	for p := 1; p <= total; p++ {
		if panels := st.Resolve(docPath, p); len(panels) > 0 {
			flat.Pages = append(flat.Pages, domain.PageEntry{Page: p, Panels: panels})
		}
	}
	return flat
}

func docStem(doc domain.PanelDocument, docPath string) string {
	name := filepath.Base(docPath)
	if name == "" || name == "." {
		name = doc.ArchiveName
	}
	if name == "" {
		name = "document"
	}
	return strings.TrimSuffix(name, filepath.Ext(name))
}

// PresetScreen returns the device profile's screen in pixels.
func PresetScreen(p PresetName) domain.ScreenDimensions {
	switch p {
	case PresetKobo:
		return domain.ScreenDimensions{W: 1264, H: 1680}
	case PresetRemarkable:
		return domain.ScreenDimensions{W: 1404, H: 1872}
	case PresetTablet:
		return domain.ScreenDimensions{W: 1200, H: 1920}
	default:
		return domain.ScreenDimensions{W: 1072, H: 1448}
	}
}

// presetRender returns the post-processing a device profile wants. E-ink
// targets get grayscale with dithering, color targets pass through.
func presetRender(p PresetName) render.Options {
	switch p {
	case PresetTablet, PresetProof:
		return render.Options{}
	default:
		return render.Options{Grayscale: true, Dither: true}
	}
}

func presetDefaultFormats(p PresetName) []string {
	switch p {
	case PresetProof:
		return []string{"png"}
	case PresetTablet:
		return []string{"cbz"}
	default:
		return []string{"cbz", "pdf"}
	}
}
