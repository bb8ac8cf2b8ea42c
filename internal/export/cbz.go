/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"gopanelreader/internal/domain"
	"gopanelreader/internal/render"
)

// CBZOptions controls CBZ export behavior.
// Every panel becomes one archive entry, PNG encoded at the size the screen
// preset fits it to, named with zero-padded sequence numbers so readers sort
// them correctly. A ComicInfo.xml manifest carries series, title, frame count
// and the reading direction.
type CBZOptions struct {
	Screen  domain.ScreenDimensions // fitting target; zero value means the default preset screen
	OffsetX int
	Render  render.Options
	Series  string
	Title   string
	Pages   []int // 1-based page numbers; if empty, export all pages
}

// ExportCBZ packages the document's panels as a CBZ (ZIP) archive at outPath.
func ExportCBZ(ctx context.Context, ras render.Rasterizer, doc domain.PanelDocument, outPath string, opt CBZOptions) error {
	if ras == nil {
		return fmt.Errorf("rasterizer is nil")
	}
	screen := opt.Screen
	if screen.W <= 0 || screen.H <= 0 {
		screen = PresetScreen(DefaultPreset)
	}
	if !strings.HasSuffix(strings.ToLower(outPath), ".cbz") {
		outPath = outPath + ".cbz"
	}

	pipe := render.NewPipeline(ras)
	total := pageCount(doc, ras)
	pages := pageNumbers(total, opt.Pages)

	// Zero padding width based on the expected frame count
	expected := 0
	for _, page := range pages {
		if page < 1 || (total > 0 && page > total) {
			continue
		}
		if entry, ok := doc.PageByNumber(page); ok && len(entry.Panels) > 0 {
			expected += len(entry.Panels)
		} else {
			expected++
		}
	}
	pad := 3
	if n := expected; n >= 1000 {
		pad = 4
	} else if n >= 100 {
		pad = 3
	} else if n >= 10 {
		pad = 2
	} else {
		pad = 1
	}

	zw, f, err := createZip(outPath)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	frame := 0
	imgBuf := &bytes.Buffer{}
	for _, page := range pages {
		if page < 1 || (total > 0 && page > total) {
			continue
		}
		frames, err := renderPageFrames(ctx, pipe, doc, page, screen, opt.OffsetX, opt.Render)
		if err != nil {
			return fmt.Errorf("page %d: %w", page, err)
		}
		for i, fr := range frames {
			frame++
			imgBuf.Reset()
			encErr := png.Encode(imgBuf, fr.Buffer)
			fr.Buffer.Release()
			if encErr != nil {
				releaseFrames(frames[i+1:])
				return fmt.Errorf("encode page %d frame: %w", page, encErr)
			}
			name := fmt.Sprintf("%0*d.png", pad, frame)
			if err := addZipFile(zw, name, imgBuf.Bytes()); err != nil {
				releaseFrames(frames[i+1:])
				return fmt.Errorf("zip add frame: %w", err)
			}
		}
	}
	if frame == 0 {
		return fmt.Errorf("no pages to export")
	}

	manifest, merr := buildComicInfoXML(doc, opt.Series, opt.Title, frame)
	if merr != nil {
		return fmt.Errorf("build manifest: %w", merr)
	}
	if err := addZipFile(zw, "ComicInfo.xml", []byte(manifest)); err != nil {
		return fmt.Errorf("zip add manifest: %w", err)
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("close zip: %w", err)
	}
	return nil
}

func createZip(outPath string) (*zip.Writer, *os.File, error) {
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("ensure out dir: %w", err)
	}
	f, err := os.Create(outPath)
	if err != nil {
		return nil, nil, fmt.Errorf("create cbz: %w", err)
	}
	return zip.NewWriter(f), f, nil
}

func addZipFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func buildComicInfoXML(doc domain.PanelDocument, series, title string, frameCount int) (string, error) {
	if series == "" {
		series = strings.TrimSuffix(doc.ArchiveName, filepath.Ext(doc.ArchiveName))
	}
	if series == "" {
		series = "Untitled"
	}
	if title == "" {
		title = series + " (panels)"
	}
	reading := "LeftToRight"
	if doc.Direction() == domain.DirectionRTL {
		reading = "RightToLeft"
	}
	buf := &bytes.Buffer{}
	var werr error
	wf := func(format string, args ...any) {
		if werr != nil {
			return
		}
		_, werr = fmt.Fprintf(buf, format, args...)
	}
	wf("<?xml version=\"1.0\" encoding=\"UTF-8\"?>\n")
	wf("<ComicInfo xmlns:xsi=\"http://www.w3.org/2001/XMLSchema-instance\">\n")
	wf("  <Series>%s</Series>\n", xmlEsc(series))
	wf("  <Title>%s</Title>\n", xmlEsc(title))
	wf("  <PageCount>%d</PageCount>\n", frameCount)
	wf("  <ReadingDirection>%s</ReadingDirection>\n", reading)
	wf("</ComicInfo>\n")
	if werr != nil {
		return "", fmt.Errorf("build xml: %w", werr)
	}
	return buf.String(), nil
}

func xmlEsc(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '&':
			out = append(out, '&', 'a', 'm', 'p', ';')
		case '<':
			out = append(out, '&', 'l', 't', ';')
		case '>':
			out = append(out, '&', 'g', 't', ';')
		case '"':
			out = append(out, '&', 'q', 'u', 'o', 't', ';')
		case '\'':
			out = append(out, '&', 'a', 'p', 'o', 's', ';')
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}
