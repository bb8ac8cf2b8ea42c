/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sidecar

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopanelreader/internal/domain"
)

// decodeDocument parses sidecar JSON in any of the shapes producers emit:
//
//   - canonical: "pages" as an array of {page, image, panels} objects
//   - legacy: "pages" as a map of filename or page-number keys to panel lists
//   - sharded: "chapters" index with no pages at all
//   - bare: only a top-level "panels" list
//
// Panel rects are accepted both as {"x":..,"y":..,"w":..,"h":..} objects and
// as [x, y, w, h] four-element arrays. Rects that fail validation are dropped
// and counted rather than failing the whole document.
func decodeDocument(b []byte) (domain.PanelDocument, map[string]domain.PanelList, int, error) {
	var raw struct {
		ArchiveName      string             `json:"archive_name"`
		ReadingDirection string             `json:"reading_direction"`
		TotalChapters    int                `json:"total_chapters"`
		TotalPages       int                `json:"total_pages"`
		Chapters         []domain.ChapterRef `json:"chapters"`
		Pages            json.RawMessage    `json:"pages"`
		Panels           json.RawMessage    `json:"panels"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return domain.PanelDocument{}, nil, 0, err
	}

	doc := domain.PanelDocument{
		ArchiveName:      raw.ArchiveName,
		ReadingDirection: raw.ReadingDirection,
		TotalChapters:    raw.TotalChapters,
		TotalPages:       raw.TotalPages,
		Chapters:         raw.Chapters,
	}
	dropped := 0

	if len(raw.Panels) > 0 && !bytes.Equal(raw.Panels, []byte("null")) {
		pl, n, err := decodePanelList(raw.Panels)
		if err != nil {
			return domain.PanelDocument{}, nil, 0, fmt.Errorf("panels: %w", err)
		}
		doc.Panels = pl
		dropped += n
	}

	if len(raw.Pages) == 0 || bytes.Equal(raw.Pages, []byte("null")) {
		return doc, nil, dropped, nil
	}

	switch firstToken(raw.Pages) {
	case '[':
		var entries []struct {
			Page   int             `json:"page"`
			Image  string          `json:"image"`
			Panels json.RawMessage `json:"panels"`
		}
		if err := json.Unmarshal(raw.Pages, &entries); err != nil {
			return domain.PanelDocument{}, nil, 0, fmt.Errorf("pages: %w", err)
		}
		doc.Pages = make([]domain.PageEntry, 0, len(entries))
		for _, e := range entries {
			pl, n, err := decodePanelList(e.Panels)
			if err != nil {
				return domain.PanelDocument{}, nil, 0, fmt.Errorf("page %d: %w", e.Page, err)
			}
			dropped += n
			doc.Pages = append(doc.Pages, domain.PageEntry{Page: e.Page, Image: e.Image, Panels: pl})
		}
		return doc, nil, dropped, nil
	case '{':
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(raw.Pages, &entries); err != nil {
			return domain.PanelDocument{}, nil, 0, fmt.Errorf("pages: %w", err)
		}
		mapPages := make(map[string]domain.PanelList, len(entries))
		for k, v := range entries {
			pl, n, err := decodePanelList(v)
			if err != nil {
				return domain.PanelDocument{}, nil, 0, fmt.Errorf("pages[%q]: %w", k, err)
			}
			dropped += n
			mapPages[k] = pl
		}
		return doc, mapPages, dropped, nil
	default:
		return domain.PanelDocument{}, nil, 0, fmt.Errorf("pages: expected array or object")
	}
}

// decodePanelList parses a panel array accepting both rect encodings and
// filtering invalid rects. The second return is the dropped count.
func decodePanelList(raw json.RawMessage) (domain.PanelList, int, error) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, 0, nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, 0, err
	}
	out := make(domain.PanelList, 0, len(elems))
	dropped := 0
	for _, e := range elems {
		var r domain.PanelRect
		switch firstToken(e) {
		case '{':
			if err := json.Unmarshal(e, &r); err != nil {
				dropped++
				continue
			}
		case '[':
			var quad [4]float64
			if err := json.Unmarshal(e, &quad); err != nil {
				dropped++
				continue
			}
			r = domain.PanelRect{X: quad[0], Y: quad[1], W: quad[2], H: quad[3]}
		default:
			dropped++
			continue
		}
		if !r.Valid() {
			dropped++
			continue
		}
		out = append(out, r)
	}
	return out, dropped, nil
}

// firstToken returns the first non-whitespace byte of a JSON value, or 0.
func firstToken(b []byte) byte {
	for _, c := range b {
		switch c {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return c
	}
	return 0
}
