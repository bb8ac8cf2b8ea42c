package domain

import (
	"encoding/json"
	"testing"
)

func TestPanelDocumentJSONDecode(t *testing.T) {
	// Shape emitted by the detection tooling for a flat archive.
	raw := `{
		"reading_direction": "rtl",
		"total_pages": 2,
		"pages": [
			{"page": 1, "image": "0001.jpg", "panels": [{"x":0.1,"y":0.05,"w":0.8,"h":0.4}]},
			{"page": 2, "image": "0002.jpg", "panels": []}
		]
	}`
	var d PanelDocument
	if err := json.Unmarshal([]byte(raw), &d); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if d.Direction() != DirectionRTL {
		t.Fatalf("direction mismatch: %q", d.Direction())
	}
	if d.TotalPages != 2 || len(d.Pages) != 2 {
		t.Fatalf("unexpected document structure: %+v", d)
	}
	pe, ok := d.PageByNumber(1)
	if !ok || len(pe.Panels) != 1 || pe.Image != "0001.jpg" {
		t.Fatalf("page 1 lookup failed: %+v ok=%v", pe, ok)
	}
	if _, ok := d.PageByNumber(3); ok {
		t.Fatalf("page 3 should not resolve")
	}
}

func TestChapterForCumulativeLookup(t *testing.T) {
	d := PanelDocument{
		Chapters: []ChapterRef{
			{Name: "A", JSONFile: "a.json", TotalPages: 10},
			{Name: "B", JSONFile: "b.json", TotalPages: 5},
		},
	}
	ch, local, ok := d.ChapterFor(12)
	if !ok {
		t.Fatalf("page 12 did not resolve")
	}
	if ch.Name != "B" || local != 2 {
		t.Fatalf("page 12 resolved to %q local %d, want B local 2", ch.Name, local)
	}
	// First chapter boundary stays in the first chapter.
	ch, local, ok = d.ChapterFor(10)
	if !ok || ch.Name != "A" || local != 10 {
		t.Fatalf("page 10 resolved to %q local %d ok=%v", ch.Name, local, ok)
	}
	// Beyond all chapters fails.
	if _, _, ok := d.ChapterFor(16); ok {
		t.Fatalf("page 16 should be out of range")
	}
	// Zero-page chapters are skipped, not counted.
	d.Chapters = append([]ChapterRef{{Name: "empty", TotalPages: 0}}, d.Chapters...)
	ch, local, ok = d.ChapterFor(1)
	if !ok || ch.Name != "A" || local != 1 {
		t.Fatalf("empty chapter not skipped: %q local %d ok=%v", ch.Name, local, ok)
	}
}

func TestPanelRectValid(t *testing.T) {
	cases := []struct {
		name string
		r    PanelRect
		want bool
	}{
		{"typical", PanelRect{X: 0.1, Y: 0.1, W: 0.5, H: 0.3}, true},
		{"full page", PanelRect{X: 0, Y: 0, W: 1, H: 1}, true},
		{"zero width", PanelRect{X: 0.2, Y: 0.2, W: 0, H: 0.3}, false},
		{"negative origin", PanelRect{X: -0.01, Y: 0, W: 0.5, H: 0.5}, false},
		{"overflows right", PanelRect{X: 0.7, Y: 0, W: 0.5, H: 0.5}, false},
		{"producer rounding slack", PanelRect{X: 0.5, Y: 0.5, W: 0.5, H: 0.5}, true},
	}
	for _, c := range cases {
		if got := c.r.Valid(); got != c.want {
			t.Fatalf("%s: Valid()=%v want %v", c.name, got, c.want)
		}
	}
}

func TestParseDirectionDefaultsToRTL(t *testing.T) {
	if ParseDirection("ltr") != DirectionLTR {
		t.Fatalf("ltr not recognized")
	}
	for _, s := range []string{"rtl", "", "RTL", "vertical"} {
		if ParseDirection(s) != DirectionRTL {
			t.Fatalf("%q should default to rtl", s)
		}
	}
}
