/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package sidecar

import (
	"path/filepath"
	"testing"
)

func TestSchemaAcceptsProducerShapes(t *testing.T) {
	valid := []string{
		// canonical flat listing
		`{"reading_direction":"rtl","total_pages":1,"pages":[{"page":1,"image":"001.png","panels":[{"x":0.1,"y":0.1,"w":0.5,"h":0.5}]}]}`,
		// legacy map with array rects
		`{"pages":{"0012.jpg":[[0.1,0.1,0.5,0.5]]}}`,
		// sharded chapter index
		`{"archive_name":"s","total_chapters":1,"chapters":[{"name":"ch01","json_file":"ch01.json","total_pages":10}]}`,
		// bare panel list
		`{"panels":[{"x":0,"y":0,"w":1,"h":1}]}`,
	}
	for i, doc := range valid {
		msgs, err := ValidateBytes([]byte(doc))
		if err != nil {
			t.Fatalf("case %d: validate error: %v", i, err)
		}
		if len(msgs) != 0 {
			t.Fatalf("case %d: unexpected violations: %v", i, msgs)
		}
	}
}

func TestSchemaRejectsBadDocuments(t *testing.T) {
	invalid := []string{
		// none of pages/chapters/panels present
		`{"reading_direction":"rtl"}`,
		// unknown direction value
		`{"reading_direction":"vertical","panels":[]}`,
		// rect with a missing coordinate
		`{"panels":[{"x":0.1,"y":0.1,"w":0.5}]}`,
		// three-element array rect
		`{"panels":[[0.1,0.1,0.5]]}`,
		// chapter ref without json_file
		`{"chapters":[{"name":"ch01","total_pages":10}]}`,
		// coordinate out of the unit square
		`{"panels":[{"x":1.5,"y":0,"w":0.1,"h":0.1}]}`,
	}
	for i, doc := range invalid {
		msgs, err := ValidateBytes([]byte(doc))
		if err != nil {
			t.Fatalf("case %d: validate error: %v", i, err)
		}
		if len(msgs) == 0 {
			t.Fatalf("case %d: expected violations for %s", i, doc)
		}
	}
}

func TestValidateFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "vol.json")
	writeFile(t, path, `{"pages":[{"page":1,"panels":[]}]}`)

	msgs, err := ValidateFile(path)
	if err != nil {
		t.Fatalf("validate file: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("violations: %v", msgs)
	}
	if _, err := ValidateFile(filepath.Join(dir, "absent.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
