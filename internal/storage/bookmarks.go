/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"errors"
	"time"
)

// Bookmark is a saved position inside a document.
type Bookmark struct {
	ID        int64
	Document  string
	Page      int
	Panel     int
	Note      string
	CreatedAt time.Time
}

// language=SQL
// dialect=SQLite
const insertBookmarkSQL = `INSERT INTO bookmarks(document, page, panel, note, created_at) VALUES (?, ?, ?, ?, ?)`

// language=SQL
// dialect=SQLite
const listBookmarksSQL = `SELECT id, page, panel, note, created_at FROM bookmarks WHERE document = ? ORDER BY created_at DESC LIMIT ?`

// language=SQL
// dialect=SQLite
const pruneBookmarksSQL = `DELETE FROM bookmarks WHERE document = ? AND id NOT IN (
	SELECT id FROM bookmarks WHERE document = ? ORDER BY created_at DESC LIMIT ?
)`

// AddBookmark saves a position and returns its id.
func (c *Cache) AddBookmark(ctx context.Context, b Bookmark) (int64, error) {
	if b.Document == "" {
		return 0, errors.New("bookmark needs a document")
	}
	ts := b.CreatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	res, err := c.db.ExecContext(ctx, insertBookmarkSQL,
		b.Document, b.Page, b.Panel, b.Note, ts.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListBookmarks returns up to limit most recent bookmarks for a document.
func (c *Cache) ListBookmarks(ctx context.Context, document string, limit int) ([]Bookmark, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := c.db.QueryContext(ctx, listBookmarksSQL, document, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Bookmark
	for rows.Next() {
		b := Bookmark{Document: document}
		var note *string
		var tsStr string
		if err := rows.Scan(&b.ID, &b.Page, &b.Panel, &note, &tsStr); err != nil {
			return nil, err
		}
		if note != nil {
			b.Note = *note
		}
		b.CreatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, b)
	}
	return out, rows.Err()
}

// DeleteBookmark removes one bookmark by id. Unknown ids are not an error.
func (c *Cache) DeleteBookmark(ctx context.Context, id int64) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM bookmarks WHERE id = ?`, id)
	return err
}

// PruneBookmarks keeps at most keepLast bookmarks for the document and
// deletes older ones.
func (c *Cache) PruneBookmarks(ctx context.Context, document string, keepLast int) (int64, error) {
	if keepLast <= 0 {
		return 0, nil
	}
	res, err := c.db.ExecContext(ctx, pruneBookmarksSQL, document, document, keepLast)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
