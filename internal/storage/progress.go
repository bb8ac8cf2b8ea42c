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
	"database/sql"
	"errors"
	"time"
)

// Progress is the stored reading position of one document.
type Progress struct {
	Document   string
	Page       int
	Panel      int
	Percentage float64
	Device     string
	UpdatedAt  time.Time
}

// language=SQL
// dialect=SQLite
const upsertProgressSQL = `INSERT INTO progress(document, page, panel, percentage, device, updated_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(document) DO UPDATE SET page=excluded.page, panel=excluded.panel, percentage=excluded.percentage, device=excluded.device, updated_at=excluded.updated_at`

// language=SQL
// dialect=SQLite
const selectProgressSQL = `SELECT page, panel, percentage, device, updated_at FROM progress WHERE document = ?`

// language=SQL
// dialect=SQLite
const listProgressSQL = `SELECT document, page, panel, percentage, device, updated_at FROM progress ORDER BY updated_at DESC LIMIT ?`

// SetProgress stores the current position for a document, replacing any
// earlier one.
func (c *Cache) SetProgress(ctx context.Context, p Progress) error {
	if p.Document == "" {
		return errors.New("progress needs a document")
	}
	ts := p.UpdatedAt
	if ts.IsZero() {
		ts = time.Now()
	}
	_, err := c.db.ExecContext(ctx, upsertProgressSQL,
		p.Document, p.Page, p.Panel, p.Percentage, p.Device, ts.UTC().Format(time.RFC3339Nano))
	return err
}

// GetProgress returns the stored position for a document; ok is false when
// the document was never opened.
func (c *Cache) GetProgress(ctx context.Context, document string) (Progress, bool, error) {
	p := Progress{Document: document}
	var tsStr string
	err := c.db.QueryRowContext(ctx, selectProgressSQL, document).Scan(
		&p.Page, &p.Panel, &p.Percentage, &p.Device, &tsStr)
	if errors.Is(err, sql.ErrNoRows) {
		return Progress{}, false, nil
	}
	if err != nil {
		return Progress{}, false, err
	}
	if ts, perr := time.Parse(time.RFC3339Nano, tsStr); perr == nil {
		p.UpdatedAt = ts
	}
	return p, true, nil
}

// ListProgress returns the most recently read documents, newest first.
func (c *Cache) ListProgress(ctx context.Context, limit int) ([]Progress, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := c.db.QueryContext(ctx, listProgressSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var out []Progress
	for rows.Next() {
		var p Progress
		var tsStr string
		if err := rows.Scan(&p.Document, &p.Page, &p.Panel, &p.Percentage, &p.Device, &tsStr); err != nil {
			return nil, err
		}
		p.UpdatedAt, _ = time.Parse(time.RFC3339Nano, tsStr)
		out = append(out, p)
	}
	return out, rows.Err()
}

// DeleteProgress removes the stored position for a document.
func (c *Cache) DeleteProgress(ctx context.Context, document string) error {
	_, err := c.db.ExecContext(ctx, `DELETE FROM progress WHERE document = ?`, document)
	return err
}
