/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * Licensed under the Apache License, Version 2.0.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// RenderKey identifies one cached frame: document path, page, panel index
// (0 for a whole-page render), target size and the render options digest.
type RenderKey struct {
	Document string
	Page     int
	Panel    int
	W        int
	H        int
	Opts     string
}

// language=SQL
// dialect=SQLite
const selectRenderSQL = `SELECT blob FROM renders WHERE document=? AND page=? AND panel=? AND w=? AND h=? AND opts=?`

// language=SQL
// dialect=SQLite
const touchRenderSQL = `UPDATE renders SET last_access=? WHERE document=? AND page=? AND panel=? AND w=? AND h=? AND opts=?`

// language=SQL
// dialect=SQLite
const upsertRenderSQL = `INSERT INTO renders(document,page,panel,w,h,opts,blob,size,updated_at,last_access)
	VALUES(?,?,?,?,?,?,?,?,?,?)
	ON CONFLICT(document,page,panel,w,h,opts) DO UPDATE SET blob=excluded.blob, size=excluded.size, updated_at=excluded.updated_at, last_access=excluded.last_access`

// GetRender returns the cached frame bytes for a key, or nil when absent, and
// updates last_access on a hit.
func (c *Cache) GetRender(ctx context.Context, key RenderKey) ([]byte, error) {
	var blob []byte
	err := c.db.QueryRowContext(ctx, selectRenderSQL,
		key.Document, key.Page, key.Panel, key.W, key.H, key.Opts).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query render: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, _ = c.db.ExecContext(ctx, touchRenderSQL, now,
		key.Document, key.Page, key.Panel, key.W, key.H, key.Opts)
	return blob, nil
}

// PutRender upserts a frame and enforces the byte cap via LRU eviction.
func (c *Cache) PutRender(ctx context.Context, key RenderKey, blob []byte) error {
	if key.Document == "" {
		return errors.New("render key needs a document")
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := c.db.ExecContext(ctx, upsertRenderSQL,
		key.Document, key.Page, key.Panel, key.W, key.H, key.Opts, blob, len(blob), now, now)
	if err != nil {
		return fmt.Errorf("upsert render: %w", err)
	}
	capBytes := MaxRenderBytesFromEnv()
	if capBytes > 0 {
		if err := c.evictRendersToFit(ctx, capBytes); err != nil {
			return err
		}
	}
	return nil
}

// GetOrCreateRender fetches a frame or generates and stores it.
func (c *Cache) GetOrCreateRender(ctx context.Context, key RenderKey, gen func(context.Context) ([]byte, error)) ([]byte, error) {
	if b, err := c.GetRender(ctx, key); err != nil {
		return nil, err
	} else if b != nil {
		return b, nil
	}
	if gen == nil {
		return nil, nil
	}
	data, err := gen(ctx)
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	if err := c.PutRender(ctx, key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// InvalidateRenders drops all cached frames for a document.
func (c *Cache) InvalidateRenders(ctx context.Context, document string) (int64, error) {
	res, err := c.db.ExecContext(ctx, `DELETE FROM renders WHERE document=?`, document)
	if err != nil {
		return 0, fmt.Errorf("invalidate renders: %w", err)
	}
	return res.RowsAffected()
}

// TotalRenderBytes returns total bytes tracked by renders.size.
func (c *Cache) TotalRenderBytes(ctx context.Context) (int64, error) {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM renders`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

// evictRendersToFit deletes least-recently-used rows until total size <= capBytes.
func (c *Cache) evictRendersToFit(ctx context.Context, capBytes int64) error {
	var total int64
	if err := c.db.QueryRowContext(ctx, `SELECT COALESCE(SUM(size),0) FROM renders`).Scan(&total); err != nil {
		return fmt.Errorf("sum renders size: %w", err)
	}
	if total <= capBytes {
		return nil
	}
	// Victims ordered by last_access asc (oldest first), NULLs first
	rows, err := c.db.QueryContext(ctx, `SELECT id, size FROM renders ORDER BY
		CASE WHEN last_access IS NULL THEN 0 ELSE 1 END ASC, last_access ASC`)
	if err != nil {
		return fmt.Errorf("select victims: %w", err)
	}
	toDelete := make([]int64, 0, 32)
	cur := total
	for rows.Next() {
		var id, sz int64
		if err := rows.Scan(&id, &sz); err != nil {
			_ = rows.Close()
			return err
		}
		toDelete = append(toDelete, id)
		cur -= sz
		if cur <= capBytes {
			break
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return err
	}
	// Close the cursor before attempting to write
	if err := rows.Close(); err != nil {
		return err
	}
	if len(toDelete) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(toDelete)), ",")
	args := make([]any, len(toDelete))
	for i, v := range toDelete {
		args[i] = v
	}
	if _, err := c.db.ExecContext(ctx, `DELETE FROM renders WHERE id IN (`+placeholders+`)`, args...); err != nil {
		return fmt.Errorf("evict delete: %w", err)
	}
	return nil
}

// MaxRenderBytesFromEnv reads GPR_RENDER_CACHE_MAX_BYTES, defaulting to 128MB
// if unset or invalid.
func MaxRenderBytesFromEnv() int64 {
	v := os.Getenv("GPR_RENDER_CACHE_MAX_BYTES")
	if v == "" {
		return 128 * 1024 * 1024 // 128MB
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n <= 0 {
		return 128 * 1024 * 1024
	}
	return n
}
