/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package syncsrv

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"gopanelreader/internal/config"
)

// ErrNotFound reports a 404 from the sync service.
var ErrNotFound = errors.New("not found")

// Client talks to the progress sync service.
type Client struct {
	BaseURL string
	Token   string // bearer token
	Device  string
	client  *http.Client
}

// NewClient builds a client from the sync section of the user config.
func NewClient(cfg config.SyncConfig, token string) *Client {
	tr := &http.Transport{}
	if cfg.TLSInsecure {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &Client{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Token:   token,
		Device:  cfg.EffectiveDevice(),
		client:  &http.Client{Timeout: cfg.Timeout(), Transport: tr},
	}
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, dest any) error {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return err
	}
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("server %s %s: %w", method, u.Path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	if dest == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// TokenResponse matches the token endpoint payload.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

// RequestToken mints a bearer token for subject. ttl of 0 takes the server
// default.
func (c *Client) RequestToken(ctx context.Context, subject string, ttl time.Duration) (TokenResponse, error) {
	req := map[string]any{"subject": subject}
	if ttl > 0 {
		req["ttl_seconds"] = int64(ttl.Seconds())
	}
	var out TokenResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", req, &out); err != nil {
		return TokenResponse{}, err
	}
	return out, nil
}

// Push uploads a position and returns the winning record, which is the
// server's newer one when this device was stale.
func (c *Client) Push(ctx context.Context, rec ProgressRecord) (ProgressRecord, error) {
	if rec.Document == "" {
		return ProgressRecord{}, errors.New("push needs a document digest")
	}
	if rec.Device == "" {
		rec.Device = c.Device
	}
	var out ProgressRecord
	path := "/api/progress/" + url.PathEscape(rec.Document)
	if err := c.doJSON(ctx, http.MethodPut, path, rec, &out); err != nil {
		return ProgressRecord{}, err
	}
	return out, nil
}

// Pull fetches the stored position for a document digest; ok is false when
// the service has none.
func (c *Client) Pull(ctx context.Context, digest string) (ProgressRecord, bool, error) {
	var out ProgressRecord
	path := "/api/progress/" + url.PathEscape(digest)
	err := c.doJSON(ctx, http.MethodGet, path, nil, &out)
	if errors.Is(err, ErrNotFound) {
		return ProgressRecord{}, false, nil
	}
	if err != nil {
		return ProgressRecord{}, false, err
	}
	return out, true, nil
}

// Recent lists the subject's most recently updated positions, newest first.
func (c *Client) Recent(ctx context.Context) ([]ProgressRecord, error) {
	var list []ProgressRecord
	if err := c.doJSON(ctx, http.MethodGet, "/api/progress", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}
