/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package nav

import (
	"context"
	"fmt"
	"sync"
)

// LocalPager is a self-contained pager for standalone reading: it tracks the
// current page of a document with a known page count and refuses turns past
// either end.
type LocalPager struct {
	mu    sync.Mutex
	page  int
	count int
}

// NewLocalPager starts at page 1 of a count-page document.
func NewLocalPager(count int) *LocalPager {
	if count < 1 {
		count = 1
	}
	return &LocalPager{page: 1, count: count}
}

// TurnPage moves by delta pages, failing when the target is out of range.
func (p *LocalPager) TurnPage(_ context.Context, delta int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	target := p.page + delta
	if target < 1 || target > p.count {
		return fmt.Errorf("page %d out of range 1..%d", target, p.count)
	}
	p.page = target
	return nil
}

// SetPage jumps straight to page.
func (p *LocalPager) SetPage(page int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if page < 1 || page > p.count {
		return fmt.Errorf("page %d out of range 1..%d", page, p.count)
	}
	p.page = page
	return nil
}

// CurrentPage reports the tracked page.
func (p *LocalPager) CurrentPage() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.page
}

// PageCount reports the document length.
func (p *LocalPager) PageCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

// PageSource adapts the pager into a session page source.
func (p *LocalPager) PageSource() func() (int, bool) {
	return func() (int, bool) { return p.CurrentPage(), true }
}
