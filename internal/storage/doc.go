/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage keeps the reader's local state in an embedded SQLite
// database (reader.sqlite in the data dir): the rendered-panel cache with LRU
// eviction, per-document reading progress, and bookmarks. Everything here is
// derived state or user annotations; the cache tables are disposable and the
// database is rebuilt on open when missing.
package storage
