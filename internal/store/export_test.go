// Favmirror - Incremental Favorites Mirror
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/favmirror

package store

// SeedV1 lets external tests start from a legacy v1 store.
var SeedV1 = seedV1
