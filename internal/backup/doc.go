// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package backup implements the per-volume leaf work: take or copy a
// snapshot, tag it, and retire the snapshots beyond the retention count.
package backup
