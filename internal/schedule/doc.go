// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package schedule turns a wall-clock time into the instance tag filters that
// select the volumes due for a Daily, Weekly or Monthly backup.
package schedule
