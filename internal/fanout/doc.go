// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package fanout implements the root function: find the instances due for
// each backup type and dispatch one leaf job per attached volume.
package fanout
