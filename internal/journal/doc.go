// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package journal records leaf outcomes in a SQLite database so the CLI and
// the daemon can report what past runs did.
package journal
