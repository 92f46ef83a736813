// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package aws contains AWS SDK configuration helpers and client constructors
// shared by the backup functions and commands.
package aws
