// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package daemon runs the root fan-out on a cron schedule with in-process
// leaves, for hosts that do not use EventBridge and Lambda. It also serves
// health, metrics and run history over HTTP.
package daemon
