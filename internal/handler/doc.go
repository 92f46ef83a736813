// Copyright (c) 2025 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

// Package handler adapts the root, local and remote functions to the AWS
// Lambda runtime.
package handler
