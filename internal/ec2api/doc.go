// Copyright © 2025 Steve Taranto staranto@gmail.com
// SPDX-License-Identifier: MIT

// Package ec2api wraps the EC2 SDK client with the handful of calls the
// backup functions need. The SDK is reached through the narrow API
// interface so the logic above it can run against the in-memory fake in
// package ec2test.
package ec2api
