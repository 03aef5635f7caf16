// Copyright 2026 The Solbet Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build version information for the keeper
// binaries.
//
// [GitCommit], [BuildTime], and [Version] are injected with -ldflags:
//
//	go build -ldflags "-X github.com/solbet-labs/keeper/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// When GitCommit is not injected, the VCS revision recorded by the Go
// toolchain is used instead.
package version
