// Copyright (C) 2024 The Dagu Authors
// SPDX-License-Identifier: GPL-3.0-or-later

// Package build carries version metadata injected at link time.
package build

import "strings"

var (
	Version = "dev"
	AppName = "sagactl"
	Slug    = ""
)

func init() {
	if Slug == "" {
		Slug = strings.ToLower(AppName)
	}
}
