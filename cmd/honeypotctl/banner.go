// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"github.com/AleutianAI/honeypot/cmd/honeypotctl/config"
	"github.com/AleutianAI/honeypot/pkg/ux"
)

// BannerTitle heads the startup banner.
const BannerTitle = "Starting Agentic Honeypot API"

// BannerLines returns the fixed informational lines printed before launch.
func BannerLines(cfg config.BootstrapConfig) []string {
	base := cfg.Server.PublicURL()
	lines := []string{"API will be available at: " + base}
	if cfg.Banner.DocsPath != "" {
		lines = append(lines, "API Documentation: "+base+cfg.Banner.DocsPath)
	}
	if cfg.Banner.APIKey != "" {
		lines = append(lines, "API Key: "+cfg.Banner.APIKey)
	}
	return lines
}

// PrintBanner writes the banner. The lines go out verbatim in every output
// mode so scripts can grep for them.
func PrintBanner(p *ux.Printer, cfg config.BootstrapConfig) {
	p.Blank()
	p.Title(BannerTitle)
	for _, l := range BannerLines(cfg) {
		p.Line(l)
	}
	p.Blank()
}
