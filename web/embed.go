// Package web embeds the built dashboard assets for single-binary distribution.
package web

import "embed"

// Assets contains the dashboard production build output. The build/
// directory ships a placeholder shell until a frontend build replaces it.
//
//go:embed all:build
var Assets embed.FS
