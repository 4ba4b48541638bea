// Package appfs embeds the files shipped with the binaries (migrations, templates & assets).
package appfs

import "embed"

//go:embed assets migrations all:templates
var FS embed.FS
