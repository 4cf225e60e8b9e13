package web

import "embed"

// Static embeds assets served under /static: the compiled SPA bundle
// and shared images.
//
//go:embed static
var Static embed.FS
