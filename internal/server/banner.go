package server

import (
	"fmt"
	"io"
	"strings"

	"github.com/dreschagin/static-server/internal/headers"
)

const (
	bannerWidth       = 63
	crossOriginPrefix = "Cross-Origin-"
)

// Banner prints the startup notice: where to point the browser, which
// isolation headers are sent, and how to check them.
func Banner(w io.Writer, baseURL, diagnosticPath string, set headers.Set) {
	lines := []string{
		"",
		"Server running at: " + baseURL,
		"",
		"Headers being sent:",
	}
	for _, f := range set.Fields() {
		if strings.HasPrefix(f.Name, crossOriginPrefix) {
			lines = append(lines, "✓ "+f.Name+": "+f.Value)
		}
	}
	lines = append(lines,
		"",
		"IMPORTANT:",
		"1. Use "+baseURL+" (not localhost)",
		"2. Hard refresh: Ctrl+Shift+R (or Cmd+Shift+R on Mac)",
		"3. Or try incognito/private browsing mode",
		"",
		"Test headers: "+baseURL+diagnosticPath,
		"",
	)

	rule := strings.Repeat("═", bannerWidth)
	fmt.Fprintf(w, "╔%s╗\n", rule)
	fmt.Fprintf(w, "║  %-*s║\n", bannerWidth-2, "STATIC SERVER · cross-origin isolated")
	fmt.Fprintf(w, "╠%s╣\n", rule)
	for _, line := range lines {
		fmt.Fprintf(w, "║  %-*s║\n", bannerWidth-2, line)
	}
	fmt.Fprintf(w, "╚%s╝\n", rule)
}
