package banner

import (
	"fmt"
	"io"
	"strings"
)

const logo = `
   __ _ _           _
  / _(_) | ___  ___| |_ ___  _ __ ___
 | |_| | |/ _ \/ __| __/ _ \| '__/ _ \
 |  _| | |  __/\__ \ || (_) | | |  __/
 |_| |_|_|\___||___/\__\___/|_|  \___|
`

type StartupInfo struct {
	Version  string
	Bot      string
	Addr     string
	Storage  string
	Database string
}

// Print writes the logo and a summary of where the bot keeps its data.
// An empty Addr means the file server is disabled.
func Print(w io.Writer, info StartupInfo) {
	const width = 50
	rule := strings.Repeat("─", width)

	fmt.Fprint(w, logo)
	fmt.Fprintf(w, "%38s\n\n", "v"+info.Version)
	fmt.Fprintf(w, "  %s\n", rule)
	fmt.Fprintf(w, "  → Bot:       @%s\n", info.Bot)
	if info.Addr != "" {
		fmt.Fprintf(w, "  → Files:     http://%s\n", formatAddr(info.Addr))
	} else {
		fmt.Fprintf(w, "  → Files:     server disabled\n")
	}
	fmt.Fprintf(w, "  → Storage:   %s\n", info.Storage)
	fmt.Fprintf(w, "  → Database:  %s\n", info.Database)
	fmt.Fprintf(w, "  %s\n\n", rule)
}

func formatAddr(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
