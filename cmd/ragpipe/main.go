// Command ragpipe answers questions over a crawled corpus with a retrieval
// augmented generation pipeline.
package main

import (
	"os"
)

// Build variables set by ldflags
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cmd := NewRootCommand(version, commit)
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
