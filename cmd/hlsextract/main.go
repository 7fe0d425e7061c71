// cmd/hlsextract/main.go
package main

import (
	"github.com/law-makers/hlsextract/internal/cli"
)

func main() {
	// Signal handling lives in the serve command so shutdown can drain the
	// browser pool before the process exits.
	cli.Execute()
}
