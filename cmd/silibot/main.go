// Command silibot answers voice line requests: as a Discord bot, from the
// command line and as an MCP tool server.
package main

import (
	"fmt"
	"os"

	"github.com/MrWong99/silibot/cmd/silibot/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "silibot: %v\n", err)
		os.Exit(1)
	}
}
