// The main package for the lore-crawler executable.
package main

import (
	"github.com/JakeFAU/lore-crawler/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
