// The main package for the scdx executable.
package main

import (
	"github.com/JakeFAU/scdx/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
