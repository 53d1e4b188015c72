// ./main.go
package main

import (
	"github.com/xkilldash9x/crmpilot/cmd"
)

// main is the entry point for the crmpilot CLI.
func main() {
	cmd.Execute()
}
