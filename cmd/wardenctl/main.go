// Command wardenctl is the operator console for logwarden: it inspects
// recorded incidents and exercises detection rules against sample lines.
package main

import (
	"os"

	"github.com/logwarden/logwarden/cmd/wardenctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
