// filemonitor watches one or more local folders for newly arrived files
// and uploads them to blob storage, with retries and post-upload
// disposition. See internal/cli for the command tree.
package main

import (
	"os"

	"github.com/pinesagetechnology/filemonitor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
