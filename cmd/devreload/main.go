// Command devreload runs an application's serve process and restarts it
// whenever one of the files the application loaded changes.
package main

import (
	"os"

	"github.com/axondata/go-devreload/cmd/devreload/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr))
}
