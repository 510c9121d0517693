package main

import (
	"os"

	"singletask/cmd/singletask/cmd"
)

func main() {
	os.Exit(cmd.Execute(os.Args[1:], os.Stdout, os.Stderr, nil))
}
