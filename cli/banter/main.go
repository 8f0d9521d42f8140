package main

import (
	"os"

	bantercmder "github.com/papercomputeco/banter/cmd/banter"
)

func main() {
	cmd := bantercmder.NewBanterCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
