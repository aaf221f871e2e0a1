package main

import (
	"fmt"
	"os"

	"github.com/Alp4ka/searchpager/cmd/searchpagerd/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
