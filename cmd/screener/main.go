package main

import (
	"os"

	"github.com/zlin/ashare-quant/cmd/screener/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
