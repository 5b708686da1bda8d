package main

import (
	"os"

	"github.com/koscakluka/ema-room/internal/cli"
)

func main() {
	if err := cli.RootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
