package main

import (
	"os"

	"github.com/x402x/swapctl/internal/app"
)

func main() {
	runner := app.NewRunner()
	os.Exit(runner.Run(os.Args[1:]))
}
