package main

import (
	"github.com/Jaypalsingh1/sovereignshare/internal/cli"
	"github.com/Jaypalsingh1/sovereignshare/internal/logging"
)

func main() {
	// Initialize logging
	logging.Init()
	cli.Execute()
}
