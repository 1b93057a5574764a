package main

import (
	"fmt"
	"os"

	"github.com/soyeahso/rewardbot/internal/cli"
	"github.com/tillberg/autorestart"
)

func main() {
	// Re-exec when the binary is replaced, for deploys that swap it in place.
	if os.Getenv("REWARDBOT_AUTORESTART") != "" {
		go autorestart.RestartOnChange()
	}

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
