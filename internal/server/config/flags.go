package config

import (
	"flag"
	"os"
	"time"

	"github.com/avelkaya/whisperline/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8080")
//	-d string   PostgreSQL DSN, or "mem" for the in-memory store
//	-l int      history replay limit
//	-t int      persist timeout, seconds
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
//   - The persist timeout is accepted as an integer in seconds and then
//     converted to a time.Duration value.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-l", "-t"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.EndpointAddr, "a", config.EndpointAddr, "address and port to run server")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.HistoryLimit, "l", config.HistoryLimit, "history replay limit")

	persistTimeout := fs.Int("t", int(config.PersistTimeout.Seconds()), "persist_timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.PersistTimeout = time.Duration(*persistTimeout) * time.Second
}
