package config

import (
	"flag"
	"os"
	"time"

	"github.com/dmitrijs2005/privgate/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-g string   gateway websocket URL
//	-n string   bot display name
//	-d string   PostgreSQL DSN
//	-a int      admin principal id to flag at startup
//	-w int      gateway send timeout, seconds
//
// The function first filters os.Args to only the flags it recognizes using
// flagx.FilterArgs, avoiding collisions with other components. The bot
// token is deliberately not accepted as a flag: secrets stay out of the
// process argument list.
func parseFlags(config *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-g", "-n", "-d", "-a", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.GatewayURL, "g", config.GatewayURL, "gateway websocket URL")
	fs.StringVar(&config.BotName, "n", config.BotName, "bot display name")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.Int64Var(&config.AdminPrincipalID, "a", config.AdminPrincipalID, "admin principal id")

	sendTimeout := fs.Int("w", int(config.SendTimeout.Seconds()), "gateway send timeout (in seconds)")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}

	config.SendTimeout = time.Duration(*sendTimeout) * time.Second
}
