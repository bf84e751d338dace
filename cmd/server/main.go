package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/privgate/internal/server"
	"github.com/dmitrijs2005/privgate/internal/server/config"
	"github.com/dmitrijs2005/privgate/internal/server/privileges"
)

// catalog lists the privileges this bot deployment knows about. Guarded
// commands reference these names; /help prints the catalog.
var catalog = []privileges.Definition{
	{
		Name:        "manage_users",
		VerboseName: "Manage users",
		Description: "Grant and revoke privileges of other users.",
	},
	{
		Name:        "reports",
		VerboseName: "Reports",
		Description: "Request usage reports from the bot.",
	},
}

func main() {

	cfg := config.LoadConfig()

	if cfg.BotToken == "" {
		fmt.Fprintln(os.Stderr, "You must set the bot token in the environment variable BOT_TOKEN")
		os.Exit(1)
	}

	registry, err := privileges.NewRegistry(catalog...)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	app, err := server.NewApp(cfg, registry)
	if err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background()); err != nil {
		log.Printf("%v", err)
		os.Exit(1)
	}
}
