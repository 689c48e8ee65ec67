package main

import (
	"context"

	"inventory-scrapers/cmd/inventory/commands"
	"inventory-scrapers/lib/serviceutil"
)

func main() {
	ctx, cancel := serviceutil.SignalContext(context.Background())
	defer cancel()
	commands.ExecuteContext(ctx)
}
