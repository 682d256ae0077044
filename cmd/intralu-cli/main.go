package main

import (
	"intralu-bot/cmd/intralu-cli/commands"
	"intralu-bot/lib/serviceutil"
)

func main() {
	commands.ExecuteContext(serviceutil.SignalContext())
}
