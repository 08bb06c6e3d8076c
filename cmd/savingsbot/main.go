// Command savingsbot runs the snarky savings Telegram bot and its tooling.
package main

import (
	_ "time/tzdata"

	"github.com/cameronsjo/savingsbot/internal/cmd"
)

func main() {
	cmd.Execute()
}
