package main

import (
	"os"

	"github.com/JonMunkholm/crm/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
