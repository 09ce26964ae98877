package main

import (
	"clantracker/internal/cli"
)

func main() {
	cli.Execute()
}
