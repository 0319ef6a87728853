package main

import "github.com/codyseavey/mtg-value-bot/internal/cli"

func main() {
	cli.Execute()
}
