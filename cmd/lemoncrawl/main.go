package main

import "lemoncrawl/cmd/lemoncrawl/commands"

func main() {
	commands.Execute()
}
