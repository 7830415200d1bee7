package main

import "github.com/swarmkeep/swarmkeep/internal/cli"

func main() {
	cli.Execute()
}
