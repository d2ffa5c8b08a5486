package main

import "github.com/mcoot/paddleduel/internal/cli"

func main() {
	cli.Execute()
}
