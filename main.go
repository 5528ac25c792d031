package main

import "github.com/studybible/versesim/internal/cli"

func main() {
	cli.Execute()
}
