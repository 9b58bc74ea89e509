package main

import "pub/internal/cli"

func main() {
	cli.Execute()
}
