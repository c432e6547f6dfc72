package main

import "wv-forge/internal/cli"

func main() {
	cli.Execute()
}
