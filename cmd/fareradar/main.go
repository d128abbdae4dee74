package main

import "fareradar/internal/cli"

func main() {
	cli.Execute()
}
