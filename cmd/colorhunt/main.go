package main

import "github.com/msomdec/color-hunt/internal/cli"

func main() {
	cli.Execute()
}
