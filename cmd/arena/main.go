package main

import (
	"prediction-arena/internal/cli"
)

func main() {
	cli.Execute()
}
