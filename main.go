package main

import "github.com/lexhq/lex-desktop/internal/cli"

func main() {
	cli.Execute()
}
