package main

import "github.com/vietddude/methodwatch/internal/cli"

func main() {
	cli.Execute()
}
