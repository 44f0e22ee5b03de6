package main

import "github.com/vietddude/scamradar/internal/cli"

func main() {
	cli.Execute()
}
