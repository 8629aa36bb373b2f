package main

import "github.com/imagehost/backend/internal/cli"

func main() {
	cli.Execute()
}
