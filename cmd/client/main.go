package main

import (
	"komun/internal/client/cli"
)

// BaseURL is set via ldflags during build. e.g. -X main.BaseURL=https://api.example.com/api/v1
var BaseURL = ""

// Version is set via ldflags during build.
var Version = "dev"

func main() {
	cli.Init(BaseURL, Version)
	cli.Execute()
}
