package main

import (
	"embed"

	"matchbook/cmd"
)

//go:embed static
var staticFiles embed.FS

func main() {
	cmd.Execute(staticFiles)
}
