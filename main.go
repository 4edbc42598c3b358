package main

import "github.com/canvas-sync/canvas-sync/cmd"

func main() {
	cmd.Execute()
}
