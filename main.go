package main

import "track-forge/cmd"

func main() {
	cmd.Execute()
}
