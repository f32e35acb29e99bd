package main

import "github.com/andrejsstepanovs/docqa/cmd"

func main() {
	cmd.Execute()
}
