package main

import "github.com/OpenTraceLab/OpenTraceBench/cmd/bench/cmd"

func main() {
	cmd.Execute()
}
