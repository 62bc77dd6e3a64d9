package main

import "github.com/OpenTraceLab/OpenTraceBDM/cmd/bdm/cmd"

func main() {
	cmd.Execute()
}
