package main

import "github.com/mertkara/sharcprep/cmd"

func main() {
	cmd.Execute()
}
