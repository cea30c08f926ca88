package main

import "github.com/pivotlens/pivotlens/cmd"

func main() {
	cmd.Execute()
}
