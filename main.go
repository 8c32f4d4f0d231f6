package main

import "github.com/stride-dev/stride/cmd"

func main() {
	cmd.Execute()
}
