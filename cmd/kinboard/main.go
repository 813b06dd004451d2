package main

import "github.com/kinboard/kinboard/cmd/kinboard/cmd"

func main() {
	cmd.Execute()
}
