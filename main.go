package main

import "github.com/intentlabs/transformd/frontend/cli/cmd"

func main() {
	cmd.Execute()
}
