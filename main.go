package main

import "github.com/tanq16/dlbar/cmd"

func main() {
	cmd.Execute()
}
