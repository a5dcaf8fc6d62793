package main

import "github.com/stashy/stashy/cmd"

func main() {
	cmd.Execute()
}
