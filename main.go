package main

import "github.com/NahomAnteneh/vec/cmd"

func main() {
	cmd.Execute()
}
