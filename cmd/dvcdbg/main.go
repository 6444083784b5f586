package main

import "github.com/p14c31355/dvcdbg/cmd/dvcdbg/cmd"

func main() {
	cmd.Execute()
}
