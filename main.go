package main

import "github.com/kozaktomas/auth-gate/cmd"

func main() {
	cmd.Execute()
}
