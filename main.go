package main

import "github.com/farisgozi/attendify/cmd"

func main() {
	cmd.Run()
}
