package main

import "github.com/quartz-build/quartz/cmd"

func main() {
	cmd.Execute()
}
