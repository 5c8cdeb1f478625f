package main

import "curator/cmd"

func main() {
	cmd.Execute()
}
