package main

import "propscout/cmd"

func main() {
	cmd.Execute()
}
