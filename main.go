package main

import "AutoMixFM/cmd"

func main() {
	cmd.Execute()
}
