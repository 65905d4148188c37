package main

import "hlsladder/cmd"

func main() {
	cmd.Execute()
}
