package main

import "leobook/cmd"

func main() {
	cmd.Execute()
}
