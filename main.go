package main

import "nuvaru/cmd"

func main() {
	cmd.Execute()
}
