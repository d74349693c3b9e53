package main

import "kbtrial/cmd"

func main() {
	cmd.Execute()
}
