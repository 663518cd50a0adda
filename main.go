package main

import "VoxNote/cmd"

func main() {
	cmd.Execute()
}
