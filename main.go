package main

import "github.com/et-316/ex-file-eraser/cmd"

func main() {
	cmd.Execute()
}
