package main

import "github.com/fetchkit/fetchd/cmd"

func main() {
	cmd.Execute()
}
