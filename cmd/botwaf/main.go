package main

import "github.com/wl4g-collab/botwaf-go/cmd/botwaf/cmd"

func main() {
	cmd.Execute()
}
