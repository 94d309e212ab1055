package main

import "github.com/virtcam/virtcam/cmd"

func main() {
	cmd.Execute()
}
