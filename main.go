package main

import "github.com/mautops/schedule-gin/cmd"

func main() {
	cmd.Execute()
}
