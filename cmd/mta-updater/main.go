package main

import "github.com/fernoz/mta-server-updater/cmd/mta-updater/cmd"

func main() {
	cmd.Execute()
}
