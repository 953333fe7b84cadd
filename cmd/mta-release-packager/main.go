package main

import "github.com/fernoz/mta-server-updater/cmd/mta-release-packager/cmd"

func main() {
	cmd.Execute()
}
