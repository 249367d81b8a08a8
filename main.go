package main

import "drivesync/cmd"

func main() {
	cmd.Execute()
}
