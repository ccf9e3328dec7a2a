package main

import "github.com/fossas/broker/cmd"

func main() {
	cmd.Execute()
}
