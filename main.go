package main

import "github.com/deploymenttheory/go-thinpool/cmd"

func main() {
	cmd.Execute()
}
