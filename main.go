// Package main is the entry point for argus.
package main

import "argus/cmd"

func main() {
	cmd.Execute()
}
