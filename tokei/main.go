// Tokei is a command-line tool for running and inspecting real-time
// simulations.
package main

import "github.com/sarchlab/tokei/tokei/cmd"

func main() {
	cmd.Execute()
}
