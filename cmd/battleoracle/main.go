// Command battleoracle watches live Pokemon streams, opens betting markets
// when a battle is announced in a stream title and proposes settlements when
// a winner is announced.
package main

import (
	"os"

	"github.com/alanyoungcy/battleoracle/cmd/battleoracle/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
