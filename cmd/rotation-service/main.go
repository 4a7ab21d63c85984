// Command rotation-service serves the student rotation API and runs its
// maintenance tasks.
package main

import "os"

func main() {
	if err := execute(); err != nil {
		os.Exit(1)
	}
}
