// Command runloop runs task and WebAssembly engines on a single run loop
// fed by a message queue and, optionally, terminal keystrokes.
package main

import (
	"fmt"
	"os"
)

func main() {
	code, err := newRootCmd().execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		if code == 0 {
			code = 1
		}
	}
	os.Exit(code)
}
