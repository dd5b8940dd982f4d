// Command donatectl is an operator tool for the DPO token flow: create a
// token, verify one, or print the hosted page URL for one.
package main

import (
	"fmt"
	"os"
)

var Version = "dev"

func main() {
	if err := newRootCmd(newApp()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
