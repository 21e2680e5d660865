// Command taxctl is the operator CLI of the vehicle tax service: it seeds
// fixtures, activates fiscal periods, expires stale payments and hashes
// passwords.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
