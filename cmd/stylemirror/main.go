// Package main implements the stylemirror CLI: import a pasted transcript,
// infer the user's style with the contact, and draft replies offline.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
