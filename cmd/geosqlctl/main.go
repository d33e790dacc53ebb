package main

import (
	"fmt"
	"os"
)

func main() {
	if err := makeRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
