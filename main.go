// file: main.go
// version: 2.0.0
// guid: 29b4ea85-0d53-42e4-b172-11098098c3b7

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/book-catalog/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
