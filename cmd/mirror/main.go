// Package main provides the mirror CLI entry point.
package main

import "github.com/mesh-intelligence/mirror/internal/cli"

func main() {
	cli.Execute()
}
