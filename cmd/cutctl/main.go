// Package main provides the cutctl command line tool.
package main

func main() {
	Execute()
}
