package main

import "github.com/vibast-solutions/ms-go-club-dues/cmd"

func main() {
	cmd.Execute()
}
