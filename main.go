package main

import "github.com/autoventa/dealerbot/cmd"

func main() {
	cmd.Execute()
}
