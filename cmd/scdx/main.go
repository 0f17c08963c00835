package main

import "github.com/JakeFAU/scdx/cmd"

func main() {
	cmd.Execute()
}
