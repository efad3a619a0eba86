package main

import "github.com/vanmilkco/storefront/internal/cli"

func main() {
	cli.Execute()
}
