package main

import (
	"rustcplugin/driver"
	"rustcplugin/examples/printallitems"
)

// Executable cargo invokes in place of rustc for every compilation unit
func main() {
	driver.Main(printallitems.PrintAllItemsPlugin{})
}
