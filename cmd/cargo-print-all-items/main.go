package main

import (
	"rustcplugin/cli"
	"rustcplugin/examples/printallitems"
)

// Executable run by cargo as `cargo print-all-items`. It hands the plugin
// to the coordinator, which reruns cargo with the driver as the wrapper.
func main() {
	cli.Main(printallitems.PrintAllItemsPlugin{})
}
