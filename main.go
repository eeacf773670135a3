/*
framegraph compiles render graphs and replays them frame after frame on a
headless or a Vulkan device.
*/
package main

import "github.com/spaghettifunk/framegraph/cmd"

func main() {
	cmd.Execute()
}
