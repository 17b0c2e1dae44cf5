package main

import "github.com/Norgate-AV/machdxc/cmd"

func main() {
	cmd.Execute()
}
