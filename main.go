package main

import "github.com/ifc-lite/modelstore/cmd"

func main() {
	cmd.Execute()
}
