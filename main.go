package main

import "operator-dispatch.com/operator-dispatch/cmd"

func main() {
	cmd.Execute()
}
