package main

import "github.com/opsdesk/opsdesk/cmd"

func main() {
	cmd.Execute()
}
