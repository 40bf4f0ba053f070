package main

import "github.com/newsdesk/apiserver/cmd"

func main() {
	cmd.Execute()
}
