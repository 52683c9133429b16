package main

import "github.com/younes-bami/hrcut-app/cmd"

func main() {
	cmd.Execute()
}
