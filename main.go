package main

import "github.com/pagebot-ai/pagebot/cmd"

func main() {
	cmd.Execute()
}
