package main

import "github.com/jfmyers9/slackfm/cmd"

func main() {
	cmd.Execute()
}
