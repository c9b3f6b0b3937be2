package main

import "github.com/ddowsett/quizroom-go/internal/cli"

func main() {
	cli.Execute()
}
