package main

import "taskflow-backend/cmd/cli"

func main() {
	cli.Execute()
}
