package main

import "github.com/devicelab-dev/wallet-glue-runner/pkg/cli"

func main() {
	cli.Execute()
}
