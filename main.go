package main

import (
	"os"

	"github.com/fenrig-labs/gptshell/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
