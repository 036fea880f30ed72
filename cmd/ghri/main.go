package main

import (
	"os"

	"github.com/chaifeng/ghri-go/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
