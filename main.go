package main

import (
	"os"

	"github.com/maxkimambo/shardrun/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
