package main

import (
	"github.com/ledgerlabs/stakevault/cmd"
)

func main() {
	cmd.Execute()
}
