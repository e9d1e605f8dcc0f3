package main

import (
	"github.com/wkalt/strata/cli/cmd"
)

func main() {
	cmd.Execute()
}
