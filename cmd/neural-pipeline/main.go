package main

import (
	"os"

	"github.com/Santhosh-KS/neural-pipeline/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
