package main

import (
	"context"
	"fmt"
	"os"

	"github.com/serroba/docstore/internal/cli"
)

func main() {
	if err := cli.Execute(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "docstore:", err)
		os.Exit(1)
	}
}
