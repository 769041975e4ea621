package main

import (
	"fmt"
	"os"

	"inkwell/internal/admin"
)

func main() {
	if err := admin.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}
