package main

import (
	"fmt"
	"os"

	"github.com/Aman-CERP/fileindex/cmd/fileindex/cmd"
	fierrors "github.com/Aman-CERP/fileindex/internal/errors"
)

func main() {
	if err := cmd.Execute(); err != nil {
		_, _ = fmt.Fprint(os.Stderr, fierrors.FormatForCLI(err))
		os.Exit(1)
	}
}
