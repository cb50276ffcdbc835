package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/dosanma1/clapforge/internal/cmd"
	"github.com/dosanma1/clapforge/internal/pipeline"
	"github.com/dosanma1/clapforge/internal/ui"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.Execute(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "%s %s\n", ui.IconError, ui.ErrorStyle.Render("Error:"))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(pipeline.ExitCode(err))
	}
}
