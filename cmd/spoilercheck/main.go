// spoilercheck runs acceptance checks against a Story Spoiler API deployment.
//
// Usage:
//
//	spoilercheck run [--format text|json|yaml] [--removal-checks] [--metrics]
//	spoilercheck login                Check credentials and print the masked token
//	spoilercheck steps                List the steps in run order
//	spoilercheck config               Print the resolved configuration
//	spoilercheck version
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/storyspoiler/spoilercheck/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := cli.Execute(ctx, os.Args[1:], cli.Streams{In: os.Stdin, Out: os.Stdout, Err: os.Stderr})
	stop()
	os.Exit(code)
}
