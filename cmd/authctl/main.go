// Command authctl signs in to the auth API from a terminal and keeps the
// session in a credential file or Redis between invocations.
//
//	authctl [flags] login <email>
//	authctl [flags] status | whoami | devices | history [n] | fingerprint
//	authctl [flags] revoke <device-id>
//	authctl [flags] forgot <email> | reset <token> <new-password>
//	authctl [flags] get <path>
//	authctl [flags] logout
package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	if err := LoadDotEnv(os.Getwd); err != nil {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
		os.Exit(2)
	}

	var opts Options
	args, err := opts.ParseFlags(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg, err := opts.Resolve(os.UserConfigDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var logOut io.Writer
	if opts.Verbose {
		logOut = os.Stderr
	}
	app, err := NewApp(cfg, logOut, bufio.NewReader(os.Stdin), os.Stdout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	defer app.Close()

	if err := app.Run(ctx, args); err != nil {
		fmt.Fprintf(os.Stderr, "authctl: %v\n", err)
		os.Exit(1)
	}
}
