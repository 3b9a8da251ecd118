package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error
	Whoami(ctx context.Context) error
	List(ctx context.Context, args []string) error
	Show(ctx context.Context, args []string) error
	Delete(ctx context.Context, args []string) error
	AddItem(ctx context.Context) error
	NewQuote(ctx context.Context) error
	AddAssembly(ctx context.Context, args []string) error
	Preview(ctx context.Context, args []string) error
	Import(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Repair(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: login [token], (l)ist <entity>, show <entity> <id>, additem, newquote, addassembly <quote> <assembly> [var=value...], preview <file>, import <file>, delete <entity> <id>, repair, exit"
	helpSignedIn  = "Available commands: (l)ist <entity>, show <entity> <id>, additem, newquote, addassembly <quote> <assembly> [var=value...], preview <file>, import <file>, delete <entity> <id>, sync, repair, whoami, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the QuoteKeeper CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command and dispatches to methods on 'a' with the remaining tokens as
// arguments. Errors returned by handlers are printed and the loop goes on.
// The loop exits on scanner EOF, when ctx is done, or when the user types
// "exit" or "quit".
//
// Entities are named as in storage: quotes, assemblies, pricebook.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		if ctx.Err() != nil {
			return
		}
		printlnFn(fmt.Sprintf("qk %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}
		case "login":
			err = a.Login(ctx, args)
		case "logout":
			err = a.Logout(ctx)
		case "whoami":
			err = a.Whoami(ctx)
		case "l", "list":
			err = a.List(ctx, args)
		case "show":
			err = a.Show(ctx, args)
		case "delete":
			err = a.Delete(ctx, args)
		case "additem":
			err = a.AddItem(ctx)
		case "newquote":
			err = a.NewQuote(ctx)
		case "addassembly":
			err = a.AddAssembly(ctx, args)
		case "preview":
			err = a.Preview(ctx, args)
		case "import":
			err = a.Import(ctx, args)
		case "sync":
			err = a.Sync(ctx)
		case "repair":
			err = a.Repair(ctx)
		case "exit", "quit":
			printlnFn("Bye!")
			return
		default:
			printlnFn("Unknown command:", cmd)
		}
		if err != nil {
			printlnFn("Error:", err)
		}
	}
}
