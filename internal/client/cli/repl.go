package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// errUsage marks a command invoked with the wrong arguments.
var errUsage = errors.New("usage")

const (
	helpGuest = "Available commands: register, login, show <id>, add <id> [variant], inc|dec <id> [variant], " +
		"set <id> <qty> [variant], rm <id> [variant], cart, exit"
	helpUser = "Available commands: show <id>, add <id> [variant], inc|dec <id> [variant], " +
		"set <id> <qty> [variant], rm <id> [variant], cart, sync, checkout [address], status, logout, exit"
)

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn(ctx context.Context) bool
	loginRequested() bool

	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error

	Show(ctx context.Context, args []string) error
	Add(ctx context.Context, args []string) error
	Increase(ctx context.Context, args []string) error
	Decrease(ctx context.Context, args []string) error
	SetQuantity(ctx context.Context, args []string) error
	Remove(ctx context.Context, args []string) error
	Cart(ctx context.Context) error
	Sync(ctx context.Context) error
	Checkout(ctx context.Context, args []string) error
}

// runREPL starts a simple read–eval–print loop for the storefront CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit".
//
// Before each prompt the loop checks whether the session was dropped (see
// App.RedirectToLogin) and, if so, asks for credentials.
//
// Command errors are printed and the loop goes on.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		if a.loginRequested() {
			printlnFn("Your session has expired. Please log in again.")
			report(a.Login(ctx))
		}

		printlnFn(fmt.Sprintf("shop %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}

		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn(ctx) {
				printlnFn(helpUser)
			} else {
				printlnFn(helpGuest)
			}

		case "register":
			report(a.Register(ctx))
		case "login":
			report(a.Login(ctx))
		case "logout":
			report(a.Logout(ctx))
		case "status":
			report(a.Status(ctx))

		case "show":
			report(a.Show(ctx, args))
		case "add":
			report(a.Add(ctx, args))
		case "inc":
			report(a.Increase(ctx, args))
		case "dec":
			report(a.Decrease(ctx, args))
		case "set":
			report(a.SetQuantity(ctx, args))
		case "rm", "remove":
			report(a.Remove(ctx, args))
		case "cart", "c":
			report(a.Cart(ctx))
		case "sync":
			report(a.Sync(ctx))
		case "checkout":
			report(a.Checkout(ctx, args))

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}

func report(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, errUsage) {
		printlnFn(err.Error())
		return
	}
	printlnFn("error:", err)
}
