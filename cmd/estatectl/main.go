// Command estatectl runs maintenance tasks against the house security
// database: applying migrations, bootstrapping the first admin and printing
// the capability table.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

type command struct {
	name    string
	summary string
	run     func(args []string, stdout io.Writer) error
}

var commands = []command{
	{"migrate", "apply pending database migrations", runMigrate},
	{"create-admin", "create an admin account", runCreateAdmin},
	{"capabilities", "print the capability table", runCapabilities},
	{"gen-secret", "generate a random token signing secret", runGenSecret},
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "estatectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(stdout)
		return nil
	}

	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:], stdout)
		}
	}
	return fmt.Errorf("unknown command %q (run estatectl help)", args[0])
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: estatectl <command> [flags]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-14s %s\n", cmd.name, cmd.summary)
	}
}

// parseFlags parses args and treats --help as a successful no-op.
func parseFlags(flagSet *pflag.FlagSet, args []string, stdout io.Writer) (bool, error) {
	flagSet.SetOutput(stdout)
	if err := flagSet.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return false, nil
		}
		return false, err
	}
	if rest := flagSet.Args(); len(rest) > 0 {
		return false, fmt.Errorf("unexpected argument: %s", rest[0])
	}
	return true, nil
}
