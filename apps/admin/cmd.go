package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/term"

	"github.com/trezcool/tathmini/core"
	"github.com/trezcool/tathmini/core/cache"
	"github.com/trezcool/tathmini/core/dashboard"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp  = errors.New("help provided")
	errNoDB  = errors.New("migrations need the postgres document store")
	errNoUID = errors.New("a user id is required")

	// minimum similarity of a suggested command
	minSuggestionRatio = 0.6
)

var commands = []string{"migrate", "rankings", "problems", "cache-clear", "addadmin", "token"}

type commandLine struct {
	conf  *core.Config
	db    *sql.DB // nil unless the documents live in postgres
	store core.DocumentStore
	cache *cache.Cache
	dash  *dashboard.Dashboard
	out   io.Writer
	outFd int
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run a goose migration command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  rankings [-students] [-group ID[,ID]] [-refresh] - print the group (or student) rankings")
	fmt.Fprintln(cli.out, "  problems [-refresh] - print how often each rubric option was selected")
	fmt.Fprintln(cli.out, "  cache-clear - drop every cached entry")
	fmt.Fprintln(cli.out, "  addadmin -uid UID - grant the admin role to a user")
	fmt.Fprintln(cli.out, "  token -uid UID [-email EMAIL] [-name NAME] - print a signed API token")
}

// suggest returns the known command closest to cmd, if close enough.
func suggest(cmd string) string {
	var (
		best  string
		ratio float64
	)
	for _, known := range commands {
		m := difflib.NewMatcher(strings.Split(cmd, ""), strings.Split(known, ""))
		if r := m.Ratio(); r > ratio {
			best, ratio = known, r
		}
	}
	if ratio < minSuggestionRatio {
		return ""
	}
	return best
}

// tableOutput reports whether output goes to a terminal, read by humans.
func (cli *commandLine) tableOutput() bool {
	return isTerminalFunc(cli.outFd)
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	rankingsCmd := flag.NewFlagSet("rankings", flag.ContinueOnError)
	rankingsStudents := rankingsCmd.Bool("students", false, "Rank students instead of groups.")
	rankingsGroups := rankingsCmd.String("group", "", "Only print these groups (comma separated ids).")
	rankingsRefresh := rankingsCmd.Bool("refresh", false, "Bypass the cache.")

	problemsCmd := flag.NewFlagSet("problems", flag.ContinueOnError)
	problemsRefresh := problemsCmd.Bool("refresh", false, "Bypass the cache.")

	addAdminCmd := flag.NewFlagSet("addadmin", flag.ContinueOnError)
	addAdminUID := addAdminCmd.String("uid", "", "The user id, as found in the API tokens.")

	tokenCmd := flag.NewFlagSet("token", flag.ContinueOnError)
	tokenUID := tokenCmd.String("uid", "", "The user id.")
	tokenEmail := tokenCmd.String("email", "", "The user email.")
	tokenName := tokenCmd.String("name", "", "The user name.")

	for _, fs := range []*flag.FlagSet{rankingsCmd, problemsCmd, addAdminCmd, tokenCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "rankings":
		if err := rankingsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.rankings(ctx, *rankingsStudents, splitIDs(*rankingsGroups), *rankingsRefresh)
	case "problems":
		if err := problemsCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.problems(ctx, *problemsRefresh)
	case "cache-clear":
		return cli.cacheClear()
	case "addadmin":
		if err := addAdminCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addAdminUID == "" {
			addAdminCmd.Usage()
			return errNoUID
		}
		return cli.addAdmin(ctx, *addAdminUID)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *tokenUID == "" {
			tokenCmd.Usage()
			return errNoUID
		}
		return cli.token(core.Identity{ID: *tokenUID, Email: *tokenEmail, Name: *tokenName})
	default:
		if s := suggest(args[1]); s != "" {
			fmt.Fprintf(cli.out, "unknown command %q, did you mean %q?\n", args[1], s)
		}
		cli.printUsage()
		return errHelp
	}
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = core.CleanString(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
