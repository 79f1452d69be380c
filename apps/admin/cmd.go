package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/term"

	"github.com/trezcool/masomo-console/core"
	"github.com/trezcool/masomo-console/core/dashboard"
	"github.com/trezcool/masomo-console/core/entity"
	"github.com/trezcool/masomo-console/services/upstream"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")

	// the CLI acts as a console admin
	cliOperator = core.Operator{Username: "admin-cli", Roles: core.AllRoles}
)

type commandLine struct {
	conf     *core.Config
	validate *validator.Validate
	registry *entity.Registry
	client   *upstream.Client
	logger   core.Logger
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  stats -entity KIND [-file DUMP.json] [-scope page|all] [-username USERNAME] - summarize an entity list")
	fmt.Fprintln(cli.out, "  view -entity KIND [-file DUMP.json] [-search S] [-ordering F] [-page N] [-page-size N] [-username USERNAME] - print one page of an entity list")
	fmt.Fprintln(cli.out, "  diff -from A.json -to B.json - print the changes between two form states")
	fmt.Fprintln(cli.out, "  token -username USERNAME -roles ROLES [-ttl 1h] - issue a console access token")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	statsCmd := flag.NewFlagSet("stats", flag.ExitOnError)
	statsEntity := statsCmd.String("entity", "", "The entity kind, e.g. faculty.")
	statsFile := statsCmd.String("file", "", "A JSON dump of the list to read instead of the API.")
	statsScope := statsCmd.String("scope", dashboard.ScopePage, "page: the first page; all: every page.")
	statsUname := statsCmd.String("username", "", "Log in to the API as this user. The password will be prompted next.")

	viewCmd := flag.NewFlagSet("view", flag.ExitOnError)
	viewEntity := viewCmd.String("entity", "", "The entity kind, e.g. faculty.")
	viewFile := viewCmd.String("file", "", "A JSON dump of the list to read instead of the API.")
	viewSearch := viewCmd.String("search", "", "Search text.")
	viewFuzzy := viewCmd.Bool("fuzzy", false, "Fuzzy search.")
	viewOrdering := viewCmd.String("ordering", "", "Sort field, prefixed with '-' for descending order.")
	viewPage := viewCmd.Int("page", 1, "The page to print.")
	viewPageSize := viewCmd.Int("page-size", 0, "The page size.")
	viewUname := viewCmd.String("username", "", "Log in to the API as this user. The password will be prompted next.")

	diffCmd := flag.NewFlagSet("diff", flag.ExitOnError)
	diffFrom := diffCmd.String("from", "", "The original form state (JSON file).")
	diffTo := diffCmd.String("to", "", "The edited form state (JSON file).")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenUname := tokenCmd.String("username", "", "The operator's username.")
	tokenRoles := tokenCmd.String("roles", "", "Comma-separated roles, e.g. admin:registrar,viewer:")
	tokenTTL := tokenCmd.Duration("ttl", time.Hour, "How long the token is valid.")

	ctx := context.Background()

	switch args[1] {
	case "stats":
		if err := statsCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *statsEntity == "" {
			statsCmd.Usage()
			return errHelp
		}
		op, err := cli.login(ctx, statsCmd, *statsUname, *statsFile)
		if err != nil {
			return err
		}
		return cli.stats(ctx, op, *statsFile, dashboard.Query{Kind: *statsEntity, Scope: *statsScope})

	case "view":
		if err := viewCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *viewEntity == "" {
			viewCmd.Usage()
			return errHelp
		}
		op, err := cli.login(ctx, viewCmd, *viewUname, *viewFile)
		if err != nil {
			return err
		}
		return cli.view(ctx, op, *viewFile, dashboard.Query{
			Kind:     *viewEntity,
			Page:     *viewPage,
			PageSize: *viewPageSize,
			Search:   *viewSearch,
			Fuzzy:    *viewFuzzy,
			Ordering: *viewOrdering,
		})

	case "diff":
		if err := diffCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *diffFrom == "" || *diffTo == "" {
			diffCmd.Usage()
			return errHelp
		}
		return cli.diff(*diffFrom, *diffTo)

	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUname == "" || *tokenRoles == "" {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUname, core.SplitCSV(*tokenRoles), *tokenTTL)

	default:
		cli.printUsage()
		return errHelp
	}
}

// login logs in to the API as `uname` when given, prompting for the password.
// Reading from a dump needs no login.
func (cli *commandLine) login(ctx context.Context, cmd *flag.FlagSet, uname, file string) (core.Operator, error) {
	if uname == "" || file != "" {
		return cliOperator, nil
	}

	fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Fprintln(cli.out)
	if err != nil {
		return core.Operator{}, err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return core.Operator{}, errHelp
	}
	if _, err := cli.client.Login(ctx, uname, string(pwd)); err != nil {
		return core.Operator{}, err
	}

	op := cliOperator
	op.Username = uname
	return op, nil
}

// service returns a dashboard service reading from the API, or from `file` when given.
func (cli *commandLine) service(file string) *dashboard.Service {
	var source dashboard.Upstream = cli.client
	if file != "" {
		source = dumpFile(file)
	}
	return dashboard.NewService(dashboard.NewOptions(cli.conf), cli.registry, source, core.NoCache{}, cli.validate, cli.logger)
}
