package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/lesson"
	"github.com/trezcool/ratiba/core/rbac"
)

var (
	readFileFunc = os.ReadFile // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf      *core.Config
	db        *sql.DB // only used by migrate
	lessonSvc *lesson.Service
	rbacSvc   *rbac.Service
	out       io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]            - run a goose command (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  seedperms [-file PATH]               - provision permissions & role groups")
	fmt.Fprintln(cli.out, "  token -user ID [-username NAME]      - print an API token for a user")
	fmt.Fprintln(cli.out, "  drafts list [-ordering FIELDS]       - list open drafts")
	fmt.Fprintln(cli.out, "  drafts discard|publish -id BATCH_ID  - discard or publish a draft")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	seedCmd := flag.NewFlagSet("seedperms", flag.ExitOnError)
	seedFile := seedCmd.String("file", "", "YAML seed file. Defaults to the bundled one.")

	tokenCmd := flag.NewFlagSet("token", flag.ExitOnError)
	tokenUser := tokenCmd.Int("user", 0, "The user's ID.")
	tokenUsername := tokenCmd.String("username", "", "The user's name, for logs.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "seedperms":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.seedPermissions(*seedFile)
	case "token":
		if err := tokenCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *tokenUser <= 0 {
			tokenCmd.Usage()
			return errHelp
		}
		return cli.token(*tokenUser, *tokenUsername)
	case "drafts":
		return cli.drafts(args[2:])
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) drafts(args []string) error {
	if len(args) == 0 {
		cli.printUsage()
		return errHelp
	}

	listCmd := flag.NewFlagSet("drafts list", flag.ExitOnError)
	listOrdering := listCmd.String("ordering", "", "Comma-separated fields, '-' prefixed for descending order.")

	actionCmd := flag.NewFlagSet("drafts "+args[0], flag.ExitOnError)
	batchID := actionCmd.Int("id", 0, "The draft's batch ID.")

	switch args[0] {
	case "list":
		if err := listCmd.Parse(args[1:]); err != nil {
			return err
		}
		return cli.listDrafts(core.ParseOrdering(*listOrdering))
	case "discard", "publish":
		if err := actionCmd.Parse(args[1:]); err != nil {
			return err
		}
		if *batchID <= 0 {
			actionCmd.Usage()
			return errHelp
		}
		if args[0] == "discard" {
			return cli.discardDraft(*batchID)
		}
		return cli.publishDraft(*batchID)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
}
