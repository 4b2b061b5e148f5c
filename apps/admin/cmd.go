package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/arkibo/backend/core"
	"github.com/arkibo/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sqlx.DB
	conf    *core.Config
	usrRepo user.Repository
	cfgRepo user.ConfigRepository
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [up|down|status|version] - run database migrations")
	fmt.Println("  adduser -name NAME -email EMAIL [-admin] - add or update an account; the password is prompted next")
	fmt.Println("  approveteacher -email EMAIL - add a teacher email to the approved list")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ExitOnError)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserAdmin := addUserCmd.Bool("admin", false, "Grant the admin role.")

	approveTeacherCmd := flag.NewFlagSet("approveteacher", flag.ExitOnError)
	approveTeacherEmail := approveTeacherCmd.String("email", "", "The teacher's email.")

	switch args[1] {
	case "migrate":
		migrateArgs := args[2:]
		if len(migrateArgs) == 0 {
			migrateArgs = []string{"up"}
		}
		return cli.migrate(migrateArgs)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(syscall.Stdin)
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(*addUserName, *addUserEmail, string(pwd), *addUserAdmin)
	case "approveteacher":
		if err := approveTeacherCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *approveTeacherEmail == "" {
			approveTeacherCmd.Usage()
			return errHelp
		}
		return cli.approveTeacher(*approveTeacherEmail)
	default:
		cli.printUsage()
		return errHelp
	}
}
