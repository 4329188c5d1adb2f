// Command txn is the transactional file installer's CLI: db-init,
// install, install-exact, remove, rollback, and list-modules subcommands
// over a single journal database. The binary also honours being invoked
// under a "txn-<sub>" name (e.g. a symlink named txn-rollback), dispatching
// straight to that subcommand without it appearing on the command line.
package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/alecthomas/kingpin.v2"

	"github.com/jpl-au/txn"
)

// features lists the capabilities this build supports, printed by
// --features and exited immediately, the way --version is.
var features = []string{
	"db-init",
	"install",
	"install-exact",
	"remove",
	"rollback",
	"list-modules",
}

var (
	app = kingpin.New("txn", "Transactional wrapper around install(1): every create, patch, and remove is journaled so a module of changes can be rolled back.")
	db  = app.Flag("db", "Database directory (overrides "+txn.EnvDatabaseDir+").").String()
	mod = app.Flag("module", "Module tag stamped into records (overrides "+txn.EnvModule+").").String()
	dbg = app.Flag("debug", "Enable debug-level logging.").Bool()

	dbInitCmd = app.Command("db-init", "Create a new, empty database.")

	installCmd     = app.Command("install", "Install sources to dest, journaling each one.")
	installDest    = installCmd.Flag("dest", "Destination file or directory.").Required().String()
	installCopy    = installCmd.Flag("copy", "Copy semantics (install(1) -c).").Short('c').Bool()
	installGroup   = installCmd.Flag("group", "Group owner for the installed file (install(1) -g).").Short('g').String()
	installMode    = installCmd.Flag("mode", "Permission mode for the installed file (install(1) -m).").Short('m').String()
	installOwner   = installCmd.Flag("owner", "Owner for the installed file (install(1) -o).").Short('o').String()
	installSources = installCmd.Arg("source", "Source file(s).").Required().Strings()

	installExactCmd     = app.Command("install-exact", "Install sources to dest, preserving each source's owner, group, and mode exactly.")
	installExactDest    = installExactCmd.Flag("dest", "Destination file or directory.").Required().String()
	installExactSources = installExactCmd.Arg("source", "Source file(s).").Required().Strings()

	removeCmd  = app.Command("remove", "Remove a file, journaling a backup of its contents.")
	removePath = removeCmd.Arg("path", "File to remove.").Required().String()

	rollbackCmd    = app.Command("rollback", "Undo every active change recorded for module.")
	rollbackModule = rollbackCmd.Arg("module", "Module to roll back.").Required().String()

	listModulesCmd = app.Command("list-modules", "List modules with active (non-rolled-back) records.")
)

func main() {
	app.HelpFlag.Short('h')
	app.Version(txn.Version)
	app.VersionFlag.Short('V')

	args := os.Args[1:]
	for _, a := range args {
		if a == "--" {
			break
		}
		if a == "--features" {
			for _, f := range features {
				os.Stdout.WriteString(f + "\n")
			}
			return
		}
	}

	if sub, ok := subcommandFromArgv0(os.Args[0]); ok {
		args = append([]string{sub}, args...)
	}

	cmd := kingpin.MustParse(app.Parse(args))

	log := logrus.New()
	if *dbg {
		log.SetLevel(logrus.DebugLevel)
	}

	dir := *db
	if dir == "" {
		dir = txn.DatabaseDir()
	}
	module := *mod
	if module == "" {
		module = txn.Module()
	}

	if err := run(cmd, dir, module, log); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}

// subcommandFromArgv0 reports the subcommand implied by argv0's basename
// when it carries a "txn-" prefix, e.g. "txn-rollback" implies "rollback".
func subcommandFromArgv0(argv0 string) (string, bool) {
	base := filepath.Base(argv0)
	if !strings.HasPrefix(base, "txn-") {
		return "", false
	}
	sub := strings.TrimPrefix(base, "txn-")
	if sub == "" {
		return "", false
	}
	return sub, true
}

func run(cmd, dir, module string, log *logrus.Logger) error {
	switch cmd {
	case dbInitCmd.FullCommand():
		j, err := txn.OpenOrCreate(dir, false)
		if err != nil {
			return err
		}
		return j.Close()

	case installCmd.FullCommand():
		j, err := txn.OpenOrCreate(dir, true)
		if err != nil {
			return err
		}
		defer j.Close()
		var flags []string
		if *installCopy {
			flags = append(flags, "-c")
		}
		if *installGroup != "" {
			flags = append(flags, "-g", *installGroup)
		}
		if *installMode != "" {
			flags = append(flags, "-m", *installMode)
		}
		if *installOwner != "" {
			flags = append(flags, "-o", *installOwner)
		}
		opts := txn.InstallOptions{Flags: flags}
		return txn.Install(j, *installSources, *installDest, module, opts, log)

	case installExactCmd.FullCommand():
		j, err := txn.OpenOrCreate(dir, true)
		if err != nil {
			return err
		}
		defer j.Close()
		opts := txn.InstallOptions{Exact: true}
		return txn.Install(j, *installExactSources, *installExactDest, module, opts, log)

	case removeCmd.FullCommand():
		j, err := txn.OpenOrCreate(dir, true)
		if err != nil {
			return err
		}
		defer j.Close()
		return txn.Remove(j, *removePath, module)

	case rollbackCmd.FullCommand():
		j, err := txn.OpenOrCreate(dir, true)
		if err != nil {
			return err
		}
		defer j.Close()
		return txn.Rollback(j, *rollbackModule, log)

	case listModulesCmd.FullCommand():
		j, err := txn.Open(dir)
		if err != nil {
			return err
		}
		defer j.Close()
		modules, err := txn.Modules(j)
		if err != nil {
			return err
		}
		for _, m := range modules {
			os.Stdout.WriteString(m + "\n")
		}
		return nil
	}
	return nil
}
