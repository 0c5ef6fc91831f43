package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/leapentity/internal/cli/output"
	"github.com/leapstack-labs/leapentity/pkg/datacontext"
	"github.com/leapstack-labs/leapentity/pkg/entity"
	"github.com/spf13/cobra"
)

const shellPrompt = "leapentity> "

// NewShellCommand creates the shell command.
func NewShellCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Browse and edit entities interactively",
		Long: `Start an interactive session over the data source. Entities fetched with
.get can be changed with .set and .delete; new rows are staged with .new.
Nothing is written until .submit, which persists every pending change in one
transaction.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, dc, err := openContext(cmd)
			if err != nil {
				return err
			}
			return runShell(cmd, dc, s.Out)
		},
	}
}

func runShell(cmd *cobra.Command, dc *datacontext.Context, out *output.Renderer) error {
	ctx := cmd.Context()

	items := []readline.PrefixCompleterInterface{}
	if tables, err := dc.Tables(ctx); err == nil {
		for _, t := range tables {
			items = append(items, readline.PcItem(t.FullName()))
		}
	}
	for _, name := range shellCommands {
		items = append(items, readline.PcItem(name))
	}

	historyFile := ""
	if dir, err := os.UserCacheDir(); err == nil {
		historyFile = filepath.Join(dir, "leapentity", "shell_history")
		_ = os.MkdirAll(filepath.Dir(historyFile), 0o750)
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          shellPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    readline.NewPrefixCompleter(items...),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	sh := newShell(dc, out, cmd.ErrOrStderr())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if sh.exec(ctx, line) {
			break
		}
	}

	if n := len(dc.Pending()); n > 0 {
		out.Warn("discarding %d pending changes", n)
	}
	return nil
}

var shellCommands = []string{
	".help", ".tables", ".columns", ".pk", ".get", ".new", ".set",
	".delete", ".pending", ".submit", ".reset", ".quit", ".exit",
}

// shell executes one line at a time against a data context.
type shell struct {
	dc     *datacontext.Context
	out    *output.Renderer
	errOut io.Writer
	// loaded holds fetched rows by table and id so repeated edits reach
	// the same entity.
	loaded map[string]*entity.Entity
}

func newShell(dc *datacontext.Context, out *output.Renderer, errOut io.Writer) *shell {
	return &shell{dc: dc, out: out, errOut: errOut, loaded: make(map[string]*entity.Entity)}
}

// exec runs line and reports whether the session should end. Errors are
// printed, not returned, so the session continues.
func (sh *shell) exec(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	command, args := strings.ToLower(fields[0]), fields[1:]
	if command == ".quit" || command == ".exit" {
		return true
	}
	if err := sh.dispatch(ctx, command, args); err != nil {
		_, _ = fmt.Fprintf(sh.errOut, "Error: %v\n", err)
	}
	return false
}

func (sh *shell) dispatch(ctx context.Context, command string, args []string) error {
	switch command {
	case ".help":
		printShellHelp(sh.out.Writer())
		return nil

	case ".tables":
		tables, err := sh.dc.Tables(ctx)
		if err != nil {
			return err
		}
		rows := make([][]any, 0, len(tables))
		for _, t := range tables {
			rows = append(rows, []any{t.Schema, t.Name})
		}
		return sh.out.Table([]string{"schema", "name"}, rows)

	case ".columns":
		if len(args) != 1 {
			return errors.New("usage: .columns <table>")
		}
		cols, err := sh.dc.Columns(ctx, args[0])
		if err != nil {
			return err
		}
		return sh.out.Table(columnHeaders, columnRows(cols))

	case ".pk":
		if len(args) != 1 {
			return errors.New("usage: .pk <table>")
		}
		key, err := sh.dc.PrimaryKeyDefinition(ctx, args[0])
		if err != nil {
			return err
		}
		sh.out.Println(key)
		return nil

	case ".get":
		if len(args) != 2 {
			return errors.New("usage: .get <table> <id>")
		}
		e, err := sh.individual(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return renderEntities(sh.out, []*entity.Entity{e})

	case ".new":
		if len(args) < 1 {
			return errors.New("usage: .new <table> [column=value...]")
		}
		e, err := sh.dc.CreateEntity(ctx, args[0])
		if err != nil {
			return err
		}
		if err := assign(e, args[1:]); err != nil {
			return err
		}
		return sh.dc.Track(e)

	case ".set":
		if len(args) < 3 {
			return errors.New("usage: .set <table> <id> column=value...")
		}
		e, err := sh.individual(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return assign(e, args[2:])

	case ".delete":
		if len(args) != 2 {
			return errors.New("usage: .delete <table> <id>")
		}
		e, err := sh.individual(ctx, args[0], args[1])
		if err != nil {
			return err
		}
		return sh.dc.Delete(e)

	case ".pending":
		pending := sh.dc.Pending()
		rows := make([][]any, 0, len(pending))
		for _, e := range pending {
			rows = append(rows, []any{e.Table(), e.State().String(), strings.Join(e.Dirty(), ", ")})
		}
		return sh.out.Table([]string{"table", "state", "dirty"}, rows)

	case ".submit":
		res, err := sh.dc.SubmitPendingChanges(ctx)
		if err != nil {
			return err
		}
		clear(sh.loaded)
		sh.out.Println(fmt.Sprintf("inserted %d, updated %d, deleted %d", res.Inserted, res.Updated, res.Deleted))
		return nil

	case ".reset":
		sh.dc.ResetPending()
		clear(sh.loaded)
		return nil
	}
	return fmt.Errorf("unknown command %s (type .help for commands)", command)
}

// individual fetches the row of table whose primary key is raw, reusing a
// row fetched earlier in the session.
func (sh *shell) individual(ctx context.Context, table, raw string) (*entity.Entity, error) {
	ref := strings.ToLower(table) + "|" + raw
	if e, ok := sh.loaded[ref]; ok {
		return e, nil
	}
	key, err := sh.dc.PrimaryKeyDefinition(ctx, table)
	if err != nil {
		return nil, err
	}
	cols, err := sh.dc.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	id, err := coerceArg(table, cols, key, raw)
	if err != nil {
		return nil, err
	}
	e, err := sh.dc.GetIndividual(ctx, table, id)
	if err != nil {
		return nil, err
	}
	sh.loaded[ref] = e
	return e, nil
}

// assign applies column=value pairs as tracked writes.
func assign(e *entity.Entity, pairs []string) error {
	for _, p := range pairs {
		name, raw, ok := strings.Cut(p, "=")
		if !ok || name == "" {
			return fmt.Errorf("invalid assignment %q, expected column=value", p)
		}
		var v any = raw
		if raw == "NULL" {
			v = nil
		}
		if err := e.Set(name, v); err != nil {
			return err
		}
	}
	return nil
}

func printShellHelp(w io.Writer) {
	help := `
Commands:
  .tables                        List tables
  .columns <table>               Describe a table
  .pk <table>                    Show the primary-key column
  .get <table> <id>              Fetch one row
  .new <table> [col=value...]    Stage a new row
  .set <table> <id> col=value... Change a row
  .delete <table> <id>           Stage a row for deletion
  .pending                       List pending changes
  .submit                        Persist pending changes in one transaction
  .reset                         Discard pending changes
  .quit / .exit                  Leave the shell

Values are converted to the column type; NULL stands for a database null.
`
	_, _ = fmt.Fprintln(w, help)
}
