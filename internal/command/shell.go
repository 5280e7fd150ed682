package command

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	prompt "github.com/joeycumines/go-prompt"
	istrings "github.com/joeycumines/go-prompt/strings"
	"github.com/wrtplugins/wrt/internal/argv"
	"github.com/wrtplugins/wrt/internal/config"
	"golang.org/x/term"
)

// ShellCommand runs a widget with an interactive prompt. Plain lines are
// evaluated as JavaScript on the widget's page; lines starting with ':' are
// shell or simulation commands.
type ShellCommand struct {
	*BaseCommand
	config *config.Config
	widget widgetFlags
	prefix string

	// stdin is read line by line when it is not a terminal.
	stdin io.Reader
}

// NewShellCommand creates a new shell command.
func NewShellCommand(cfg *config.Config) *ShellCommand {
	return &ShellCommand{
		BaseCommand: NewBaseCommand(
			"shell",
			"Interact with a running widget and inject device events",
			"shell [options] <manifest.yaml>",
		),
		config: cfg,
		stdin:  os.Stdin,
	}
}

// SetupFlags configures the flags for the shell command.
func (c *ShellCommand) SetupFlags(fs *flag.FlagSet) {
	c.widget.setup(fs)
	fs.StringVar(&c.prefix, "prompt", c.config.Command("shell").String("prompt"), "Prompt prefix")
}

// Execute runs the shell until the input ends, ':quit' is entered or ctx is
// cancelled.
func (c *ShellCommand) Execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		_, _ = fmt.Fprintf(stderr, "Usage: wrt %s\n", c.Usage())
		return fmt.Errorf("expected one manifest, got %d arguments", len(args))
	}

	s, err := openSession(ctx, c.config, &c.widget, args[0], stderr)
	if err != nil {
		return err
	}
	defer func() { _ = s.Close() }()

	sh := &shell{session: s, out: stdout}
	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		_, _ = fmt.Fprintf(stdout, "%s %s. Type :help for commands, :quit to exit.\n", s.widget.Manifest().ID, s.widget.Manifest().Version)
		sh.runPrompt(ctx, c.prefix)
		return nil
	}
	return sh.runLines(ctx, c.stdin)
}

type shell struct {
	*session
	out io.Writer
}

var shellCommands = []struct{ name, help string }{
	{"help", "Show this help"},
	{"quit", "Leave the shell"},
	{"stats", "Show callback bridge counters"},
	{"reload", "Unload the page and load it again"},
}

// execute runs one input line and reports whether the shell should go on.
func (sh *shell) execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return true
	}
	cmd, isCommand := strings.CutPrefix(line, ":")
	if !isCommand {
		sh.eval(line)
		return true
	}

	name, rest, _ := strings.Cut(strings.TrimSpace(cmd), " ")
	switch name {
	case "quit", "exit", "q":
		return false
	case "help":
		sh.help()
	case "stats":
		st := sh.widget.Bridge().Stats()
		_, _ = fmt.Fprintf(sh.out, "listeners %d, scheduled %d, delivered %d, dropped %d, failed %d\n",
			sh.widget.Bridge().Len(), st.Scheduled, st.Delivered, st.Dropped, st.Failed)
	case "reload":
		sh.reload()
	default:
		if err := sh.sim.Exec(ctx, strings.TrimSpace(name+" "+rest)); err != nil {
			_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
	return true
}

func (sh *shell) eval(code string) {
	v, err := sh.page.Eval(code)
	if err != nil {
		_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	_, _ = fmt.Fprintln(sh.out, formatValue(v))
}

func (sh *shell) help() {
	_, _ = fmt.Fprintln(sh.out, "Lines are evaluated as JavaScript on the page. Commands:")
	for _, c := range shellCommands {
		_, _ = fmt.Fprintf(sh.out, "  :%-28s %s\n", c.name, c.help)
	}
	for _, c := range sh.sim.Commands() {
		_, _ = fmt.Fprintf(sh.out, "  :%-28s %s\n", c.Name+" "+c.Usage, c.Help)
	}
}

func (sh *shell) reload() {
	name := sh.page.Name()
	sh.page.Unload()
	p, err := sh.widget.LoadPage(name)
	if err != nil {
		_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		return
	}
	sh.page = p
	if path := sh.widget.Manifest().StartPath(); path != "" {
		if err := p.RunFile(path); err != nil {
			_, _ = fmt.Fprintf(sh.out, "error: %v\n", err)
		}
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return "undefined"
	case string:
		return v
	case map[string]any, []any:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return fmt.Sprint(v)
}

func (sh *shell) runLines(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if ctx.Err() != nil || !sh.execute(ctx, scanner.Text()) {
			return nil
		}
	}
	return scanner.Err()
}

func (sh *shell) runPrompt(ctx context.Context, prefix string) {
	executor := func(line string) {
		sh.execute(ctx, line)
	}
	completer := func(d prompt.Document) ([]prompt.Suggest, istrings.RuneNumber, istrings.RuneNumber) {
		before := d.TextBeforeCursor()
		suggestions, start := sh.complete(before)
		return suggestions, istrings.RuneNumber(utf8.RuneCountInString(before[:start])), istrings.RuneNumber(utf8.RuneCountInString(before))
	}
	p := prompt.New(executor,
		prompt.WithPrefix(prefix),
		prompt.WithCompleter(completer),
		prompt.WithExitChecker(func(in string, breakline bool) bool {
			if ctx.Err() != nil {
				return true
			}
			cmd, ok := strings.CutPrefix(strings.TrimSpace(in), ":")
			return breakline && ok && slices.Contains([]string{"quit", "exit", "q"}, cmd)
		}),
	)
	p.Run()
}

var jsPath = regexp.MustCompile(`[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*\.?$`)

// complete returns suggestions for the text before the cursor and the byte
// offset the replaced text starts at.
func (sh *shell) complete(before string) ([]prompt.Suggest, int) {
	if cmd, ok := strings.CutPrefix(before, ":"); ok {
		completed, cur := argv.BeforeCursor(cmd)
		var out []prompt.Suggest
		if len(completed) == 0 {
			for _, c := range shellCommands {
				if strings.HasPrefix(c.name, cur.Text) {
					out = append(out, prompt.Suggest{Text: c.name, Description: c.help})
				}
			}
		}
		for _, v := range sh.sim.Complete(completed, cur.Text) {
			out = append(out, prompt.Suggest{Text: v})
		}
		return out, 1 + cur.Offset
	}

	loc := jsPath.FindStringIndex(before)
	if loc == nil {
		return nil, len(before)
	}
	path := before[loc[0]:loc[1]]
	object, partial := "globalThis", path
	if i := strings.LastIndex(path, "."); i >= 0 {
		object, partial = path[:i], path[i+1:]
	}
	v, err := sh.page.Eval(`(function (o) { var out = []; for (; o != null; o = Object.getPrototypeOf(o)) out = out.concat(Object.getOwnPropertyNames(o)); return out; })(` + object + `)`)
	if err != nil {
		return nil, len(before)
	}
	names, _ := v.([]any)
	var out []prompt.Suggest
	seen := map[string]bool{}
	for _, n := range names {
		s, ok := n.(string)
		if !ok || seen[s] || !strings.HasPrefix(s, partial) || strings.HasPrefix(s, "__") {
			continue
		}
		seen[s] = true
		out = append(out, prompt.Suggest{Text: s})
	}
	slices.SortFunc(out, func(a, b prompt.Suggest) int { return strings.Compare(a.Text, b.Text) })
	return out, len(before) - len(partial)
}
