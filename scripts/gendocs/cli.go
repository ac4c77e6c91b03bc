package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/leapstack-labs/leapidl/internal/cli"
	"github.com/leapstack-labs/leapidl/internal/cli/config"
)

// commandGroup orders the index by what a command does to the model.
type commandGroup struct {
	title    string
	summary  string
	commands []string
}

var commandGroups = []commandGroup{
	{"Pipeline", "Check the model and its projections, then generate artifacts.", []string{"validate", "plan", "build"}},
	{"Inspection", "Look at what is registered and what earlier builds produced.", []string{"list", "history"}},
	{"Utilities", "", []string{"version", "completion"}},
}

// listSubjects maps each list argument to its generated catalog page.
var listSubjects = map[string]struct{ page, desc string }{
	"rules":      {"rules", "Built-in and script validation rules with their default severity"},
	"transforms": {"transforms", "Transforms usable in a projection chain, including apply"},
	"plugins":    {"plugins", "Generator plugins that can be attached to a projection"},
}

// flags that select work for one invocation and have no config key
var invocationOnlyFlags = map[string]bool{"config": true, "watch": true, "projection": true}

// generateCLIDocs writes index.md plus one page per visible command.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	cmds := visibleCommands(root)

	if err := os.WriteFile(filepath.Join(outDir, "index.md"), cliIndexPage(root, cmds), 0600); err != nil {
		return fmt.Errorf("failed to generate index: %w", err)
	}
	log.Printf("  Generated index.md")

	for _, cmd := range cmds {
		if err := os.WriteFile(filepath.Join(outDir, cmd.Name()+".md"), commandPage(cmd), 0600); err != nil {
			return fmt.Errorf("failed to generate page for %s: %w", cmd.Name(), err)
		}
		log.Printf("  Generated %s.md", cmd.Name())
	}
	return nil
}

func visibleCommands(root *cobra.Command) map[string]*cobra.Command {
	out := make(map[string]*cobra.Command)
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" || cmd.Name() == "__complete" {
			continue
		}
		out[cmd.Name()] = cmd
	}
	return out
}

func cliIndexPage(root *cobra.Command, cmds map[string]*cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for leapidl")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph("leapidl validates an interface model, derives its projections and runs the generator plugins of each projection.")
	w.CodeBlock("bash", `go install github.com/leapstack-labs/leapidl/cmd/leapidl@latest
leapidl validate        # check the model
leapidl plan            # resolve projections without building
leapidl build --watch   # build, then rebuild on change`)

	grouped := make(map[string]bool)
	for _, g := range commandGroups {
		rows := commandRows(cmds, g.commands)
		if len(rows) == 0 {
			continue
		}
		w.Header(2, g.title)
		if g.summary != "" {
			w.Paragraph(g.summary)
		}
		w.Table([]string{"Command", "Description"}, rows)
		for _, name := range g.commands {
			grouped[name] = true
		}
	}
	var rest []string
	for name := range cmds {
		if !grouped[name] {
			rest = append(rest, name)
		}
	}
	if len(rest) > 0 {
		slices.Sort(rest)
		w.Header(2, "Other")
		w.Table([]string{"Command", "Description"}, commandRows(cmds, rest))
	}

	w.Header(2, "Global Options")
	writeFlagsTable(w, root.PersistentFlags())

	w.Header(2, "Configuration")
	w.Paragraph("Settings resolve in this order, later sources winning: defaults, " +
		InlineCode("leapidl-build.yaml") + ", " + InlineCode(config.EnvPrefix+"*") +
		" environment variables, then flags given on the command line. Relative paths from the build file or the environment are resolved against the project root.")
	w.Table([]string{"Variable", "Flag", "Description"}, envRows(root, cmds["build"]))

	w.Header(2, "Exit Codes")
	w.Table([]string{"Code", "Meaning"}, [][]string{
		{InlineCode("0"), "Every selected projection succeeded, or validation found no errors"},
		{InlineCode("1"), "A projection failed, planning or validation reported errors, or the command could not run"},
	})
	return w.Bytes()
}

func commandRows(cmds map[string]*cobra.Command, names []string) [][]string {
	var rows [][]string
	for _, name := range names {
		cmd, ok := cmds[name]
		if !ok {
			continue
		}
		link := fmt.Sprintf("[%s](/cli/%s)", InlineCode(cmd.Name()), cmd.Name())
		rows = append(rows, []string{link, cleanDescription(cmd.Short)})
	}
	return rows
}

// envRows lists the environment variable of every flag backed by a config
// key, derived the same way the config loader maps names.
func envRows(root, build *cobra.Command) [][]string {
	var rows [][]string
	add := func(f *pflag.Flag) {
		if f.Hidden || invocationOnlyFlags[f.Name] {
			return
		}
		env := config.EnvPrefix + strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		rows = append(rows, []string{InlineCode(env), InlineCode("--" + f.Name), cleanDescription(f.Usage)})
	}
	root.PersistentFlags().VisitAll(add)
	if build != nil {
		build.LocalNonPersistentFlags().VisitAll(add)
	}
	return rows
}

func commandPage(cmd *cobra.Command) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	usage := cmd.UseLine()
	if !strings.HasPrefix(usage, "leapidl") {
		usage = "leapidl " + usage
	}
	w.CodeBlock("bash", usage)

	if len(cmd.ValidArgs) > 0 {
		w.Header(2, "Arguments")
		var rows [][]string
		for _, arg := range cmd.ValidArgs {
			desc := ""
			if s, ok := listSubjects[arg]; ok && cmd.Name() == "list" {
				desc = fmt.Sprintf("%s. See [%s](/reference/%s).", s.desc, s.page, s.page)
			}
			rows = append(rows, []string{InlineCode(arg), desc})
		}
		w.Table([]string{"Argument", "Description"}, rows)
	}

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlagsTable(w, cmd.LocalFlags())
	}
	if cmd.HasInheritedFlags() {
		w.Paragraph("Global options apply as well. See the [CLI reference](/cli/index).")
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w.Bytes()
}

func writeFlagsTable(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name = InlineCode("-"+f.Shorthand) + ", " + name
		}
		def := f.DefValue
		switch f.Value.Type() {
		case "bool":
			if def == "false" {
				def = ""
			}
		case "stringSlice", "stringArray":
			if def == "[]" {
				def = ""
			}
		}
		if def != "" {
			def = InlineCode(def)
		}
		rows = append(rows, []string{name, f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Option", "Type", "Default", "Description"}, rows)
}

// cleanExample strips the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(strings.Trim(example, "\n"), "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
