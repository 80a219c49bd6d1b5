package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/match"
)

func printPluginUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  compwm plugin list [--json]")
	fmt.Fprintln(w, "  compwm plugin activate <name>")
	fmt.Fprintln(w, "  compwm plugin deactivate <name>")
}

func runPlugin(args []string) int {
	if len(args) == 0 {
		printPluginUsage(os.Stderr)
		return 2
	}

	client := ipc.NewClient()
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("plugin list", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		jsonOut := fs.Bool("json", false, "Print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		data, err := client.ListPlugins()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if *jsonOut {
			return printJSON(data)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "POS\tNAME\tSOURCE\tDEPS")
		for _, p := range data.Plugins {
			pos := "-"
			if p.Active {
				pos = fmt.Sprint(p.Position)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", pos, p.Name, p.Source, strings.Join(p.Deps, ","))
		}
		tw.Flush()
		return 0

	case "activate", "deactivate":
		if len(args) != 2 {
			fmt.Fprintf(os.Stderr, "%s requires <name>\n", args[0])
			return 2
		}
		var (
			data *ipc.StackData
			err  error
		)
		if args[0] == "activate" {
			data, err = client.Activate(args[1])
		} else {
			data, err = client.Deactivate(args[1])
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Printf("plugins: %s\n", strings.Join(data.ActivePlugins, " "))
		return 0

	case "help", "-h", "--help":
		printPluginUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown plugin command: %s\n\n", args[0])
		printPluginUsage(os.Stderr)
		return 2
	}
}

func printOptionUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  compwm option get [--scope SCOPE] [--json] <plugin> [name]")
	fmt.Fprintln(w, "  compwm option set [--scope SCOPE] <plugin> <name> <value>")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "SCOPE is display (default), screens.N or screens.all.")
	fmt.Fprintln(w, "List values are comma separated; colors are #rrggbb[aa].")
}

func runOption(args []string) int {
	if len(args) == 0 {
		printOptionUsage(os.Stderr)
		return 2
	}

	fs := flag.NewFlagSet("option "+args[0], flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	scope := fs.String("scope", "display", "Option scope")
	client := ipc.NewClient()

	switch args[0] {
	case "get":
		jsonOut := fs.Bool("json", false, "Print JSON")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() < 1 || fs.NArg() > 2 {
			printOptionUsage(os.Stderr)
			return 2
		}
		data, err := client.GetOptions(fs.Arg(0), *scope)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if name := fs.Arg(1); name != "" {
			var kept []ipc.OptionInfo
			for _, o := range data.Options {
				if o.Name == name {
					kept = append(kept, o)
				}
			}
			if len(kept) == 0 {
				fmt.Fprintf(os.Stderr, "plugin %s has no option %q in scope %s\n", data.Plugin, name, data.Scope)
				return 1
			}
			data.Options = kept
		}
		if *jsonOut {
			return printJSON(data)
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tTYPE\tVALUE\tALLOWED")
		for _, o := range data.Options {
			typ := o.Type
			if o.ElementType != "" {
				typ += "<" + o.ElementType + ">"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.Name, typ, o.Text, o.Restriction)
		}
		tw.Flush()
		return 0

	case "set":
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}
		if fs.NArg() != 3 {
			printOptionUsage(os.Stderr)
			return 2
		}
		res, err := client.SetOption(fs.Arg(0), *scope, fs.Arg(1), fs.Arg(2))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if !res.Changed {
			fmt.Printf("%s.%s unchanged: %s\n", fs.Arg(0), fs.Arg(1), res.Value)
			return 0
		}
		fmt.Printf("%s.%s = %s\n", fs.Arg(0), fs.Arg(1), res.Value)
		return 0

	case "help", "-h", "--help":
		printOptionUsage(os.Stdout)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown option command: %s\n\n", args[0])
		printOptionUsage(os.Stderr)
		return 2
	}
}

func runWindow(args []string) int {
	if len(args) == 0 || args[0] != "list" {
		fmt.Fprintln(os.Stderr, "Usage: compwm window list [--json] [--match EXPR]")
		return 2
	}
	fs := flag.NewFlagSet("window list", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Print JSON")
	expr := fs.String("match", "", "Only list windows matching this expression")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}

	client := ipc.NewClient()
	data, err := client.ListWindows()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *expr != "" {
		res, err := client.EvalMatch(*expr)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		keep := make(map[string]bool, len(res.Matches))
		for _, id := range res.Matches {
			keep[id] = true
		}
		var kept []ipc.WindowInfo
		for _, w := range data.Windows {
			if keep[w.ID] {
				kept = append(kept, w)
			}
		}
		data.Windows = kept
	}
	if *jsonOut {
		return printJSON(data)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSCREEN\tTYPE\tCLASS\tGEOMETRY\tTITLE")
	for _, w := range data.Windows {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%dx%d+%d+%d\t%s\n",
			w.ID, w.Screen, w.Type, w.Class, w.Width, w.Height, w.X, w.Y, w.Title)
	}
	tw.Flush()
	return 0
}

func runMatch(args []string) int {
	if len(args) != 2 || (args[0] != "eval" && args[0] != "check") {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  compwm match eval <expr>    List the managed windows expr matches")
		fmt.Fprintln(os.Stderr, "  compwm match check <expr>   Print the normalised expression (offline)")
		return 2
	}

	if args[0] == "check" {
		x := match.Parse(args[1])
		if x.Empty() {
			fmt.Println("(empty: matches nothing)")
			return 0
		}
		fmt.Println(x.String())
		return 0
	}

	res, err := ipc.NewClient().EvalMatch(args[1])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	fmt.Printf("expr: %s\n", res.Expr)
	fmt.Printf("matched %d of %d windows\n", len(res.Matches), res.Checked)
	for _, id := range res.Matches {
		fmt.Println(id)
	}
	return 0
}
