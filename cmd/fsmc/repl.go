package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/fallen/migen/internal/compiler"
	"github.com/fallen/migen/internal/config"
	"github.com/fallen/migen/internal/lexer"
	"github.com/fallen/migen/internal/parser"
	"github.com/fallen/migen/internal/verilog"
)

const (
	historyFile = ".fsmc_history"
	promptMain  = "fsmc> "
	promptCont  = "  ... "
)

func cmdRepl(args []string) error {
	fs := flag.NewFlagSet("repl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "project file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(cfgPath)
	if err != nil {
		return err
	}

	fmt.Printf("fsmc %s. Enter a function; :verilog prints the last one, :quit exits.\n", version)

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	var last *compiler.Result
	for {
		src, ok := readByParseProbe(ln, promptMain, promptCont)
		if !ok {
			fmt.Println()
			return nil
		}
		cmd := strings.TrimSpace(src)
		if cmd == "" {
			continue
		}

		if strings.HasPrefix(cmd, ":") {
			switch strings.ToLower(cmd) {
			case ":quit", ":q":
				return nil
			case ":verilog", ":v":
				if last == nil {
					fmt.Println("nothing compiled yet")
					continue
				}
				if err := verilog.Write(os.Stdout, designOf(last, cfg, "")); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			default:
				fmt.Println("unknown command. Type :verilog or :quit.")
			}
			continue
		}

		ln.AppendHistory(src)
		res, err := compileEntry(src, cfg)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			continue
		}
		last = res
		printResult(os.Stdout, res)
	}
}

func compileEntry(src string, cfg *config.Config) (*compiler.Result, error) {
	res, err := compiler.Compile(src, cfg.Options())
	var syntax *compiler.SyntaxError
	if errors.As(err, &syntax) {
		return nil, errors.New(strings.Join(syntax.Errors, "\n"))
	}
	return res, err
}

// readByParseProbe reads one entry. Input continues while the parser
// reports it incomplete; once a block has been opened it continues until a
// blank line, as a function body can always take another statement.
func readByParseProbe(ln *liner.State, prompt, cont string) (string, bool) {
	var b strings.Builder
	block := false

	for {
		var line string
		var err error
		if b.Len() == 0 {
			line, err = ln.Prompt(prompt)
		} else {
			line, err = ln.Prompt(cont)
		}
		if errors.Is(err, io.EOF) {
			return "", false
		}
		if err != nil {
			// Ctrl-C drops the pending entry.
			return "", true
		}

		if block && strings.TrimSpace(line) == "" {
			return b.String(), true
		}
		b.WriteString(line)
		b.WriteByte('\n')

		if b.Len() == len(line)+1 && strings.HasSuffix(strings.TrimSpace(line), ":") {
			block = true
		}
		if block || incomplete(b.String()) {
			continue
		}
		return b.String(), true
	}
}

func incomplete(src string) bool {
	p := parser.New(lexer.New(src))
	p.ParseModule()
	return p.Incomplete()
}
