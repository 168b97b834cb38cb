// puntoctl is the control CLI for puntod.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/sergeivaskov/punto/internal/config"
	"github.com/sergeivaskov/punto/internal/ipc"
)

var (
	socketPath = flag.String("socket", "", "path to daemon socket (default: from config)")
	configPath = flag.String("config", "", "path to config file")
)

func main() {
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
		os.Exit(1)
	}

	cmd := flag.Arg(0)
	switch cmd {
	case "status":
		cmdStatus()
	case "pause":
		cmdAck("pause", func(c *ipc.Client) error { return c.Pause() })
	case "resume":
		cmdAck("resume", func(c *ipc.Client) error { return c.Resume() })
	case "convert":
		cmdAck("convert selection", func(c *ipc.Client) error { return c.ConvertSelection() })
	case "dict":
		cmdDict()
	case "exclude":
		cmdExclude()
	case "reload":
		cmdAck("reload dictionaries", func(c *ipc.Client) error { return c.ReloadDictionaries() })
	case "stop":
		cmdAck("stop daemon", func(c *ipc.Client) error { return c.Shutdown() })
	case "help", "-h", "--help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `puntoctl - Control utility for puntod

Usage: puntoctl [options] <command> [args]

Commands:
  status                      Show daemon status and counters
  pause                       Suspend auto-correction
  resume                      Resume auto-correction
  convert                     Convert the current selection to the other layout
  dict add <word> <lang>      Add a word to the personal dictionary
  dict remove <word> <lang>   Remove a word from the personal dictionary
  dict list                   List personal dictionary entries
  exclude add <token>         Never auto-correct this token
  exclude remove <token>      Remove a token from the exclusion list
  exclude list                List excluded tokens
  reload                      Re-read the word lists from disk
  stop                        Shut the daemon down
  help                        Show this help message

Languages are "latin" or "cyrillic".

Options:
  -socket <path>  Daemon socket path (default: from config)
  -config <path>  Path to config file`)
}

func connect() *ipc.Client {
	socket := *socketPath
	if socket == "" {
		path := *configPath
		if path == "" {
			path = config.ConfigPath()
		}
		loader := config.NewLoader(path)
		cfg, err := loader.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}
		socket = cfg.IPC.SocketPath
	}

	client := ipc.NewClient(ipc.DefaultClientConfig(socket))
	if err := client.Connect(); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot reach daemon at %s: %v\n", socket, err)
		os.Exit(1)
	}
	return client
}

func cmdStatus() {
	client := connect()
	defer client.Close()

	status, err := client.Status()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	state := "running"
	if status.Stats.Paused {
		state = "paused"
	}

	fmt.Println("=== puntod Status ===")
	fmt.Printf("Version:               %s\n", status.Version)
	fmt.Printf("State:                 %s\n", state)
	fmt.Printf("Uptime:                %s\n", status.Uptime.Round(time.Second))
	fmt.Printf("Active layout:         %s\n", status.Stats.ActiveLayout)
	fmt.Println()
	fmt.Println("Dictionary:")
	if status.Stats.DictionaryLoaded {
		fmt.Printf("  Latin words:         %d\n", status.Stats.LatinWords)
		fmt.Printf("  Cyrillic words:      %d\n", status.Stats.CyrillicWords)
	} else {
		fmt.Println("  (still loading)")
	}
	fmt.Println()
	fmt.Println("Counters:")
	fmt.Printf("  Keys observed:       %d\n", status.Stats.KeysObserved)
	fmt.Printf("  Tokens analyzed:     %d\n", status.Stats.TokensAnalyzed)
	fmt.Printf("  Replacements:        %d\n", status.Stats.Replacements)
	fmt.Printf("  Failed replacements: %d\n", status.Stats.FailedReplacements)
	fmt.Printf("  Selections converted: %d\n", status.Stats.SelectionConversions)
}

func cmdAck(what string, op func(*ipc.Client) error) {
	client := connect()
	defer client.Close()

	if err := op(client); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", what, err)
		os.Exit(1)
	}
	fmt.Printf("OK: %s\n", what)
}

func cmdDict() {
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: puntoctl dict <add|remove|list> [word lang]")
		os.Exit(1)
	}

	client := connect()
	defer client.Close()

	switch flag.Arg(1) {
	case "add", "remove":
		if flag.NArg() < 4 {
			fmt.Fprintf(os.Stderr, "Usage: puntoctl dict %s <word> <lang>\n", flag.Arg(1))
			os.Exit(1)
		}
		word, lang := flag.Arg(2), strings.ToLower(flag.Arg(3))
		var err error
		if flag.Arg(1) == "add" {
			err = client.AddWord(word, lang)
		} else {
			err = client.RemoveWord(word, lang)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("OK: dict %s %s (%s)\n", flag.Arg(1), word, lang)

	case "list":
		entries, err := client.Words()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Println("Personal dictionary is empty.")
			return
		}
		fmt.Printf("%-24s %s\n", "Word", "Language")
		fmt.Println(strings.Repeat("-", 34))
		for _, e := range entries {
			fmt.Printf("%-24s %s\n", e.Word, e.Language)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown dict subcommand: %s\n", flag.Arg(1))
		os.Exit(1)
	}
}

func cmdExclude() {
	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "Usage: puntoctl exclude <add|remove|list> [token]")
		os.Exit(1)
	}

	client := connect()
	defer client.Close()

	switch flag.Arg(1) {
	case "add", "remove":
		if flag.NArg() < 3 {
			fmt.Fprintf(os.Stderr, "Usage: puntoctl exclude %s <token>\n", flag.Arg(1))
			os.Exit(1)
		}
		token := flag.Arg(2)
		var err error
		if flag.Arg(1) == "add" {
			err = client.Exclude(token)
		} else {
			err = client.Unexclude(token)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("OK: exclude %s %s\n", flag.Arg(1), token)

	case "list":
		tokens, err := client.Exclusions()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if len(tokens) == 0 {
			fmt.Println("Exclusion list is empty.")
			return
		}
		for _, tok := range tokens {
			fmt.Println(tok)
		}

	default:
		fmt.Fprintf(os.Stderr, "Unknown exclude subcommand: %s\n", flag.Arg(1))
		os.Exit(1)
	}
}
