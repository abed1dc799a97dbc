// Command scenectl talks to a running scened over its HTTP API.
package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/AaronLay10/SentientScenes/internal/config"
	"github.com/AaronLay10/SentientScenes/internal/orchestrator"
)

const usage = `usage: scenectl [flags] <command> [args]

commands:
  status                          engine snapshot
  scenes                          catalog scenes and collections
  events [n]                      recent journal events
  open|close|reopen <scene>...    scene operations (-force to bypass checks)
  preload <scene>                 load without activating
  finish-preload | discard-preload
  open-collection <id>            (-all opens do_not_open scenes too)
  close-collection <id>
  toggle-collection <id>
  close-all                       (-force closes persistent scenes too)
  cancel <operation-id>
`

var errUsage = errors.New("invalid arguments")

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprint(os.Stderr, usage)
		}
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("scenectl", flag.ContinueOnError)
	addr := fs.String("addr", envOr("SCENED_ADDR", "http://localhost:8080"), "scened API address")
	force := fs.Bool("force", false, "force the operation")
	all := fs.Bool("all", false, "open every scene of the collection")
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	user, err := config.ResolveSecret("SCENED_OPERATOR_USER")
	if err != nil {
		return err
	}
	pass, err := config.ResolveSecret("SCENED_OPERATOR_PASS")
	if err != nil {
		return err
	}
	c := &client{base: strings.TrimRight(*addr, "/"), user: user, pass: pass, http: &http.Client{Timeout: 10 * time.Second}}

	name, rest := fs.Arg(0), fs.Args()[1:]
	switch name {
	case "status":
		return c.get("/status", out)
	case "scenes":
		return c.get("/scenes", out)
	case "events":
		path := "/events"
		if len(rest) > 0 {
			path += "?limit=" + rest[0]
		}
		return c.get(path, out)
	}

	cmd, err := buildCommand(name, rest, *force, *all)
	if err != nil {
		return err
	}
	path := "/operations"
	var body interface{} = cmd
	if cmd.Op == orchestrator.CmdCancel {
		path = "/operations/cancel"
		body = map[string]string{"id": cmd.ID}
	}
	return c.post(path, body, out)
}

// buildCommand maps a CLI verb and its arguments to an engine command.
func buildCommand(name string, args []string, force, all bool) (orchestrator.Command, error) {
	op := strings.ReplaceAll(name, "-", "_")
	cmd := orchestrator.Command{Op: op, Force: force, OpenAll: all}
	switch op {
	case orchestrator.CmdOpen, orchestrator.CmdClose, orchestrator.CmdReopen:
		if len(args) == 0 {
			return cmd, fmt.Errorf("%w: %s needs at least one scene", errUsage, name)
		}
		cmd.Scenes = args
	case orchestrator.CmdPreload:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: preload takes exactly one scene", errUsage)
		}
		cmd.Scenes = args
	case orchestrator.CmdOpenCollection, orchestrator.CmdCloseCollection, orchestrator.CmdToggleCollection:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: %s takes one collection", errUsage, name)
		}
		cmd.Collection = args[0]
	case orchestrator.CmdCancel:
		if len(args) != 1 {
			return cmd, fmt.Errorf("%w: cancel takes one operation id", errUsage)
		}
		cmd.ID = args[0]
	case orchestrator.CmdCloseAll, orchestrator.CmdFinishPreload, orchestrator.CmdDiscardPreload:
	default:
		return cmd, fmt.Errorf("%w: unknown command %q", errUsage, name)
	}
	return cmd, nil
}

type client struct {
	base       string
	user, pass string
	http       *http.Client
}

func (c *client) get(path string, out io.Writer) error {
	req, err := http.NewRequest(http.MethodGet, c.base+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *client) post(path string, body interface{}, out io.Writer) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, c.base+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

// do sends req and pretty-prints the JSON response. Non-2xx responses are
// errors carrying the body.
func (c *client) do(req *http.Request, out io.Writer) error {
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(data)))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		_, err = out.Write(data)
		return err
	}
	pretty.WriteByte('\n')
	_, err = pretty.WriteTo(out)
	return err
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}
