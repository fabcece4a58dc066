// Package scripttest drives the workspace facade through rsc.io/script,
// letting the multi-step scenarios of §8 be expressed as linear scripts
// instead of hand-rolled Go orchestration per scenario.
package scripttest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"rsc.io/script"

	"github.com/hotschmoe/beads-zig-sub005/internal/engine"
	"github.com/hotschmoe/beads-zig-sub005/internal/merge"
	"github.com/hotschmoe/beads-zig-sub005/internal/types"
)

// workspaces maps a script's working directory to its open Workspace.
// Scripts run sequentially within one *script.State, so a plain map keyed
// by directory is sufficient; no locking is needed here.
var workspaces = map[string]*engine.Workspace{}

// aliases maps a script-local short name (chosen by the script, not the
// generated identifier) to the real issue id, scoped per directory so
// scripts can refer to "X" instead of the adaptive-length generated id.
var aliases = map[string]map[string]string{}

func wsFor(dir string) (*engine.Workspace, bool) {
	ws, ok := workspaces[dir]
	return ws, ok
}

func resolveAlias(dir, name string) string {
	if id, ok := aliases[dir][name]; ok {
		return id
	}
	return name
}

func setAlias(dir, name, id string) {
	if aliases[dir] == nil {
		aliases[dir] = map[string]string{}
	}
	aliases[dir][name] = id
}

// Commands returns the custom script.Cmd set the scenario scripts use on
// top of the engine's built-in file/env commands.
func Commands() map[string]script.Cmd {
	return map[string]script.Cmd{
		"wsinit":  cmdInit(),
		"add":     cmdAdd(),
		"close":   cmdClose(),
		"reopen":  cmdReopen(),
		"dep":     cmdDep(),
		"ready":   cmdReady(),
		"blocked": cmdBlocked(),
		"compact": cmdCompact(),
		"import":  cmdImport(),
		"export":  cmdExport(),
	}
}

func cmdInit() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "initialize a workspace in the current directory"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			ws, err := engine.Init(s.Getwd())
			if err != nil {
				return nil, err
			}
			workspaces[s.Getwd()] = ws
			return nil, nil
		},
	)
}

func cmdAdd() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "add alias title [priority] -> issue id printed to stdout"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("usage: add alias title [priority]")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			priority := 2
			if len(args) > 2 {
				p, err := strconv.Atoi(args[2])
				if err != nil {
					return nil, err
				}
				priority = p
			}
			issue, err := ws.Add(types.Issue{Title: args[1], Priority: priority, IssueType: types.TypeTask}, "script")
			if err != nil {
				return nil, err
			}
			setAlias(s.Getwd(), args[0], issue.ID)
			return func(*script.State) (string, string, error) {
				return issue.ID + "\n", "", nil
			}, nil
		},
	)
}

func cmdClose() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "close alias-or-id"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: close alias-or-id")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			_, err := ws.Close(resolveAlias(s.Getwd(), args[0]), "script")
			return nil, err
		},
	)
}

func cmdReopen() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "reopen alias-or-id"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: reopen alias-or-id")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			_, err := ws.Reopen(resolveAlias(s.Getwd(), args[0]), "script")
			return nil, err
		},
	)
}

func cmdDep() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "dep add|rm from to [kind]"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) < 3 {
				return nil, fmt.Errorf("usage: dep add|rm from to [kind]")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			kind := types.DepBlocks
			if len(args) > 3 {
				kind = types.ParseDependencyType(args[3])
			}
			dir := s.Getwd()
			from, to := resolveAlias(dir, args[1]), resolveAlias(dir, args[2])
			switch args[0] {
			case "add":
				return nil, ws.AddDependency(from, to, kind, "script")
			case "rm":
				return nil, ws.RemoveDependency(from, to, kind, "script")
			default:
				return nil, fmt.Errorf("dep: unknown subcommand %q", args[0])
			}
		},
	)
}

func cmdReady() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "ready -> sorted issue aliases printed one per line"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			issues, err := ws.Ready()
			if err != nil {
				return nil, err
			}
			dir := s.Getwd()
			return func(*script.State) (string, string, error) {
				return aliasLines(dir, issues), "", nil
			}, nil
		},
	)
}

func cmdBlocked() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "blocked -> sorted issue aliases printed one per line"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			issues, err := ws.Blocked()
			if err != nil {
				return nil, err
			}
			dir := s.Getwd()
			return func(*script.State) (string, string, error) {
				return aliasLines(dir, issues), "", nil
			}, nil
		},
	)
}

func cmdCompact() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "compact: force a WAL-into-canonical merge"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			return nil, ws.Compact()
		},
	)
}

func cmdExport() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "export path: write the replayed state to a standalone snapshot"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: export path")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			return nil, ws.Export(s.Path(args[0]))
		},
	)
}

func cmdImport() script.Cmd {
	return script.Command(
		script.CmdUsage{Summary: "import path: merge a standalone snapshot into the workspace"},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: import path")
			}
			ws, ok := wsFor(s.Getwd())
			if !ok {
				return nil, fmt.Errorf("no workspace open in %s", s.Getwd())
			}
			_, err := ws.Import(context.Background(), s.Path(args[0]), merge.Options{})
			return nil, err
		},
	)
}

// aliasLines renders issues as their script-chosen aliases when known,
// falling back to the generated id, one per line in sorted order.
func aliasLines(dir string, issues []types.Issue) string {
	reverse := make(map[string]string, len(aliases[dir]))
	for alias, id := range aliases[dir] {
		reverse[id] = alias
	}
	names := make([]string, 0, len(issues))
	for _, issue := range issues {
		if alias, ok := reverse[issue.ID]; ok {
			names = append(names, alias)
		} else {
			names = append(names, issue.ID)
		}
	}
	sort.Strings(names)
	return strings.Join(names, "\n") + "\n"
}
