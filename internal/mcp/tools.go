package mcp

import (
	"context"
	"fmt"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/compwm/internal/ipc"
	"github.com/1broseidon/compwm/internal/match"
)

func (s *Server) handleGetStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, StatusOutput, error) {
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, StatusOutput{}, err
	}
	return nil, StatusOutput{
		Display:       st.Display,
		ConfigPath:    st.ConfigPath,
		ActivePlugins: st.ActivePlugins,
		Screens:       st.Screens,
		Windows:       st.Windows,
		MatchPrefixes: st.MatchPrefixes,
		UptimeSeconds: st.UptimeSeconds,
	}, nil
}

func (s *Server) handleListPlugins(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ListPluginsOutput, error) {
	data, err := s.daemon.ListPlugins()
	if err != nil {
		return nil, ListPluginsOutput{}, err
	}
	return nil, ListPluginsOutput{Plugins: nonNil(data.Plugins)}, nil
}

func (s *Server) handleGetOptions(_ context.Context, _ *mcpsdk.CallToolRequest, args GetOptionsInput) (*mcpsdk.CallToolResult, GetOptionsOutput, error) {
	plugin := strings.TrimSpace(args.Plugin)
	if plugin == "" {
		return nil, GetOptionsOutput{}, fmt.Errorf("plugin is required")
	}
	data, err := s.daemon.GetOptions(plugin, args.Scope)
	if err != nil {
		return nil, GetOptionsOutput{}, err
	}
	out := GetOptionsOutput{Plugin: data.Plugin, Scope: data.Scope, Options: []ipc.OptionInfo{}}
	for _, o := range data.Options {
		if args.Name != "" && o.Name != args.Name {
			continue
		}
		out.Options = append(out.Options, o)
	}
	if args.Name != "" && len(out.Options) == 0 {
		return nil, GetOptionsOutput{}, fmt.Errorf("plugin %s has no option %q in scope %s", plugin, args.Name, data.Scope)
	}
	return nil, out, nil
}

func (s *Server) handleSetOption(_ context.Context, _ *mcpsdk.CallToolRequest, args SetOptionInput) (*mcpsdk.CallToolResult, SetOptionOutput, error) {
	if strings.TrimSpace(args.Plugin) == "" || strings.TrimSpace(args.Name) == "" {
		return nil, SetOptionOutput{}, fmt.Errorf("plugin and name are required")
	}
	data, err := s.daemon.SetOption(args.Plugin, args.Scope, args.Name, args.Value)
	if err != nil {
		return nil, SetOptionOutput{}, err
	}
	s.logger.Info("mcp set_option", "plugin", args.Plugin, "scope", args.Scope, "option", args.Name, "changed", data.Changed)
	return nil, SetOptionOutput{Changed: data.Changed, Value: data.Value}, nil
}

func (s *Server) handleActivatePlugin(_ context.Context, _ *mcpsdk.CallToolRequest, args PluginInput) (*mcpsdk.CallToolResult, StackOutput, error) {
	if strings.TrimSpace(args.Name) == "" {
		return nil, StackOutput{}, fmt.Errorf("name is required")
	}
	data, err := s.daemon.Activate(args.Name)
	if err != nil {
		return nil, StackOutput{}, err
	}
	return nil, StackOutput{ActivePlugins: data.ActivePlugins}, nil
}

func (s *Server) handleDeactivatePlugin(_ context.Context, _ *mcpsdk.CallToolRequest, args PluginInput) (*mcpsdk.CallToolResult, StackOutput, error) {
	if strings.TrimSpace(args.Name) == "" {
		return nil, StackOutput{}, fmt.Errorf("name is required")
	}
	data, err := s.daemon.Deactivate(args.Name)
	if err != nil {
		return nil, StackOutput{}, err
	}
	return nil, StackOutput{ActivePlugins: data.ActivePlugins}, nil
}

func (s *Server) handleListWindows(_ context.Context, _ *mcpsdk.CallToolRequest, args ListWindowsInput) (*mcpsdk.CallToolResult, ListWindowsOutput, error) {
	data, err := s.daemon.ListWindows()
	if err != nil {
		return nil, ListWindowsOutput{}, err
	}

	var keep map[string]bool
	if strings.TrimSpace(args.Match) != "" {
		m, err := s.daemon.EvalMatch(args.Match)
		if err != nil {
			return nil, ListWindowsOutput{}, err
		}
		keep = make(map[string]bool, len(m.Matches))
		for _, id := range m.Matches {
			keep[id] = true
		}
	}

	out := ListWindowsOutput{Windows: []ipc.WindowInfo{}}
	for _, w := range data.Windows {
		if args.Screen != nil && w.Screen != *args.Screen {
			continue
		}
		if keep != nil && !keep[w.ID] {
			continue
		}
		out.Windows = append(out.Windows, w)
	}
	return nil, out, nil
}

func (s *Server) handleEvalMatch(_ context.Context, _ *mcpsdk.CallToolRequest, args MatchInput) (*mcpsdk.CallToolResult, EvalMatchOutput, error) {
	data, err := s.daemon.EvalMatch(args.Expr)
	if err != nil {
		return nil, EvalMatchOutput{}, err
	}
	return nil, EvalMatchOutput{Expr: data.Expr, Matches: nonNil(data.Matches), Checked: data.Checked}, nil
}

func (s *Server) handleParseMatch(_ context.Context, _ *mcpsdk.CallToolRequest, args MatchInput) (*mcpsdk.CallToolResult, ParseMatchOutput, error) {
	x := match.Parse(args.Expr)
	return nil, ParseMatchOutput{Expr: x.String(), Empty: x.Empty()}, nil
}

func (s *Server) handleReloadConfig(_ context.Context, _ *mcpsdk.CallToolRequest, _ EmptyInput) (*mcpsdk.CallToolResult, ReloadOutput, error) {
	if err := s.daemon.Reload(); err != nil {
		return nil, ReloadOutput{}, err
	}
	st, err := s.daemon.GetStatus()
	if err != nil {
		return nil, ReloadOutput{}, err
	}
	return nil, ReloadOutput{Reloaded: true, ActivePlugins: st.ActivePlugins}, nil
}

// nonNil keeps empty lists as [] in tool output.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
