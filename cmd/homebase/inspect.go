package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dokzlo13/homebase/internal/app"
	"github.com/dokzlo13/homebase/internal/home"
	"github.com/dokzlo13/homebase/internal/lighting"
	"github.com/dokzlo13/homebase/internal/remote"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [topic]",
	Short: "Print the resolved state and configuration of a node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(func(s *app.Services) (any, error) {
			topic := home.RootTopic
			if len(args) > 0 {
				topic = home.ParseTopic(args[0])
			}
			now := time.Now()
			state, err := s.Registry.Resolve(topic, now)
			if err != nil {
				return nil, err
			}
			own, effective, err := s.Registry.Config(topic, now)
			if err != nil {
				return nil, err
			}
			return map[string]any{
				"topic":     topic,
				"zone":      lighting.ZoneAt(now.In(s.Registry.Location())).Label,
				"state":     state,
				"own":       home.EncodeConfig(own),
				"effective": home.EncodeConfig(effective),
			}, nil
		})
	},
}

var lightsCmd = &cobra.Command{
	Use:   "lights [topic]",
	Short: "List the lights below a node with their resolved targets",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(func(s *app.Services) (any, error) {
			topic := home.RootTopic
			if len(args) > 0 {
				topic = home.ParseTopic(args[0])
			}
			return s.Registry.Targets(topic, time.Now())
		})
	},
}

var remotesCmd = &cobra.Command{
	Use:   "remotes",
	Short: "List configured remotes and their bindings",
	RunE: func(cmd *cobra.Command, args []string) error {
		return inspect(func(s *app.Services) (any, error) {
			return map[string]any{
				"presets": remote.Presets(),
				"remotes": s.Remotes.Remotes(),
			}, nil
		})
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd, lightsCmd, remotesCmd)
}

// inspect builds the services without contacting the bridge, runs fn and
// prints its result as JSON.
func inspect(fn func(*app.Services) (any, error)) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.Hue.DryRun = true
	cfg.API.Enabled = false

	s, err := app.NewServices(cfg, app.Options{})
	if err != nil {
		return err
	}
	defer s.Close()

	out, err := fn(s)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return nil
}
