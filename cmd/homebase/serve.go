package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/dokzlo13/homebase/internal/app"
)

var resetState bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		log.Info().Str("config", configPath).Msg("Starting homebase")

		application, err := app.New(cfg, app.Options{ResetState: resetState})
		if err != nil {
			return err
		}

		// Create context that cancels on shutdown signal
		application.Start(app.SignalContext())

		waitErr := application.Wait()
		if err := application.Stop(); err != nil {
			log.Error().Err(err).Msg("Error during shutdown")
		}
		return waitErr
	},
}

func init() {
	serveCmd.Flags().BoolVar(&resetState, "reset-state", false, "Discard persisted overrides and light states on startup")
	rootCmd.AddCommand(serveCmd)
}
