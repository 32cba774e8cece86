// Package cmd wires the CLI: flag parsing, config precedence, and server
// startup. Configuration follows flags > environment (MATCHBOOK_*) >
// config file > defaults.
package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"matchbook/api"
	"matchbook/espanso"
	"matchbook/snippet"
	"matchbook/sysopen"
)

const version = "1.0.0"

var (
	staticFiles fs.FS
	cfgFile     string
)

var rootCmd = &cobra.Command{
	Use:   "matchbook",
	Short: "Local web editor for Espanso match files",
	Long: `matchbook serves a local web UI over your Espanso match directory:
list, search, create, edit, delete, move, import and export snippet
entries. Every write preserves the comments, key order, and unmodeled
keys in your YAML files.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	flags := rootCmd.Flags()
	flags.IntP("port", "p", 5000, "port to listen on")
	flags.StringP("match-dir", "m", "", "espanso match directory (default: auto-detect)")
	flags.Bool("no-browser", false, "do not open the browser on startup")
	flags.StringVar(&cfgFile, "config", "", "config file (default: matchbook.yml in the working directory)")

	viper.BindPFlag("port", flags.Lookup("port"))
	viper.BindPFlag("match_dir", flags.Lookup("match-dir"))
	viper.BindPFlag("no_browser", flags.Lookup("no-browser"))

	viper.SetEnvPrefix("matchbook")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// Execute runs the root command. The embedded frontend is handed in from
// main so this package stays free of embed directives.
func Execute(static fs.FS) {
	staticFiles = static
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
	}
}

func run() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("matchbook")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	}

	matchDir, err := espanso.ResolveMatchDir(viper.GetString("match_dir"))
	if err != nil {
		return err
	}

	manager := snippet.NewManager(matchDir)
	hub := api.NewHub()

	watcher, err := snippet.NewWatcher(matchDir)
	if err != nil {
		pterm.Warning.Printfln("file watcher unavailable: %v", err)
	} else {
		defer watcher.Close()
		go hub.Run(watcher.Events())
	}

	router := api.RegisterRoutes(manager, hub, staticFiles)

	port := viper.GetInt("port")
	url := fmt.Sprintf("http://localhost:%d", port)
	pterm.Info.Printfln("match directory: %s", matchDir)
	pterm.Success.Printfln("matchbook %s listening on %s", version, url)

	if !viper.GetBool("no_browser") {
		go func() {
			time.Sleep(time.Second)
			if err := sysopen.OpenURL(url); err != nil {
				pterm.Warning.Printfln("could not open browser: %v", err)
			}
		}()
	}

	return http.ListenAndServe(fmt.Sprintf(":%d", port), router)
}
