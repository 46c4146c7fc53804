package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"sort"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MFredin/CombatCoaching/internal/app"
	"github.com/MFredin/CombatCoaching/internal/config"
	"github.com/MFredin/CombatCoaching/internal/logger"
	"github.com/MFredin/CombatCoaching/internal/specs"
	"github.com/MFredin/CombatCoaching/internal/store"
)

// version is stamped via -ldflags at release time.
var version = "dev"

var configFile string

func main() {
	// .env lets developers point COACH_* overrides at a test log dir.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "combatcoach",
		Short: "Live coaching engine for the combat log",
		Long: `combatcoach tails the game's combat log, reconstructs pulls, evaluates
coaching rules, and emits deduplicated advice to consumers and a session store.`,
	}
	root.PersistentFlags().StringVar(&configFile, "config", "", "path to combatcoach.toml")

	root.AddCommand(serveCmd(), pullsCmd(), specsCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	return config.Load(configFile)
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the coaching pipeline until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			log, err := logger.Setup(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.File, cfg.Logging.MaxBackups)
			if err != nil {
				return err
			}
			defer log.Close()

			defer func() {
				if r := recover(); r != nil {
					log.Error("panic", "value", r, "stack", string(debug.Stack()))
					log.Close()
					os.Exit(2)
				}
			}()

			if cfg.LogDir == "" {
				log.Warn("no log directory configured; tailer will idle until config is fixed")
			}

			a, err := app.New(cfg, log.Logger)
			if err != nil {
				return err
			}

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			// Live feed: relay fan-out output to the console. This stands in
			// for the overlay/settings consumers when running headless.
			go consumeFeed(a, log)

			log.Info("combatcoach starting", "version", version, "log_dir", cfg.LogDir, "intensity", cfg.Intensity)
			return a.Run(ctx)
		},
	}
}

func consumeFeed(a *app.App, log *logger.Logger) {
	b := a.Bus()
	advice := b.Advice()
	debriefs := b.Debriefs()
	status := b.StatusUpdates()
	for advice != nil || debriefs != nil || status != nil {
		select {
		case adv, ok := <-advice:
			if !ok {
				advice = nil
				continue
			}
			log.Info("advice", "severity", string(adv.Severity), "title", adv.Title, "message", adv.Message)
		case d, ok := <-debriefs:
			if !ok {
				debriefs = nil
				continue
			}
			log.Info("debrief",
				"pull", d.PullNumber,
				"outcome", d.Outcome,
				"duration", (time.Duration(d.PullElapsedMs) * time.Millisecond).String(),
				"avoidable", d.AvoidableCount,
				"interrupts", d.InterruptCount,
				"advice_fired", d.TotalAdviceFired,
			)
		case s, ok := <-status:
			if !ok {
				status = nil
				continue
			}
			log.Debug("connection", "log_tailing", s.LogTailing, "addon_connected", s.AddonConnected, "path", s.Path)
		}
	}
}

func pullsCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pulls",
		Short: "Show recent pulls with advice counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			r, err := store.OpenReadOnly(cfg.DBPath)
			if err != nil {
				return err
			}
			defer r.Close()

			pulls, err := r.RecentPulls(limit)
			if err != nil {
				return err
			}
			if len(pulls) == 0 {
				fmt.Println("no pulls recorded yet")
				return nil
			}
			fmt.Printf("%-5s %-6s %-28s %-8s %-9s %s\n", "PULL", "#", "ENCOUNTER", "OUTCOME", "DURATION", "ADVICE")
			for _, p := range pulls {
				duration := "-"
				if p.EndedAt > p.StartedAt {
					duration = (time.Duration(p.EndedAt-p.StartedAt) * time.Millisecond).Round(time.Second).String()
				}
				encounter := p.Encounter
				if encounter == "" {
					encounter = "(open world)"
				}
				outcome := p.Outcome
				if outcome == "" {
					outcome = "-"
				}
				fmt.Printf("%-5d %-6d %-28s %-8s %-9s %d\n", p.PullID, p.PullNumber, encounter, outcome, duration, p.AdviceCount)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultRecentPulls, "number of pulls to show")
	return cmd
}

func specsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "specs",
		Short: "List embedded spec profiles",
		Run: func(cmd *cobra.Command, args []string) {
			all := specs.List()
			sort.Slice(all, func(i, j int) bool { return all[i].Key() < all[j].Key() })
			for _, p := range all {
				fmt.Printf("%-32s %-7s %d major CDs, %d AM spells\n", p.Key(), p.Role, len(p.MajorCDSpellIDs), len(p.AMSpellIDs))
			}
		},
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("combatcoach", version)
		},
	}
}
