package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/hackgods/doctor-appointment-scheduling/internal/app"
	"github.com/hackgods/doctor-appointment-scheduling/internal/appointment"
	"github.com/hackgods/doctor-appointment-scheduling/internal/config"
	"github.com/hackgods/doctor-appointment-scheduling/internal/db"
	"github.com/hackgods/doctor-appointment-scheduling/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "schedctl",
		Short:         "Operate the appointment scheduler from the command line",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(migrateCmd())
	root.AddCommand(slotsCmd())
	root.AddCommand(suggestCmd())
	root.AddCommand(calendarCmd())
	root.AddCommand(remindersCmd())
	return root
}

// withApp loads configuration, connects infrastructure and runs fn.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := cliLogger(cfg)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	return fn(ctx, a)
}

// cliLogger keeps command output quiet unless LOG_LEVEL asks otherwise.
func cliLogger(cfg config.Config) zerolog.Logger {
	logger := logging.New(cfg.Env, cfg.LogLevel)
	if !cfg.LogLevelSet {
		logger = logger.Level(zerolog.WarnLevel)
	}
	return logger
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				if a.Pool == nil {
					return errors.New("migrate requires STORE=postgres")
				}
				if err := db.Migrate(ctx, a.Pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func slotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "slots",
		Short: "Print the configured slot catalog in booking order",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			for i, s := range cfg.SlotCatalog {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, s)
			}
			return nil
		},
	}
}

func doctorFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, _ := cmd.Flags().GetString("doctor")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("--doctor must be a valid UUID: %w", err)
	}
	return id, nil
}

func suggestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "suggest",
		Short: "Find the earliest open slot for a doctor",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := doctorFlag(cmd)
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				s, err := a.Service.SuggestSlot(ctx, doctorID, days, time.Now())
				if err != nil {
					return err
				}
				if !s.Found {
					fmt.Fprintf(cmd.OutOrStdout(), "no available slots in the next %d days\n", days)
					return nil
				}
				return printJSON(cmd.OutOrStdout(), map[string]any{
					"date":         appointment.DateKey(s.Date),
					"slot":         s.Slot,
					"alternatives": s.Alternatives,
				})
			})
		},
	}
	cmd.Flags().String("doctor", "", "Doctor ID")
	cmd.Flags().Int("days", 7, "Number of days to search after today")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func calendarCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Print a doctor's calendar grouped by day",
		RunE: func(cmd *cobra.Command, args []string) error {
			doctorID, err := doctorFlag(cmd)
			if err != nil {
				return err
			}
			days, _ := cmd.Flags().GetInt("days")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				cal, err := a.Service.GetCalendar(ctx, doctorID, days, time.Now())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), cal)
			})
		},
	}
	cmd.Flags().String("doctor", "", "Doctor ID")
	cmd.Flags().Int("days", 7, "Number of days to include after today")
	_ = cmd.MarkFlagRequired("doctor")
	return cmd
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "List approved appointments due for a reminder, optionally sending them",
		RunE: func(cmd *cobra.Command, args []string) error {
			send, _ := cmd.Flags().GetBool("send")

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				now := time.Now()
				if send {
					n, err := a.Service.SendReminders(ctx, now)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%d reminder(s) sent\n", n)
					return nil
				}

				due, err := a.Service.SelectReminders(ctx, now)
				if err != nil {
					return err
				}
				for _, appt := range due {
					fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tdoctor=%s\tpatient=%s\n",
						appt.ID, appt.DateKey(), appt.Slot, appt.DoctorID, appt.PatientID)
				}
				return nil
			})
		},
	}
	cmd.Flags().Bool("send", false, "Send the reminders instead of listing them")
	return cmd
}
