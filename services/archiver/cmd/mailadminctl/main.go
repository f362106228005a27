package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"mailadmin/pkg/bus"
	"mailadmin/pkg/db"
	"mailadmin/pkg/s3"
	"mailadmin/services/archiver"
	"mailadmin/services/audit"
	"mailadmin/services/auth"
	"mailadmin/services/directory"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_ = godotenv.Load()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "mailadminctl",
		Short:         "Operational tooling for the mail administration backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newMigrateCommand())
	cmd.AddCommand(newSeedCommand())
	cmd.AddCommand(newAuditCommand())
	cmd.AddCommand(newTokensCommand())
	return cmd
}

func newLogger() zerolog.Logger {
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
}

// stores holds the postgres-backed repositories used by the commands.
type stores struct {
	directory *directory.Store
	events    *audit.PostgresRepository
	close     func()
}

func openStores(ctx context.Context, cfg config, migrate bool) (*stores, error) {
	if err := cfg.requireDSN(); err != nil {
		return nil, err
	}
	pool, err := db.Open(ctx, cfg.DBDSN)
	if err != nil {
		return nil, err
	}
	if migrate {
		if err := db.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
	}
	orm, err := db.OpenORM(ctx, cfg.DBDSN)
	if err != nil {
		pool.Close()
		return nil, err
	}
	events, err := audit.NewPostgresRepository(pool)
	if err != nil {
		_ = db.CloseORM(orm)
		pool.Close()
		return nil, err
	}
	return &stores{
		directory: directory.NewStore(orm),
		events:    events,
		close: func() {
			_ = db.CloseORM(orm)
			pool.Close()
		},
	}, nil
}

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd.Context())
			if err != nil {
				return err
			}
			if err := cfg.requireDSN(); err != nil {
				return err
			}
			pool, err := db.Open(cmd.Context(), cfg.DBDSN)
			if err != nil {
				return err
			}
			defer pool.Close()
			if err := db.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}
}

func newSeedCommand() *cobra.Command {
	var (
		file          string
		adminEmail    string
		adminPassword string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed the administrator and optional YAML fixtures",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, true)
			if err != nil {
				return err
			}
			defer st.close()

			logger := newLogger()
			seeder := directory.NewSeeder(st.directory, audit.NewLedger(st.events, logger), logger)
			if adminEmail != "" {
				created, err := seeder.SeedAdmin(ctx, adminEmail, adminPassword)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "admin %s created=%t\n", adminEmail, created)
			}
			if file == "" {
				return nil
			}

			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("open fixtures: %w", err)
			}
			defer f.Close()
			fixtures, err := directory.LoadFixtures(f)
			if err != nil {
				return err
			}
			report, err := seeder.Apply(ctx, fixtures)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d domains, %d users, %d assignments, %d mailboxes, %d aliases\n",
				report.Domains, report.Users, report.Assignments, report.Mailboxes, report.Aliases)
			return nil
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "YAML fixtures file")
	cmd.Flags().StringVar(&adminEmail, "admin-email", os.Getenv("SEED_ADMIN_EMAIL"), "Administrator email to ensure")
	cmd.Flags().StringVar(&adminPassword, "admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "Administrator password when created")
	return cmd
}

func newAuditCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Audit trail archives and streaming",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(newAuditExportCommand())
	cmd.AddCommand(newAuditVerifyCommand())
	cmd.AddCommand(newAuditTailCommand())
	return cmd
}

func newAuditExportCommand() *cobra.Command {
	var (
		output       string
		since        string
		uploadBucket string
		presignTTL   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the audit trail to a signed tar.zst archive",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var sinceTime *time.Time
			if since != "" {
				t, err := time.Parse(time.RFC3339, since)
				if err != nil {
					return fmt.Errorf("invalid --since: %w", err)
				}
				sinceTime = &t
			}
			signer, err := archiver.SignerFromEnv()
			if err != nil {
				return err
			}
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer st.close()

			manifest, err := archiver.Export(ctx, archiver.ExportConfig{
				Events: st.events,
				Output: output,
				Since:  sinceTime,
				Signer: signer,
				Stdout: cmd.OutOrStdout(),
			})
			if err != nil {
				return err
			}
			if uploadBucket == "" {
				return nil
			}

			client, err := s3.NewClient(ctx, cfg.S3)
			if err != nil {
				return fmt.Errorf("s3 client: %w", err)
			}
			res, err := archiver.Upload(ctx, client, uploadBucket, output, manifest, presignTTL)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "uploaded s3://%s/%s\n", res.Bucket, res.Key)
			if res.URL != "" {
				fmt.Fprintln(cmd.OutOrStdout(), res.URL)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&output, "output", "", "Destination archive file (tar.zst)")
	cmd.Flags().StringVar(&since, "since", "", "Only export events created at or after this RFC3339 time")
	cmd.Flags().StringVar(&uploadBucket, "upload-bucket", "", "Upload the archive to this S3 bucket")
	cmd.Flags().DurationVar(&presignTTL, "presign-ttl", 0, "Print a presigned download URL valid for this long")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func newAuditVerifyCommand() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check an archive's signature and event digest",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := archiver.SignerFromEnv()
			if err != nil {
				return err
			}
			_, err = archiver.Verify(cmd.Context(), archiver.VerifyConfig{
				Path:   file,
				Signer: signer,
				Stdout: cmd.OutOrStdout(),
			})
			return err
		},
	}

	cmd.Flags().StringVar(&file, "file", "", "Path to the archive tar.zst")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func newAuditTailCommand() *cobra.Command {
	var durable string

	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Stream appended audit events from NATS",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			if cfg.NATSURL == "" {
				return errors.New("NATS_URL is required")
			}
			b, err := bus.New(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer b.Close()
			if err := b.EnsureStream(audit.StreamName, cfg.AuditSubject); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			sub, err := b.Subscribe(ctx, cfg.AuditSubject, durable, func(_ context.Context, data []byte) error {
				var e audit.Event
				if err := json.Unmarshal(data, &e); err != nil {
					return fmt.Errorf("decode event: %w", err)
				}
				fmt.Fprintf(out, "%s %-8s %-32s %s/%s %s\n",
					e.CreatedAt.UTC().Format(time.DateTime), e.ActorType, e.EventType, e.EntityType, formatID(e.EntityID), e.Status)
				return nil
			})
			if err != nil {
				return err
			}
			defer sub.Close()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&durable, "durable", "", "Durable consumer name; empty for an ephemeral subscription")
	return cmd
}

func formatID(id *int64) string {
	if id == nil {
		return "-"
	}
	return fmt.Sprint(*id)
}

func newTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Session token maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newTokensPurgeUserCommand())
	return cmd
}

func newTokensPurgeUserCommand() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "purge-user",
		Short: "Revoke every session of a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := loadConfig(ctx)
			if err != nil {
				return err
			}
			st, err := openStores(ctx, cfg, false)
			if err != nil {
				return err
			}
			defer st.close()

			user, err := st.directory.FindUserByEmail(ctx, email)
			if err != nil {
				return fmt.Errorf("find user %s: %w", email, err)
			}
			removed, err := auth.NewTokenStore(st.directory).RevokeAll(ctx, user.Principal())
			if err != nil {
				return err
			}
			err = audit.NewLedger(st.events, newLogger()).Append(ctx, audit.Entry{
				EventType:  "user.logout_all_by_admin",
				EntityType: audit.EntityUser,
				EntityID:   audit.ID(user.ID),
				NewValue:   map[string]any{"sessions_removed": removed},
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "revoked %d sessions for %s\n", removed, email)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "User email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
