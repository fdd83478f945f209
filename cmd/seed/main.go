// Command seed fills the configured store with fake data for local
// development. It reads the same configuration as cmd/server.
//
//	go run ./cmd/seed all --users 30 --posts 120 --follows 5
//	go run ./cmd/seed posts --posts 50
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/fitted/fitted/internal/auth"
	"github.com/fitted/fitted/internal/config"
	"github.com/fitted/fitted/internal/logging"
	"github.com/fitted/fitted/internal/media"
	"github.com/fitted/fitted/internal/metrics"
	"github.com/fitted/fitted/internal/repository"
	"github.com/fitted/fitted/internal/seed"
	"github.com/fitted/fitted/internal/server"
	"github.com/fitted/fitted/internal/service"
)

var (
	userCount   = 20
	postCount   = 60
	followCount = 4
	randomSeed  int64

	store    repository.Store
	seeder   *seed.Seeder
	logClose io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the Fitted store with fake users, posts, and follows",
	Long: `seed creates fake data through the same services the HTTP API uses.
Every seeded account has the password ` + seed.DefaultPassword + `.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setup(cmd.Context())
	},
}

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Register fake accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := seeder.Users(cmd.Context(), userCount)
		fmt.Printf("created %d users\n", len(names))
		return err
	},
}

var postsCmd = &cobra.Command{
	Use:   "posts",
	Short: "Write fake posts by existing accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := seeder.ExistingUsernames(cmd.Context())
		if err != nil {
			return err
		}
		if err := seeder.Posts(cmd.Context(), names, postCount); err != nil {
			return err
		}
		fmt.Printf("created %d posts\n", postCount)
		return nil
	},
}

var followsCmd = &cobra.Command{
	Use:   "follows",
	Short: "Add random follow edges between existing accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := seeder.ExistingUsernames(cmd.Context())
		if err != nil {
			return err
		}
		n, err := seeder.Follows(cmd.Context(), names, followCount)
		fmt.Printf("created %d follows\n", n)
		return err
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Seed users, then posts and follows between them",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		names, err := seeder.Users(ctx, userCount)
		if err != nil {
			return err
		}
		if err := seeder.Posts(ctx, names, postCount); err != nil {
			return err
		}
		n, err := seeder.Follows(ctx, names, followCount)
		if err != nil {
			return err
		}
		fmt.Printf("created %d users, %d posts, %d follows\n", len(names), postCount, n)
		return nil
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.IntVar(&userCount, "users", userCount, "Number of accounts to create")
	flags.IntVar(&postCount, "posts", postCount, "Number of posts to create")
	flags.IntVar(&followCount, "follows", followCount, "Follow attempts per account")
	flags.Int64Var(&randomSeed, "seed", 0, "Random seed for reproducible data (0 = random)")

	rootCmd.AddCommand(usersCmd, postsCmd, followsCmd, allCmd)
}

// setup opens the store and media backend named by the configuration and
// builds the services on top of them. Live events are not published: no
// server is listening to this process.
func setup(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, closer := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	logClose = closer

	store, err = server.OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	mediaStore, _, err := server.OpenMedia(ctx, cfg)
	if err != nil {
		return err
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	m := metrics.New()

	seeder = seed.NewSeeder(
		service.NewAuthService(store, tokens, auth.NewPasswordService(cfg.BcryptCost), logger),
		service.NewPostService(store, media.NewProcessor(), mediaStore, nil, m, logger),
		service.NewFollowService(store, store, m, logger),
		store,
		randomSeed,
		logger,
	)
	logger.Info("seeding", slog.String("store", cfg.Store))
	return nil
}

func teardown() {
	if store != nil {
		store.Close()
	}
	if logClose != nil {
		logClose.Close()
	}
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:]))
}

// run executes one seed command. The store and log file are closed however
// the command ends, including when setup or the command itself fails.
func run(ctx context.Context, args []string) int {
	defer teardown()

	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
