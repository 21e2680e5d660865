package main

import (
	"context"
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/linesmerrill/vehicle-tax-api/config"
	"github.com/linesmerrill/vehicle-tax-api/databases"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "taxctl",
		Short:         "Operate the vehicle tax service",
		Long:          "taxctl seeds reference data, switches the active fiscal period and runs payment maintenance against the configured MongoDB.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newHashPasswordCmd())
	cmd.AddCommand(newSeedCmd())
	cmd.AddCommand(newActivatePeriodCmd())
	cmd.AddCommand(newExpireStaleCmd())
	return cmd
}

// connect loads the configuration and opens the store. The returned func
// disconnects.
func connect(ctx context.Context) (*databases.Store, func(), error) {
	_ = godotenv.Load()
	conf := config.New()
	if conf.URL == "" {
		return nil, nil, fmt.Errorf("DB_URI is not set")
	}

	client, db, err := databases.Open(ctx, conf)
	if err != nil {
		return nil, nil, err
	}
	closeFn := func() {
		_ = client.Disconnect(context.Background())
		_ = zap.L().Sync()
	}
	return databases.NewStore(db), closeFn, nil
}
