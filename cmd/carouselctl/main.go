// Command carouselctl is the operator CLI for the caller-ID pool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/oakmontrealty/voicrm-sydney/internal/config"
	"github.com/oakmontrealty/voicrm-sydney/pkg/logger"
	"github.com/oakmontrealty/voicrm-sydney/pkg/utils"
)

var (
	v   = viper.New()
	log = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:           "carouselctl",
	Short:         "Manage the VoiCRM caller-ID carousel",
	Long:          "Operator tooling for the outbound number pool: schema migrations, pool maintenance, number checks and SLO evaluation.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		l, err := logger.New(v.GetString("env"))
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		log = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = log.Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "config file (default ./carouselctl.yaml)")
	pf.String("dsn", "", "Postgres connection string")
	pf.String("env", "local", "environment name, controls log level")
	_ = v.BindPFlag("db.dsn", pf.Lookup("dsn"))
	_ = v.BindPFlag("env", pf.Lookup("env"))
}

func loadConfig(cmd *cobra.Command) error {
	file, _ := cmd.Flags().GetString("config")
	return configure(v, file)
}

// configure layers defaults, an optional config file and VOICRM_* env vars.
// With no file given, ./carouselctl.yaml is read when present.
func configure(v *viper.Viper, file string) error {
	v.SetEnvPrefix("VOICRM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("twilio.base_url", "https://api.twilio.com")
	v.SetDefault("twilio.insights_url", "https://insights.twilio.com")
	v.SetDefault("twilio.calls_per_sec", 1)
	v.SetDefault("twilio.token_ttl", "1h")
	v.SetDefault("carousel.timezone", "Australia/Sydney")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "720h")

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("carouselctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return eris.Wrap(err, "read config")
		}
	}
	return nil
}

func dsn() (string, error) {
	d := strings.TrimSpace(v.GetString("db.dsn"))
	if d == "" {
		return "", eris.New("database dsn required: pass --dsn or set VOICRM_DB_DSN")
	}
	return d, nil
}

func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	d, err := dsn()
	if err != nil {
		return nil, err
	}
	pool, err := utils.OpenPostgres(ctx, d, utils.PostgresPoolConfig{MaxConns: 4})
	if err != nil {
		return nil, eris.Wrap(err, "open postgres")
	}
	return pool, nil
}

func twilioConfig() config.TwilioConfig {
	return config.TwilioConfig{
		AccountSID:  v.GetString("twilio.account_sid"),
		AuthToken:   v.GetString("twilio.auth_token"),
		BaseURL:     v.GetString("twilio.base_url"),
		InsightsURL: v.GetString("twilio.insights_url"),
		VoiceURL:    v.GetString("twilio.voice_url"),
		StatusURL:   v.GetString("twilio.status_callback_url"),
		CallsPerSec: v.GetInt("twilio.calls_per_sec"),
		APIKey:      v.GetString("twilio.api_key"),
		APISecret:   v.GetString("twilio.api_secret"),
		TwiMLAppSID: v.GetString("twilio.twiml_app_sid"),
		TokenTTL:    v.GetDuration("twilio.token_ttl"),
	}
}

func authConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:       v.GetString("auth.jwt_secret"),
		JWTIssuer:       v.GetString("auth.jwt_issuer"),
		JWTAudience:     v.GetString("auth.jwt_audience"),
		AccessTokenTTL:  v.GetDuration("auth.access_ttl"),
		RefreshTokenTTL: v.GetDuration("auth.refresh_ttl"),
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}
