package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	cardFont          string
	cardFooter        string
	cardSubtitle      string
	cardTagline       string
	cardTitle         string
	cooldown          time.Duration
	cooldownRetention time.Duration
	dataFile          string
	metrics           bool
	port              int
	prefix            string
	profile           bool
	tlsCert           string
	tlsKey            string
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if (c.tlsCert == "") != (c.tlsKey == "") {
		return errors.New("both --tls-cert and --tls-key must be provided together")
	}
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.cooldown <= 0 {
		return fmt.Errorf("invalid cooldown (must be positive): %s", c.cooldown)
	}
	if c.cooldownRetention < c.cooldown {
		return fmt.Errorf("invalid cooldown retention (must be at least the cooldown of %s): %s", c.cooldown, c.cooldownRetention)
	}
	if strings.TrimSpace(c.dataFile) == "" {
		return errors.New("--data-file must not be empty")
	}
	return nil
}

func (c *Config) scheme() string {
	if c.tlsCert != "" && c.tlsKey != "" {
		return "https"
	}
	return "http"
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WISHWALL")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "wishwall",
		Short:         "Collects wishes from a live audience and shows them on the big screen.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return ServePage(cmd.Context(), cfg, args)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: WISHWALL_BIND)")
	fs.StringVar(&cfg.cardFont, "card-font", "", "path to a TrueType/OpenType font used on wish cards (env: WISHWALL_CARD_FONT)")
	fs.StringVar(&cfg.cardFooter, "card-footer", "Light up your life and career", "first footer line on wish cards (env: WISHWALL_CARD_FOOTER)")
	fs.StringVar(&cfg.cardSubtitle, "card-subtitle", "Future Wish Card", "second title line on wish cards (env: WISHWALL_CARD_SUBTITLE)")
	fs.StringVar(&cfg.cardTagline, "card-tagline", "Living Upward", "second footer line on wish cards (env: WISHWALL_CARD_TAGLINE)")
	fs.StringVar(&cfg.cardTitle, "card-title", "Lighthouse Wish Wall", "first title line on wish cards (env: WISHWALL_CARD_TITLE)")
	fs.DurationVar(&cfg.cooldown, "cooldown", 5*time.Second, "minimum time between wishes from the same address and name (env: WISHWALL_COOLDOWN)")
	fs.DurationVar(&cfg.cooldownRetention, "cooldown-retention", 10*time.Minute, "time before idle cooldown entries are forgotten (env: WISHWALL_COOLDOWN_RETENTION)")
	fs.StringVarP(&cfg.dataFile, "data-file", "d", "wishes.json", "path to the wish snapshot file (env: WISHWALL_DATA_FILE)")
	fs.BoolVar(&cfg.metrics, "metrics", false, "expose prometheus metrics at /metrics (env: WISHWALL_METRICS)")
	fs.IntVarP(&cfg.port, "port", "p", 8080, "port to listen on (env: WISHWALL_PORT)")
	fs.StringVar(&cfg.prefix, "prefix", "", "path to prepend to all URLs, for use behind reverse proxy (env: WISHWALL_PREFIX)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers (env: WISHWALL_PROFILE)")
	fs.StringVar(&cfg.tlsCert, "tls-cert", "", "path to tls certificate (env: WISHWALL_TLS_CERT)")
	fs.StringVar(&cfg.tlsKey, "tls-key", "", "path to tls keyfile (env: WISHWALL_TLS_KEY)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: WISHWALL_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: WISHWALL_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("wishwall v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
