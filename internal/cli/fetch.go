package cli

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/Adda-Baaj/edgar-gateway/internal/domain"
)

// fetchFunc runs one gateway operation and returns the payload to print.
type fetchFunc func(ctx context.Context, a *app) (any, error)

// runFetch assembles the gateway, runs fn once and prints the result as indented JSON.
// Events raised by fn are delivered before the command returns.
func runFetch(cmd *cobra.Command, configPath string, fn fetchFunc) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := buildApp(ctx, configPath)
	if err != nil {
		return err
	}

	res, err := fn(ctx, a)
	if err == nil {
		err = printJSON(cmd.OutOrStdout(), res)
	}
	return joinClose(a, err)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newNewsCmd(configPath *string) *cobra.Command {
	var query string
	cmd := &cobra.Command{
		Use:   "news",
		Short: "Fetch top Hacker News stories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, *configPath, func(ctx context.Context, a *app) (any, error) {
				return a.svc.News(ctx, query)
			})
		},
	}
	cmd.Flags().StringVarP(&query, "query", "q", "", "case-insensitive title filter")
	return cmd
}

func newQuotesCmd(configPath *string) *cobra.Command {
	var (
		tag   string
		page  int
		limit int
	)
	cmd := &cobra.Command{
		Use:   "quotes",
		Short: "Scrape one page of quotes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, *configPath, func(ctx context.Context, a *app) (any, error) {
				return a.svc.Quotes(ctx, tag, page, limit)
			})
		},
	}
	cmd.Flags().StringVarP(&tag, "tag", "t", "", "only quotes with this tag")
	cmd.Flags().IntVar(&page, "page", domain.MinPage, "upstream page number")
	cmd.Flags().IntVar(&limit, "limit", domain.DefaultLimit, "maximum quotes to return")
	return cmd
}

func newWeatherCmd(configPath *string) *cobra.Command {
	var city string
	cmd := &cobra.Command{
		Use:   "weather",
		Short: "Fetch current weather and the daily forecast for a city",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFetch(cmd, *configPath, func(ctx context.Context, a *app) (any, error) {
				return a.svc.Weather(ctx, city)
			})
		},
	}
	cmd.Flags().StringVarP(&city, "city", "c", "", "city name (defaults to the configured default city)")
	return cmd
}
