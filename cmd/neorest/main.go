// Package main provides the neorest CLI entry point.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/adampassword/neorest/pkg/config"
	"github.com/adampassword/neorest/pkg/cypher"
	"github.com/adampassword/neorest/pkg/graph"
	"github.com/adampassword/neorest/pkg/rest"
)

var (
	version = "0.1.0"
	commit  = "dev"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "neorest",
		Short: "neorest - Neo4j REST API client",
		Long: `neorest talks to a Neo4j server over its HTTP REST API.

Commands run Cypher statements, inspect the server and clear the
database. Connection settings come from flags, a config file or
NEOREST_* environment variables.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().String("uri", "", "service root URI (default "+rest.DefaultURI+")")
	rootCmd.PersistentFlags().String("config", "", "config file path")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("neorest v%s (%s)\n", version, commit)
		},
	})

	runCmd := &cobra.Command{
		Use:   "run [statement]",
		Short: "Run a Cypher statement",
		Long:  "Run a Cypher statement through the transactional endpoint and print the result table.",
		Args:  cobra.ExactArgs(1),
		RunE:  runStatement,
	}
	runCmd.Flags().StringArrayP("param", "p", nil, "statement parameter as key=value (value parsed as JSON, else string)")
	runCmd.Flags().String("format", "text", "output format: text, json or csv")
	rootCmd.AddCommand(runCmd)

	infoCmd := &cobra.Command{
		Use:   "info",
		Short: "Show server version, size and vocabulary",
		RunE:  runInfo,
	}
	rootCmd.AddCommand(infoCmd)

	clearCmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every node and relationship",
		RunE:  runClear,
	}
	clearCmd.Flags().Bool("force", false, "skip the confirmation prompt")
	rootCmd.AddCommand(clearCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// commandContext cancels on SIGINT/SIGTERM so a hung server does not strand
// the process.
func commandContext() (context.Context, context.CancelFunc) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	ctx, timeoutCancel := context.WithTimeout(ctx, 5*time.Minute)
	return ctx, func() {
		timeoutCancel()
		cancel()
	}
}

func connect(cmd *cobra.Command) (string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return "", err
	}
	if uri, _ := cmd.Flags().GetString("uri"); uri != "" {
		cfg.URI = uri
	}
	if err := cfg.Apply(rest.Default); err != nil {
		return "", err
	}
	return cfg.URI, nil
}

func runStatement(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	uri, err := connect(cmd)
	if err != nil {
		return err
	}
	params, err := parseParams(cmd)
	if err != nil {
		return err
	}

	session, err := cypher.NewSession(ctx, uri)
	if err != nil {
		return err
	}
	results, err := session.Execute(ctx, args[0], params)
	if err != nil {
		return err
	}
	if results == nil {
		return nil
	}

	format, _ := cmd.Flags().GetString("format")
	switch format {
	case "text":
		return printText(cmd, results)
	case "json":
		return printJSON(cmd, results)
	case "csv":
		return printCSV(cmd, results)
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func parseParams(cmd *cobra.Command) (*cypher.Parameters, error) {
	pairs, _ := cmd.Flags().GetStringArray("param")
	params := cypher.NewParameters()
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("parameter %q is not key=value", pair)
		}
		var value any
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			value = raw
		}
		params.Set(key, value)
	}
	return params, nil
}

func printText(cmd *cobra.Command, results *graph.Results) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, strings.Join(results.Columns, "\t"))
	for _, record := range results.Records {
		cells := make([]string, record.Len())
		for i, value := range record.Values() {
			cells[i] = cypher.Dump(value)
		}
		fmt.Fprintln(out, strings.Join(cells, "\t"))
	}
	return nil
}

func printJSON(cmd *cobra.Command, results *graph.Results) error {
	rows := make([]map[string]string, 0, len(results.Records))
	for _, record := range results.Records {
		row := make(map[string]string, len(results.Columns))
		for i, column := range results.Columns {
			row[column] = cypher.Dump(record.Value(i))
		}
		rows = append(rows, row)
	}
	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(map[string]any{"columns": results.Columns, "data": rows})
}

func printCSV(cmd *cobra.Command, results *graph.Results) error {
	writer := csv.NewWriter(cmd.OutOrStdout())
	if err := writer.Write(results.Columns); err != nil {
		return err
	}
	for _, record := range results.Records {
		cells := make([]string, record.Len())
		for i, value := range record.Values() {
			cells[i] = cypher.Dump(value)
		}
		if err := writer.Write(cells); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func runInfo(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	uri, err := connect(cmd)
	if err != nil {
		return err
	}
	g, err := graph.Open(ctx, uri)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if serverVersion, err := g.Version(ctx); err == nil {
		fmt.Fprintf(out, "Neo4j version:       %s\n", serverVersion)
	}
	if order, err := g.Order(ctx); err == nil {
		fmt.Fprintf(out, "Nodes:               %d\n", order)
	}
	if size, err := g.Size(ctx); err == nil {
		fmt.Fprintf(out, "Relationships:       %d\n", size)
	}
	if types, err := g.RelationshipTypes(ctx); err == nil {
		fmt.Fprintf(out, "Relationship types:  %s\n", strings.Join(types, ", "))
	}
	labels, err := g.NodeLabels(ctx)
	switch {
	case err == nil:
		fmt.Fprintf(out, "Labels:              %s\n", strings.Join(labels, ", "))
	case !errors.Is(err, graph.ErrServerCapability):
		return err
	}
	return nil
}

func runClear(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	uri, err := connect(cmd)
	if err != nil {
		return err
	}
	g, err := graph.Open(ctx, uri)
	if err != nil {
		return err
	}

	if force, _ := cmd.Flags().GetBool("force"); !force {
		fmt.Fprintf(cmd.OutOrStdout(), "Delete everything at %s? [y/N] ", g.URI())
		var answer string
		fmt.Fscanln(cmd.InOrStdin(), &answer)
		if answer != "y" && answer != "Y" {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}
	if err := g.Clear(ctx); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Database cleared.")
	return nil
}
