// Package main provides the mukernel CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/mu-kernel/mukernel/pkg/builder"
	"github.com/mu-kernel/mukernel/pkg/client"
	"github.com/mu-kernel/mukernel/pkg/config"
	"github.com/mu-kernel/mukernel/pkg/daemon"
	"github.com/mu-kernel/mukernel/pkg/embedding"
	"github.com/mu-kernel/mukernel/pkg/graph"
	"github.com/mu-kernel/mukernel/pkg/kernel"
	"github.com/mu-kernel/mukernel/pkg/model"
	"github.com/mu-kernel/mukernel/pkg/muql"
	"github.com/mu-kernel/mukernel/pkg/store"
)

var (
	version = "0.1.0"
	commit  = "dev"

	configPath string
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "mukernel",
		Short: "MU Kernel - a persistent, queryable semantic graph of a codebase",
		Long: `MU Kernel builds and maintains a graph of a codebase's modules,
classes and functions, queryable through MUQL and a smart LLM-context
extractor, with a daemon that keeps it current as files change.`,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", ".murc.toml", "path to project configuration")

	rootCmd.AddCommand(
		newVersionCmd(),
		newInitCmd(),
		newBuildCmd(),
		newServeCmd(),
		newQueryCmd(),
		newContextCmd(),
		newStatsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitCodeFor(err))
	}
}

// exitCodeFor maps a top-level command error to spec.md §6's exit-code
// contract, falling back to kernel.ExitCode for anything already wrapped
// in one of its sentinels.
func exitCodeFor(err error) int {
	if err == nil {
		return 0
	}
	return kernel.ExitCode(err)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("mukernel v%s (%s)\n", version, commit)
		},
	}
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Write a default .murc.toml in the current directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(configPath); err == nil {
				return fmt.Errorf("%s already exists: %w", configPath, kernel.ErrAlreadyExists)
			}
			cfg := config.Default()
			if err := cfg.Save(configPath); err != nil {
				return fmt.Errorf("write %s: %w", configPath, kernel.ErrConfig)
			}
			fmt.Printf("wrote %s\n", configPath)
			return nil
		},
	}
}

func newBuildCmd() *cobra.Command {
	var defsPath string
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Rebuild the mubase from a ModuleDef stream",
		Long: `Rebuild reads a YAML-encoded list of ModuleDef records (the shape
an external parser produces, spec.md §6) and performs a full atomic
rebuild of the mubase, replacing its previous contents.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			defs, err := loadModuleDefs(defsPath)
			if err != nil {
				return err
			}

			s, err := store.Open(cfg.Store.Path, store.Options{})
			if err != nil {
				return fmt.Errorf("open mubase: %w", err)
			}
			defer s.Close()

			res, err := builder.New(s).Build(defs)
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}
			g := graph.New()
			if err := g.Load(s); err != nil {
				return fmt.Errorf("load graph: %w", err)
			}

			fmt.Printf("nodes: +%d -%d   edges: +%d -%d   externals gc'd: %d\n",
				res.NodesUpserted, res.NodesDeleted, res.EdgesUpserted, res.EdgesDeleted, res.ExternalsGCed)
			if len(res.Failures) > 0 {
				for _, f := range res.Failures {
					fmt.Fprintf(os.Stderr, "parse failure: %s: %v\n", f.Path, f.Err)
				}
				return fmt.Errorf("%d files failed to parse: %w", len(res.Failures), kernel.ErrParse)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&defsPath, "defs", "", "path to a YAML ModuleDef stream (required)")
	cmd.MarkFlagRequired("defs")
	return cmd
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the daemon: watch, rebuild incrementally, and serve HTTP/WebSocket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			var embedder embedding.Provider
			if provider, provErr := embedding.NewProvider(embeddingConfigFrom(cfg)); provErr == nil {
				embedder = provider
			} else {
				log.Printf("mukernel: embedding provider unavailable, context extraction runs without vector search: %v", provErr)
			}

			d, err := daemon.New(daemon.Options{
				StorePath:      cfg.Store.Path,
				ListenAddress:  cfg.Daemon.ListenAddress,
				AdminToken:     cfg.Daemon.AdminToken,
				PIDFile:        cfg.Daemon.PIDFile,
				ShutdownGrace:  cfg.Daemon.ShutdownGrace,
				WatchRoot:      ".",
				Extensions:     cfg.Watch.Extensions,
				IgnoredDirs:    cfg.Watch.IgnoredDirs,
				DebounceWindow: cfg.Watch.DebounceWindow,
				Embedder:       embedder,
			})
			if err != nil {
				return fmt.Errorf("init daemon: %w", err)
			}
			if err := d.Start(); err != nil {
				return fmt.Errorf("start daemon: %w", err)
			}

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
			<-sig
			return d.Stop()
		},
	}
}

func newQueryCmd() *cobra.Command {
	var daemonURL, adminToken string
	cmd := &cobra.Command{
		Use:   "query <muql>",
		Short: "Run a MUQL query, via the daemon if running or a direct read-only open otherwise",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			ctx := context.Background()

			c := client.New(daemonURL, adminToken)
			if res, err := c.Query(ctx, args[0]); err == nil {
				printResult(res)
				return nil
			} else if !errors.Is(err, kernel.ErrUpstream) {
				return err
			}

			s, err := store.Open(cfg.Store.Path, store.Options{ReadOnly: true})
			if err != nil {
				return fmt.Errorf("open mubase read-only: %w", err)
			}
			defer s.Close()
			g := graph.New()
			if err := g.Load(s); err != nil {
				return fmt.Errorf("load graph: %w", err)
			}
			res, err := muql.NewExecutor(s, g).Run(args[0])
			if err != nil {
				return fmt.Errorf("%w: %w", err, kernel.ErrParse)
			}
			printResult(res)
			return nil
		},
	}
	cmd.Flags().StringVar(&daemonURL, "daemon", "http://127.0.0.1:4577", "daemon base URL")
	cmd.Flags().StringVar(&adminToken, "token", "", "daemon admin token")
	return cmd
}

func newContextCmd() *cobra.Command {
	var maxTokens int
	var daemonURL, adminToken string
	cmd := &cobra.Command{
		Use:   "context <question>",
		Short: "Extract an LLM-ready context packet for a natural-language question",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			c := client.New(daemonURL, adminToken)
			res, err := c.Context(ctx, args[0], maxTokens)
			if err != nil {
				return fmt.Errorf("context extraction requires a running daemon: %w", err)
			}
			fmt.Println(res.MUText)
			fmt.Fprintf(os.Stderr, "\n# %d tokens, %d nodes, strategy=%s\n", res.TokenCount, len(res.Nodes), res.Strategy)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 4000, "context token budget")
	cmd.Flags().StringVar(&daemonURL, "daemon", "http://127.0.0.1:4577", "daemon base URL")
	cmd.Flags().StringVar(&adminToken, "token", "", "daemon admin token")
	return cmd
}

func newStatsCmd() *cobra.Command {
	var daemonURL, adminToken string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print mubase node/edge counts and daemon status",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := client.New(daemonURL, adminToken)
			status, err := c.Status(context.Background())
			if err != nil {
				return fmt.Errorf("daemon not reachable at %s: %w", daemonURL, err)
			}
			fmt.Printf("nodes: %d   edges: %d   schema: v%d   ws connections: %d   uptime: %.0fs\n",
				status.NodeCount, status.EdgeCount, status.SchemaVersion, status.WSConnections, status.UptimeSeconds)
			return nil
		},
	}
	cmd.Flags().StringVar(&daemonURL, "daemon", "http://127.0.0.1:4577", "daemon base URL")
	cmd.Flags().StringVar(&adminToken, "token", "", "daemon admin token")
	return cmd
}

func printResult(res *muql.Result) {
	if res.Warning != "" {
		fmt.Fprintf(os.Stderr, "warning: %s\n", res.Warning)
	}
	fmt.Println(joinColumns(res.Columns))
	for _, row := range res.Rows {
		fmt.Println(joinRow(row))
	}
	fmt.Fprintf(os.Stderr, "(%d rows, %dms)\n", res.RowCount, res.ElapsedMS)
}

func joinColumns(cols []string) string {
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += "\t"
		}
		out += c
	}
	return out
}

func joinRow(row []any) string {
	out := ""
	for i, v := range row {
		if i > 0 {
			out += "\t"
		}
		out += fmt.Sprintf("%v", v)
	}
	return out
}

// --- ModuleDef loading (no parser ships with MU Kernel; `build` accepts
// the same YAML shape pkg/builder's tests use as fixtures) ---

type moduleFile struct {
	Modules []moduleDefYAML `yaml:"modules"`
}

type moduleDefYAML struct {
	Name        string          `yaml:"name"`
	Path        string          `yaml:"path"`
	Language    string          `yaml:"language"`
	ContentHash string          `yaml:"content_hash"`
	Docstring   string          `yaml:"docstring"`
	Imports     []importYAML    `yaml:"imports"`
	Classes     []classYAML     `yaml:"classes"`
	Functions   []functionYAML  `yaml:"functions"`
}

type importYAML struct {
	Module string `yaml:"module"`
	IsFrom bool   `yaml:"is_from"`
	Alias  string `yaml:"alias"`
}

type classYAML struct {
	Name      string         `yaml:"name"`
	Bases     []string       `yaml:"bases"`
	Docstring string         `yaml:"docstring"`
	Methods   []functionYAML `yaml:"methods"`
}

type functionYAML struct {
	Name       string      `yaml:"name"`
	Docstring  string      `yaml:"docstring"`
	Params     []paramYAML `yaml:"params"`
	ReturnType string      `yaml:"return_type"`
}

type paramYAML struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`
}

func loadModuleDefs(path string) ([]model.ModuleDef, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, kernel.ErrConfig)
	}
	var file moduleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, kernel.ErrConfig)
	}

	defs := make([]model.ModuleDef, 0, len(file.Modules))
	for _, m := range file.Modules {
		def := model.ModuleDef{
			Name:        m.Name,
			Path:        m.Path,
			Language:    m.Language,
			Docstring:   m.Docstring,
			ContentHash: m.ContentHash,
		}
		for _, imp := range m.Imports {
			def.Imports = append(def.Imports, model.ImportDef{Module: imp.Module, IsFrom: imp.IsFrom, Alias: imp.Alias})
		}
		for _, c := range m.Classes {
			cls := model.ClassDef{Name: c.Name, Bases: c.Bases, Docstring: c.Docstring}
			for _, fn := range c.Methods {
				cls.Methods = append(cls.Methods, toFunctionDef(fn))
			}
			def.Classes = append(def.Classes, cls)
		}
		for _, fn := range m.Functions {
			def.Functions = append(def.Functions, toFunctionDef(fn))
		}
		defs = append(defs, def)
	}
	return defs, nil
}

func toFunctionDef(f functionYAML) model.FunctionDef {
	fn := model.FunctionDef{Name: f.Name, Docstring: f.Docstring, ReturnType: f.ReturnType}
	for _, p := range f.Params {
		fn.Params = append(fn.Params, model.ParamDef{Name: p.Name, Type: p.Type})
	}
	return fn
}

func embeddingConfigFrom(cfg *config.Config) embedding.Config {
	apiPath := "/api/embeddings"
	if cfg.Embedding.Provider == "openai" {
		apiPath = "/v1/embeddings"
	}
	return embedding.Config{
		Kind:       cfg.Embedding.Provider,
		APIURL:     cfg.Embedding.APIURL,
		APIPath:    apiPath,
		Model:      cfg.Embedding.Model,
		APIKey:     cfg.Embedding.APIKey,
		Dimensions: cfg.Embedding.Dimensions,
		Timeout:    cfg.Embedding.Timeout,
	}
}
