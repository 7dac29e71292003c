// Command generate_knowledge_graph converts GENCODE annotation into an
// edge list and node table, and loads or verifies the result.
package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/athapong/gencode-kg/pkg/config"
	"github.com/athapong/gencode-kg/pkg/graph"
	"github.com/athapong/gencode-kg/pkg/graph/algorithms"
	"github.com/athapong/gencode-kg/pkg/graph/metrics"
	"github.com/athapong/gencode-kg/pkg/graph/storage"
	"github.com/athapong/gencode-kg/pkg/graph/visualizer"
	"github.com/athapong/gencode-kg/pkg/gtf"
)

const (
	Version = "0.1.0"
	appName = "generate_knowledge_graph"

	// maxDiffLines caps the changed lines printed per file by verify.
	maxDiffLines = 20
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type globalFlags struct {
	registry string
	config   string
	env      string
	logLevel string
}

func rootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Convert GENCODE annotation to a knowledge graph",
		Long: `Converts a GENCODE GTF annotation, joined with its Entrez, RefSeq,
SwissProt and TrEMBL metadata tables, into an edge list and a node table.

Vocabulary terms (chromosomes, feature types, biotypes, strands) resolve
against the node table of the GENCODE_VS ingestion, which must run first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.registry, "registry", "sab.json", "SAB registry file (JSON)")
	pf.StringVarP(&g.config, "config", "c", "", "Config file path (YAML); bypasses the registry")
	pf.StringVar(&g.env, "env", "", "Environment file loaded before config expansion (default ./.env if present)")
	pf.StringVar(&g.logLevel, "log-level", "info", "Logging level (debug, info, warn, error)")

	cmd.AddCommand(convertCmd(g), verifyCmd(g), relationsCmd(g), loadCmd(g), inspectCmd(g), versionCmd())
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	}
}

func convertCmd(g *globalFlags) *cobra.Command {
	var (
		fetch   bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "convert <SAB>",
		Short: "Convert a source to edge list and node table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel)
			if err != nil {
				return err
			}
			cfg, entry, err := resolve(g, args[0])
			if err != nil {
				return err
			}

			opts := optionsFromConfig(cfg, entry)
			opts.Fetch = fetch
			if workers > 0 {
				opts.Workers = workers
			}

			pipeline := graph.NewPipeline(opts, logger)
			for _, s := range outputStores(cfg, entry.Name) {
				pipeline.AddSink(s)
			}
			if _, err := pipeline.Run(cmd.Context()); err != nil {
				return errors.Wrapf(err, "convert %s", entry.Name)
			}

			if path := cfg.OutputPath(entry.Name, cfg.Output.MetricsFile); path != "" {
				if err := metrics.WriteTextfile(path); err != nil {
					return errors.Wrap(err, "write metrics")
				}
				logger.WithField("path", path).Info("Wrote metrics textfile")
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&fetch, "fetch", "f", false, "Rebuild the translated annotation file from the raw GTF and metadata files")
	cmd.Flags().IntVar(&workers, "workers", 0, "Decode and emit workers (default from config)")
	return cmd
}

func verifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <SAB>",
		Short: "Regenerate outputs in memory and diff them against the files on disk",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel)
			if err != nil {
				return err
			}
			cfg, entry, err := resolve(g, args[0])
			if err != nil {
				return err
			}

			kg, err := graph.NewPipeline(optionsFromConfig(cfg, entry), logger).Build(cmd.Context())
			if err != nil {
				return errors.Wrapf(err, "rebuild %s", entry.Name)
			}

			edges, err := storage.Render(func(w *bytes.Buffer) error { return storage.WriteEdges(w, kg.Edges) })
			if err != nil {
				return err
			}
			nodes, err := storage.Render(func(w *bytes.Buffer) error { return storage.WriteNodes(w, kg.Nodes) })
			if err != nil {
				return err
			}

			differ := 0
			for _, f := range []struct {
				path     string
				rendered []byte
			}{
				{cfg.OutputPath(entry.Name, cfg.Output.EdgesFile), edges},
				{cfg.OutputPath(entry.Name, cfg.Output.NodesFile), nodes},
			} {
				d, err := storage.DiffFile(f.path, f.rendered)
				if err != nil {
					return err
				}
				printDiff(cmd, d)
				if !d.Equal {
					differ++
				}
			}
			if differ > 0 {
				return errors.Errorf("%d output file(s) differ from a fresh conversion", differ)
			}
			return nil
		},
	}
}

func printDiff(cmd *cobra.Command, d storage.FileDiff) {
	out := cmd.OutOrStdout()
	if d.Equal {
		fmt.Fprintf(out, "%s: identical\n", d.Path)
		return
	}
	fmt.Fprintf(out, "%s: %d line(s) added, %d removed\n", d.Path, d.Inserted, d.Deleted)
	for i, line := range d.Lines {
		if i == maxDiffLines {
			fmt.Fprintf(out, "  ... %d more\n", len(d.Lines)-maxDiffLines)
			break
		}
		fmt.Fprintf(out, "  %s\n", line)
	}
}

func relationsCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "relations <SAB>",
		Short: "Write the relations file describing every predicate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, entry, err := resolve(g, args[0])
			if err != nil {
				return err
			}
			name := cfg.Output.RelationsFile
			if name == "" {
				name = storage.RelationsFile
			}
			path := cfg.OutputPath(entry.Name, name)
			if err := storage.NewRelationsStore(path, entry.Name).StoreGraph(cmd.Context(), nil); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}

func loadCmd(g *globalFlags) *cobra.Command {
	var (
		uri       string
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "load <SAB>",
		Short: "Load the edge list and node table into Neo4j",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(g.logLevel)
			if err != nil {
				return err
			}
			cfg, entry, err := resolve(g, args[0])
			if err != nil {
				return err
			}
			if uri != "" {
				cfg.Neo4j.URI = uri
			}
			if batchSize > 0 {
				cfg.Neo4j.BatchSize = batchSize
			}

			tsv := storage.NewTSVGraphStore(
				cfg.OutputPath(entry.Name, cfg.Output.EdgesFile),
				cfg.OutputPath(entry.Name, cfg.Output.NodesFile),
			)
			kg, err := tsv.LoadGraph(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "read outputs; run convert first")
			}

			neo, err := storage.NewNeo4jStorage(cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.BatchSize, logger)
			if err != nil {
				return err
			}
			defer neo.Close()

			logger.WithFields(logrus.Fields{
				"uri":        cfg.Neo4j.URI,
				"nodes":      len(kg.Nodes),
				"edges":      len(kg.Edges),
				"predicates": kg.PredicateCounts(),
			}).Info("Loading graph into Neo4j")
			return neo.StoreGraph(cmd.Context(), kg)
		},
	}

	cmd.Flags().StringVar(&uri, "uri", "", "Neo4j URI (default from config)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Rows per transaction (default from config)")
	return cmd
}

func inspectCmd(g *globalFlags) *cobra.Command {
	var (
		depth int
		mode  string
		html  string
	)

	cmd := &cobra.Command{
		Use:   "inspect <SAB> <node-id>",
		Short: "Print the edges around a node of the converted graph",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, entry, err := resolve(g, args[0])
			if err != nil {
				return err
			}
			kg, err := storage.NewTSVGraphStore(
				cfg.OutputPath(entry.Name, cfg.Output.EdgesFile),
				cfg.OutputPath(entry.Name, cfg.Output.NodesFile),
			).LoadGraph(cmd.Context())
			if err != nil {
				return errors.Wrap(err, "read outputs; run convert first")
			}

			sub, err := algorithms.NewGraphTraversal(kg).Traverse(cmd.Context(), args[1], depth, algorithms.TraversalType(strings.ToUpper(mode)))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, e := range sub.Edges {
				fmt.Fprintf(out, "%s\t%s\t%s\n", e.Subject, e.Predicate, e.Object)
			}
			if html != "" {
				v := visualizer.NewD3Visualizer(html)
				v.Title = args[1]
				if err := v.Visualize(sub); err != nil {
					return err
				}
				fmt.Fprintln(out, html)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&depth, "depth", 1, "Hops to follow from the node")
	cmd.Flags().StringVar(&mode, "mode", string(algorithms.BFS), "Traversal order (BFS, DFS)")
	cmd.Flags().StringVar(&html, "html", "", "Also write a D3.js page of the neighbourhood to this path")
	return cmd
}

func newLogger(level string) (*logrus.Logger, error) {
	logger := logrus.New()
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, errors.Wrap(err, "invalid log level")
	}
	logger.SetLevel(lvl)
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
	return logger, nil
}

// resolve finds the configuration for sab: the --config file when given,
// otherwise the registry entry.
func resolve(g *globalFlags, sab string) (*config.Config, config.SABEntry, error) {
	entry := config.SABEntry{
		Name:      strings.ToUpper(strings.TrimSpace(sab)),
		Converter: config.ConverterGENCODE,
		Config:    g.config,
	}
	if g.config == "" {
		reg, err := config.LoadRegistry(g.registry)
		if err != nil {
			return nil, entry, err
		}
		if entry, err = reg.Lookup(sab); err != nil {
			return nil, entry, err
		}
		if entry.Config == "" {
			return nil, entry, errors.Errorf("registry entry %s has no config file", entry.Name)
		}
	}

	cfg, err := config.Load(entry.Config, g.env)
	if err != nil {
		return nil, entry, err
	}
	return cfg, entry, nil
}

func optionsFromConfig(cfg *config.Config, entry config.SABEntry) graph.Options {
	opts := graph.DefaultOptions()
	opts.SAB = entry.Name
	if entry.Prerequisite != "" {
		opts.PrerequisiteSAB = entry.Prerequisite
	}
	opts.SourceDir = cfg.SourceDir(entry.Name)
	opts.OutputDir = cfg.OutputDir(entry.Name)
	opts.VocabularyDir = cfg.VSDir()
	opts.AnnotationPattern = cfg.GTF.AnnotationPattern
	opts.AnnotationFile = cfg.AnnotationFile.Filename
	opts.Columns = cfg.GTF.Columns
	opts.Keys = cfg.GTF.Column9Keys
	opts.PairDelimiter = cfg.GTF.PairDelimiter
	opts.FieldDelimiter = cfg.GTF.FieldDelimiter
	opts.FeatureTypes = gtf.ParseList(cfg.Filters.FeatureTypes)
	opts.ProjectColumns = gtf.ParseList(cfg.Filters.Columns)
	opts.XRefs = cfg.XRef
	opts.Workers = cfg.Runtime.Workers
	return opts
}

func outputStores(cfg *config.Config, sab string) []graph.Sink {
	sinks := []graph.Sink{
		storage.NewTSVGraphStore(
			cfg.OutputPath(sab, cfg.Output.EdgesFile),
			cfg.OutputPath(sab, cfg.Output.NodesFile),
		),
	}
	if path := cfg.OutputPath(sab, cfg.Output.RelationsFile); path != "" {
		sinks = append(sinks, storage.NewRelationsStore(path, sab))
	}
	if path := cfg.OutputPath(sab, cfg.Output.JSONFile); path != "" {
		sinks = append(sinks, storage.NewJSONGraphStore(path))
	}
	return sinks
}
