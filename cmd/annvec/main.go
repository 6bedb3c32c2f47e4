// Command annvec is a thin CLI facade over pkg/core's VectorDB, in the
// command-tree shape of the teacher's cmd/sqvect/main.go.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vortexa-io/annvec/pkg/core"
	"github.com/vortexa-io/annvec/pkg/index"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "annvec",
	Short: "CLI tool for the annvec vector database",
	Long:  `A command-line interface for managing a local vector index and its storage backend.`,
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new vector database",
	RunE: func(cmd *cobra.Command, args []string) error {
		dim, _ := cmd.Flags().GetInt("dim")
		metric, _ := cmd.Flags().GetString("metric")
		indexKind, _ := cmd.Flags().GetString("index")
		storageKind, _ := cmd.Flags().GetString("storage")
		cacheSize, _ := cmd.Flags().GetInt("cache-size")
		m, _ := cmd.Flags().GetInt("hnsw-m")
		efConstruction, _ := cmd.Flags().GetInt("hnsw-ef-construction")
		efSearch, _ := cmd.Flags().GetInt("hnsw-ef-search")

		cfg := dbConfig{
			Dimension:   dim,
			Metric:      metric,
			IndexKind:   indexKind,
			StorageKind: storageKind,
			DataDir:     dbPath,
			CacheSize:   cacheSize,
		}
		switch indexKind {
		case "hnsw":
			cfg.HNSW = index.HNSWConfig{M: m, EfConstruction: efConstruction, EfSearch: efSearch}
		case "ivf":
			cfg.IVF = index.DefaultIVFConfig()
		case "lsh":
			cfg.LSH = index.DefaultLSHConfig()
		case "annoy":
			cfg.Annoy = index.DefaultAnnoyConfig()
		}

		coreCfg, err := cfg.toCoreConfig(newLogger())
		if err != nil {
			return fmt.Errorf("build config: %w", err)
		}
		if err := coreCfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		db, err := core.New(coreCfg)
		if err != nil {
			return fmt.Errorf("create database: %w", err)
		}
		if err := db.Initialize(context.Background()); err != nil {
			return fmt.Errorf("initialize database: %w", err)
		}
		defer db.Close()

		if err := writeDBConfig(dbPath, cfg); err != nil {
			return fmt.Errorf("write config: %w", err)
		}

		fmt.Printf("Initialized %s index over %s storage, %d dimensions, at %s\n", indexKind, storageKind, dim, dbPath)
		return nil
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a vector",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		metadataStr, _ := cmd.Flags().GetString("metadata")
		if vectorStr == "" {
			return fmt.Errorf("--vector is required")
		}

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}
		var metadata map[string]interface{}
		if metadataStr != "" {
			if err := json.Unmarshal([]byte(metadataStr), &metadata); err != nil {
				return fmt.Errorf("invalid metadata JSON: %w", err)
			}
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		var metadatas []map[string]interface{}
		if metadata != nil {
			metadatas = []map[string]interface{}{metadata}
		}
		ids, err := db.Insert(ctx, [][]float64{vector}, metadatas)
		if err != nil {
			return fmt.Errorf("insert failed: %w", err)
		}

		fmt.Printf("Inserted %s\n", ids[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a vector by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id := args[0]

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		succeeded, allSucceeded, err := db.Delete(ctx, []string{id})
		if err != nil {
			return fmt.Errorf("delete failed: %w", err)
		}
		if !allSucceeded || !succeeded[id] {
			return fmt.Errorf("id %q not found", id)
		}

		fmt.Printf("Deleted %s\n", id)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search for the nearest vectors",
	RunE: func(cmd *cobra.Command, args []string) error {
		vectorStr, _ := cmd.Flags().GetString("vector")
		k, _ := cmd.Flags().GetInt("k")
		outputJSON, _ := cmd.Flags().GetBool("json")

		vector, err := parseVector(vectorStr)
		if err != nil {
			return err
		}

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		results, err := db.Search(ctx, vector, k)
		if err != nil {
			return fmt.Errorf("search failed: %w", err)
		}

		if outputJSON {
			data, _ := json.MarshalIndent(results, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Printf("Found %d results:\n", len(results))
		for i, r := range results {
			fmt.Printf("%d. %s (distance: %.6f)\n", i+1, r.ID, r.Distance)
			if verbose && len(r.Metadata) > 0 {
				fmt.Printf("   Metadata: %v\n", r.Metadata)
			}
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display database statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		outputJSON, _ := cmd.Flags().GetBool("json")

		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		stats, err := db.Stats(ctx)
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		if outputJSON {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(data))
			return nil
		}

		fmt.Println("Database Statistics:")
		fmt.Printf("  Vectors: %v\n", stats["vector_count"])
		fmt.Printf("  Dimension: %v\n", stats["dimension"])
		fmt.Printf("  Index: %v\n", stats["index_type"])
		fmt.Printf("  Storage: %v\n", stats["storage_type"])
		if qt, ok := stats["quantizer_type"]; ok {
			fmt.Printf("  Quantizer: %v (trained: %v, ratio: %v)\n", qt, stats["quantizer_trained"], stats["compression_ratio"])
		}
		return nil
	},
}

var compactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Run the storage backend's maintenance pass",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Compact(context.Background()); err != nil {
			return fmt.Errorf("compact failed: %w", err)
		}

		fmt.Println("Database compacted successfully")
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <path>",
	Short: "Write every stored vector to a snapshot file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Snapshot(context.Background(), args[0]); err != nil {
			return fmt.Errorf("save failed: %w", err)
		}

		fmt.Printf("Snapshot written to %s\n", args[0])
		return nil
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <path>",
	Short: "Replay a snapshot file's vectors into the database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.Restore(context.Background(), args[0]); err != nil {
			return fmt.Errorf("load failed: %w", err)
		}

		fmt.Printf("Snapshot loaded from %s\n", args[0])
		return nil
	},
}

func parseVector(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	vector := make([]float64, 0, len(parts))
	for _, part := range parts {
		val, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid vector format: %w", err)
		}
		vector = append(vector, val)
	}
	return vector, nil
}

func newLogger() core.Logger {
	if verbose {
		return core.NewStdLogger(core.LevelDebug)
	}
	return core.NopLogger()
}

// openDB reopens the database described by dbPath's config sidecar,
// rebuilding its index from storage in the process (see core.Initialize).
func openDB() (*core.VectorDB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified")
	}

	cfg, err := readDBConfig(dbPath)
	if err != nil {
		return nil, err
	}
	coreCfg, err := cfg.toCoreConfig(newLogger())
	if err != nil {
		return nil, fmt.Errorf("build config: %w", err)
	}

	db, err := core.New(coreCfg)
	if err != nil {
		return nil, fmt.Errorf("create database: %w", err)
	}
	if err := db.Initialize(context.Background()); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	return db, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "annvec.db", "Database path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	initCmd.Flags().Int("dim", 0, "Vector dimension")
	initCmd.Flags().String("metric", "cosine", "Distance metric (cosine/euclidean/dot/manhattan)")
	initCmd.Flags().String("index", "flat", "Index kind (flat/hnsw/ivf/lsh/annoy)")
	initCmd.Flags().String("storage", "memory", "Storage kind (memory/disk/hybrid)")
	initCmd.Flags().Int("cache-size", 1000, "Hybrid storage LRU cache size")
	initCmd.Flags().Int("hnsw-m", 16, "HNSW M (max connections per node)")
	initCmd.Flags().Int("hnsw-ef-construction", 200, "HNSW efConstruction")
	initCmd.Flags().Int("hnsw-ef-search", 50, "HNSW efSearch")
	initCmd.MarkFlagRequired("dim")

	insertCmd.Flags().String("vector", "", "Vector values (comma-separated)")
	insertCmd.Flags().String("metadata", "", "Metadata as JSON")
	insertCmd.MarkFlagRequired("vector")

	searchCmd.Flags().String("vector", "", "Query vector (comma-separated)")
	searchCmd.Flags().Int("k", 10, "Number of results")
	searchCmd.Flags().Bool("json", false, "Output as JSON")
	searchCmd.MarkFlagRequired("vector")

	statsCmd.Flags().Bool("json", false, "Output as JSON")

	rootCmd.AddCommand(initCmd, insertCmd, deleteCmd, searchCmd, statsCmd, compactCmd, saveCmd, loadCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
