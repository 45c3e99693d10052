// odccov is a command line front end to the coverage query engine: it
// resolves a product's coverage descriptors from a datacube index and
// answers one-off subset queries as CoverageJSON, GeoTIFF or NetCDF.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"

	"github.com/nci/odccov/catalog"
	"github.com/nci/odccov/coverage"
	"github.com/nci/odccov/geo"
	"github.com/nci/odccov/logger"
	"github.com/nci/odccov/store"
)

type indexConfig struct {
	DSN       string `yaml:"dsn"`
	PoolSize  int    `yaml:"pool_size"`
	Files     string `yaml:"files"`
	Memcached string `yaml:"memcached"`
	CacheTTL  int32  `yaml:"cache_ttl_seconds"`
}

type config struct {
	Product string      `yaml:"product"`
	Index   indexConfig `yaml:"index"`
	Verbose bool        `yaml:"verbose"`
}

func loadConfig(path string) (*config, error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg config
	if err := yaml.Unmarshal(rawData, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %v", path, err)
	}
	if cfg.Product == "" {
		return nil, fmt.Errorf("config %s does not name a product", path)
	}
	return &cfg, nil
}

func buildIndex(cfg *config) (catalog.Index, error) {
	var index catalog.Index
	var err error
	switch {
	case cfg.Index.DSN != "":
		index, err = catalog.NewPostgresIndex(cfg.Index.DSN, cfg.Index.PoolSize)
	case cfg.Index.Files != "":
		index, err = catalog.NewFileIndex(cfg.Index.Files)
	default:
		return nil, fmt.Errorf("config names neither an index dsn nor a file catalog")
	}
	if err != nil {
		return nil, err
	}
	if cfg.Index.Memcached != "" {
		ttl := cfg.Index.CacheTTL
		if ttl == 0 {
			ttl = 300
		}
		index = catalog.NewCachedIndex(index, cfg.Index.Memcached, ttl)
	}
	return index, nil
}

func buildEngine(ctx context.Context, cfg *config) (*coverage.Engine, error) {
	index, err := buildIndex(cfg)
	if err != nil {
		return nil, err
	}

	product, err := index.Product(ctx, cfg.Product)
	if err != nil {
		return nil, err
	}
	datasets, err := index.Datasets(ctx, cfg.Product)
	if err != nil {
		return nil, err
	}

	granules, err := store.New(product, datasets)
	if err != nil {
		return nil, err
	}

	return coverage.New(ctx, coverage.Config{
		Product: cfg.Product,
		Index:   index,
		Loader:  granules,
		CRS:     geo.NewProvider(),
	})
}

// parseSubsets turns repeated --subset Lon=10:20 flags into axis ranges.
func parseSubsets(specs []string) (map[string][]float64, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	subsets := map[string][]float64{}
	for _, spec := range specs {
		name, rng, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("bad subset %q, want axis=lo:hi", spec)
		}
		lo, hi, ok := strings.Cut(rng, ":")
		if !ok {
			return nil, fmt.Errorf("bad subset range %q, want lo:hi", rng)
		}
		loVal, err := strconv.ParseFloat(lo, 64)
		if err != nil {
			return nil, fmt.Errorf("bad subset bound %q: %v", lo, err)
		}
		hiVal, err := strconv.ParseFloat(hi, 64)
		if err != nil {
			return nil, fmt.Errorf("bad subset bound %q: %v", hi, err)
		}
		subsets[name] = []float64{loVal, hiVal}
	}
	return subsets, nil
}

func parseBBox(spec string) ([]float64, error) {
	if spec == "" {
		return nil, nil
	}
	parts := strings.Split(spec, ",")
	if len(parts) != 4 {
		return nil, fmt.Errorf("bbox wants 4 comma-separated values, got %d", len(parts))
	}
	bbox := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("bad bbox value %q: %v", p, err)
		}
		bbox[i] = v
	}
	return bbox, nil
}

func writeOutput(path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func main() {
	var configPath string
	var verbose bool

	root := &cobra.Command{
		Use:           "odccov",
		Short:         "coverage queries against an OpenDataCube product",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return logger.Initialize(verbose)
		},
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "odccov.yaml", "config file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	describe := &cobra.Command{
		Use:   "describe",
		Short: "print the coverage domainset and rangetype",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cfg.Verbose && !verbose {
				if err := logger.Initialize(true); err != nil {
					return err
				}
			}

			eng, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			doc := map[string]interface{}{
				"domainset": eng.DomainSet(),
				"rangetype": eng.RangeType(),
			}
			out, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			out = append(out, '\n')
			return writeOutput("-", out)
		},
	}

	var bboxSpec, format, output string
	var bands, subsetSpecs []string
	query := &cobra.Command{
		Use:   "query",
		Short: "run one coverage query",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}

			bbox, err := parseBBox(bboxSpec)
			if err != nil {
				return err
			}
			subsets, err := parseSubsets(subsetSpecs)
			if err != nil {
				return err
			}

			eng, err := buildEngine(cmd.Context(), cfg)
			if err != nil {
				return err
			}

			res, err := eng.Query(cmd.Context(), coverage.QueryParams{
				RangeSubset: bands,
				Subsets:     subsets,
				BBox:        bbox,
				Format:      format,
			})
			if err != nil {
				return err
			}

			if res.Format == "json" {
				out, err := json.Marshal(res.Coverage)
				if err != nil {
					return err
				}
				return writeOutput(output, append(out, '\n'))
			}
			return writeOutput(output, res.Raw)
		},
	}
	query.Flags().StringVar(&bboxSpec, "bbox", "", "WGS84 bounding box minx,miny,maxx,maxy")
	query.Flags().StringSliceVar(&bands, "bands", nil, "band names (default all)")
	query.Flags().StringArrayVar(&subsetSpecs, "subset", nil, "native-CRS axis subset, e.g. Lon=10:20")
	query.Flags().StringVarP(&format, "format", "f", "json", "output format: json, geotiff or netcdf")
	query.Flags().StringVarP(&output, "output", "o", "-", "output file (default stdout)")

	root.AddCommand(describe, query)

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "odccov: %v\n", err)
		os.Exit(1)
	}
}
