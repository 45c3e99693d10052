package catalog

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/nci/odccov/logger"
)

// FileIndex reads a directory tree of ODC documents without a database:
//
//	<root>/products/<product>.odc-product.yaml
//	<root>/datasets/<product>/*.odc-metadata.yaml
//
// Dataset documents are EO3. Measurement paths inside a document are
// resolved relative to the document's own directory, matching how datacube
// resolves relative paths against the dataset location.
type FileIndex struct {
	root string
}

func NewFileIndex(root string) (*FileIndex, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalog root %s is not a directory", root)
	}
	return &FileIndex{root: root}, nil
}

func (ix *FileIndex) Product(ctx context.Context, name string) (*Product, error) {
	path := filepath.Join(ix.root, "products", name+".odc-product.yaml")
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("product %s not found in file index: %v", name, err)
	}

	var doc productDoc
	if err := yaml.Unmarshal(rawData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse product document %s: %v", path, err)
	}
	if doc.Name != name {
		logger.Log.Warnf("product document %s declares name %q", path, doc.Name)
	}

	return doc.toProduct(), nil
}

func (ix *FileIndex) Datasets(ctx context.Context, product string) ([]*Dataset, error) {
	dir := filepath.Join(ix.root, "datasets", product)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("no dataset documents for product %s: %v", product, err)
	}

	var datasets []*Dataset
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		ds, err := ix.loadDatasetDoc(path)
		if err != nil {
			return nil, err
		}
		datasets = append(datasets, ds)
	}

	sort.Slice(datasets, func(i, j int) bool {
		if !datasets[i].Time.Equal(datasets[j].Time) {
			return datasets[i].Time.Before(datasets[j].Time)
		}
		return datasets[i].ID < datasets[j].ID
	})

	return datasets, nil
}

func (ix *FileIndex) loadDatasetDoc(path string) (*Dataset, error) {
	rawData, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var doc eo3Doc
	if err := yaml.Unmarshal(rawData, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse dataset document %s: %v", path, err)
	}

	return doc.toDataset(filepath.Dir(path))
}
