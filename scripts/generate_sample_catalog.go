//go:build ignore

// Generates a small gzipped JSON-lines catalogue for local development:
//
//	go run scripts/generate_sample_catalog.go
//	storectl seed --file data/catalog/sample.jsonl.gz
package main

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"storefront/internal/model"

	"github.com/shopspring/decimal"
)

func main() {
	dataDir := "data/catalog"

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		log.Fatalf("Failed to create directory: %v", err)
	}

	inactive := false
	products := []model.ProductRequest{
		{ID: "TEE-CLASSIC", Name: "Classic Tee", Description: "Heavyweight cotton tee", Price: decimal.RequireFromString("19.99"), Category: "apparel", InitialStock: 40},
		{ID: "HOODIE-ZIP", Name: "Zip Hoodie", Description: "Fleece-lined zip hoodie", Price: decimal.RequireFromString("54.00"), Category: "apparel", InitialStock: 12},
		{ID: "MUG-ENAMEL", Name: "Enamel Mug", Price: decimal.RequireFromString("12.50"), Category: "kitchen", InitialStock: 25},
		{ID: "TOTE-CANVAS", Name: "Canvas Tote", Price: decimal.RequireFromString("15.00"), Category: "accessories", InitialStock: 3},
		{ID: "CAP-WOOL", Name: "Wool Cap", Price: decimal.RequireFromString("24.00"), Category: "accessories"},
		{ID: "POSTER-2023", Name: "Tour Poster 2023", Price: decimal.RequireFromString("9.00"), Category: "prints", Active: &inactive, InitialStock: 7},
	}

	filePath := filepath.Join(dataDir, "sample.jsonl.gz")
	if err := createCatalogFile(filePath, products); err != nil {
		log.Fatalf("Failed to create %s: %v", filePath, err)
	}

	fmt.Printf("Created %s with %d products\n", filePath, len(products))
	fmt.Println("\nLow stock: TOTE-CANVAS (3)")
	fmt.Println("Out of stock: CAP-WOOL")
	fmt.Println("Hidden from storefront: POSTER-2023")
}

func createCatalogFile(filePath string, products []model.ProductRequest) error {
	file, err := os.Create(filePath)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	gzipWriter := gzip.NewWriter(file)
	defer gzipWriter.Close()

	enc := json.NewEncoder(gzipWriter)
	for _, p := range products {
		if err := enc.Encode(p); err != nil {
			return fmt.Errorf("failed to write product %s: %w", p.ID, err)
		}
	}
	return nil
}
