// Package catalog loads product seed files and imports them through the
// back office so every opening stock level is ledgered.
package catalog

import (
	"bufio"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"storefront/internal/model"
)

// Loader reads a product seed file.
type Loader interface {
	// Load reads a gzipped JSON-lines seed file, one product per line.
	Load(ctx context.Context, path string) ([]model.ProductRequest, error)
}

const maxLineBytes = 1024 * 1024

// decode parses gzipped JSON lines from r. Blank lines and lines starting
// with '#' are skipped; source only labels errors.
func decode(ctx context.Context, r io.Reader, source string) ([]model.ProductRequest, error) {
	gzipReader, err := gzip.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader for %s: %w", source, err)
	}
	defer gzipReader.Close()

	scanner := bufio.NewScanner(gzipReader)
	scanner.Buffer(make([]byte, 64*1024), maxLineBytes)

	var products []model.ProductRequest
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var req model.ProductRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", source, lineNo, err)
		}
		products = append(products, req)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading seed file %s: %w", source, err)
	}
	return products, nil
}
