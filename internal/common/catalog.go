package common

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/TheVoodooSoul/aktionfilmai-sub002/internal/models"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

func LoadCatalog(catalogFile string) (*models.Catalog, error) {
	var catalogPath string
	if filepath.IsAbs(catalogFile) {
		catalogPath = catalogFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		catalogPath = filepath.Join(wd, catalogFile)
	}

	data, err := os.ReadFile(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", catalogFile, err)
	}

	return ParseCatalog(data)
}

// ParseCatalog decodes and validates catalog YAML.
func ParseCatalog(data []byte) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := yaml.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("unable to parse catalog: %w", err)
	}

	if catalog.Costs.Video < 0 || catalog.Costs.Workflow < 0 || catalog.Costs.Speech < 0 {
		return nil, fmt.Errorf("generation costs cannot be negative")
	}

	seen := make(map[string]bool, len(catalog.CreditPacks))
	for i := range catalog.CreditPacks {
		pack := &catalog.CreditPacks[i]
		if pack.Id == "" {
			return nil, fmt.Errorf("credit pack at index %d missing id", i)
		}
		if seen[pack.Id] {
			return nil, fmt.Errorf("duplicate credit pack id %q", pack.Id)
		}
		seen[pack.Id] = true
		if pack.Credits <= 0 {
			return nil, fmt.Errorf("credit pack %q must grant a positive number of credits", pack.Id)
		}

		price, err := decimal.NewFromString(pack.Price)
		if err != nil {
			return nil, fmt.Errorf("credit pack %q has invalid price %q: %w", pack.Id, pack.Price, err)
		}
		if !price.IsPositive() {
			return nil, fmt.Errorf("credit pack %q price must be positive", pack.Id)
		}
		if pack.Currency == "" {
			pack.Currency = "usd"
		}
		pack.Currency = strings.ToLower(pack.Currency)
		pack.PriceMinor = models.ToMinorUnits(price, pack.Currency)
	}

	return &catalog, nil
}
