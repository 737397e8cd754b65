package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/vasiliy-maslov/laofi/internal/db"
	"github.com/vasiliy-maslov/laofi/internal/product"
)

var seedFile string

var seedProductsCmd = &cobra.Command{
	Use:   "seed-products",
	Short: "Upsert the product catalog",
	Long: `Upsert every product of a YAML catalog by name.

Without --file the catalog embedded in the binary is used.

Examples:
  laofi seed-products
  laofi seed-products --file menu.yaml`,
	RunE: runSeedProducts,
}

func init() {
	seedProductsCmd.Flags().StringVarP(&seedFile, "file", "f", "", "YAML catalog to seed instead of the embedded one")
}

func runSeedProducts(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var catalog io.Reader = product.DefaultCatalog()
	if seedFile != "" {
		f, err := os.Open(seedFile)
		if err != nil {
			return fmt.Errorf("failed to open catalog: %w", err)
		}
		defer f.Close()
		catalog = f
	}

	pg, err := db.New(cmd.Context(), cfg.Postgres)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pg.Close()

	names, err := product.NewService(product.NewRepository(pg.Pool)).SeedCatalog(cmd.Context(), catalog)
	if err != nil {
		return err
	}

	for _, name := range names {
		log.Info().Str("product", name).Msg("Product seeded")
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d products\n", len(names))
	return nil
}
