package cli

import (
	"fmt"

	"github.com/alexanderramin/workorders/internal/cli/formatter"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/repository"
	"github.com/alexanderramin/workorders/internal/service"
	"github.com/spf13/cobra"
)

func newCatalogueCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalogue",
		Short: "Manage the product catalogue",
	}
	cmd.AddCommand(newCatalogueImportCmd(opts), newCatalogueListCmd(opts))
	return cmd
}

func newCatalogueImportCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import products from a catalogue YAML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			database, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := service.NewCatalogueService(
				repository.NewSQLiteCatalogueRepo(database),
				db.NewSQLiteUnitOfWork(database),
				service.NewLogUseCaseObserver(logger),
			)
			res, err := svc.ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Imported %d products (%d processes, %d modules).\n",
				len(res.Products), res.ProcessCount, res.ModuleCount)
			fmt.Fprint(out, formatter.FormatProducts(res.Products))
			return nil
		},
	}
}

func newCatalogueListCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List catalogue products and their processes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
			if err != nil {
				return err
			}
			database, err := openStore(cfg)
			if err != nil {
				return err
			}
			defer database.Close()

			repo := repository.NewSQLiteCatalogueRepo(database)
			summaries, err := repo.ListProducts(cmd.Context())
			if err != nil {
				return err
			}
			products := make([]*domain.Product, 0, len(summaries))
			for _, p := range summaries {
				full, err := repo.GetProduct(cmd.Context(), p.ID)
				if err != nil {
					return err
				}
				products = append(products, full)
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.FormatProducts(products))
			return nil
		},
	}
}
