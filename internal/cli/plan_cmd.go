package cli

import (
	"context"
	"fmt"

	"github.com/alexanderramin/workorders/internal/cli/formatter"
	"github.com/alexanderramin/workorders/internal/db"
	"github.com/alexanderramin/workorders/internal/domain"
	"github.com/alexanderramin/workorders/internal/repository"
	"github.com/alexanderramin/workorders/internal/service"
	"github.com/spf13/cobra"
)

func newPlanCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Inspect work plans",
	}
	cmd.AddCommand(newPlanShowCmd(opts), newPlanListCmd(opts))
	return cmd
}

// readOnlyPlans builds a plan service for reads. Mutations need the
// collaborators only the server wires.
func readOnlyPlans(database db.DBTX) (service.PlanService, repository.CatalogueRepo) {
	products := repository.NewSQLiteCatalogueRepo(database)
	return service.NewPlanService(service.PlanDeps{
		Plans:     repository.NewSQLiteWorkPlanRepo(database),
		Orders:    repository.NewSQLiteWorkOrderRepo(database),
		Catalogue: products,
	}), products
}

func newPlanShowCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <plan-id>",
		Short: "Show a work plan and its orders",
		Args:  cobra.ExactArgs(1),
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

			plans, products := readOnlyPlans(database)
			view, err := plans.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			product, err := planProduct(cmd.Context(), products, view.Plan)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), formatter.FormatPlan(view, product))
			return nil
		},
	}
}

func newPlanListCmd(opts *rootOptions) *cobra.Command {
	var owner string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List work plans",
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

			plans, _ := readOnlyPlans(database)
			views, err := plans.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if len(views) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), formatter.StyleDim.Render("No work plans."))
				return nil
			}

			rows := make([][]string, 0, len(views))
			for _, v := range views {
				rows = append(rows, []string{
					v.Plan.ID,
					v.Plan.Owner,
					formatter.PlanStatusPill(v.Status),
					fmt.Sprintf("%d", len(v.Orders)),
					v.Plan.UpdatedAt.Format("2006-01-02 15:04"),
				})
			}
			fmt.Fprint(cmd.OutOrStdout(), formatter.RenderTable([]string{"ID", "OWNER", "STATUS", "ORDERS", "UPDATED"}, rows))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "only plans owned by this user")
	return cmd
}

// planProduct loads the plan's product, or nil before one is chosen.
func planProduct(ctx context.Context, products repository.CatalogueRepo, p *domain.WorkPlan) (*domain.Product, error) {
	if p.ProductID == nil {
		return nil, nil
	}
	product, err := products.GetProduct(ctx, *p.ProductID)
	if err != nil {
		return nil, fmt.Errorf("loading product of plan %s: %w", p.ID, err)
	}
	return product, nil
}
