package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"gigline/internal/app"
	"gigline/internal/config"
	"gigline/internal/db"
	"gigline/internal/domain"
	"gigline/internal/engine"
	"gigline/internal/engine/auth"
	"gigline/internal/migrate"
	"gigline/internal/repo"
	"gigline/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "gig",
	Short: "Gigline CLI",
	Long: `Gigline runs a freelance services marketplace from your terminal.
Core concepts:
- Workspace: the .gigline directory holding the marketplace database; config lives in gigline.yml or the DB.
- Project: a buyer's brief. Creators answer with proposals; accepting one spawns an order, rejecting leaves the rest open.
- Order: the engagement contract. Forward-only: created -> in_progress -> completed, with cancelled as the escape hatch.
- Milestones and deliveries: milestones plan the work, deliveries are append-only submissions under them.
- Reviews and disputes: reviews unlock when an order completes; disputes advance one step at a time until closed.
- SOW: an AI-drafted statement of work per project, versioned and never rewritten.
- Event log: diary of everything that happened, view with 'gig log tail'.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		workspace := viper.GetString("workspace")
		if _, err := db.EnsureWorkspace(workspace); err != nil {
			return err
		}
		return nil
	},
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("GIGLINE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("workspace", "w", ".", "workspace directory")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().String("actor-id", "local-user", "actor identifier")
	rootCmd.PersistentFlags().String("marketplace", "", "marketplace id (overrides config)")
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("actor-id", rootCmd.PersistentFlags().Lookup("actor-id"))
	_ = viper.BindPFlag("marketplace", rootCmd.PersistentFlags().Lookup("marketplace"))
}

func registerCommands() {
	rootCmd.AddCommand(projectCmd())
	rootCmd.AddCommand(proposalCmd())
	rootCmd.AddCommand(orderCmd())
	rootCmd.AddCommand(milestoneCmd())
	rootCmd.AddCommand(deliveryCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(disputeCmd())
	rootCmd.AddCommand(sowCmd())
	rootCmd.AddCommand(serviceCmd())
	rootCmd.AddCommand(messageCmd())
	rootCmd.AddCommand(portfolioCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(rbacCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func projectCmd() *cobra.Command {
	prj := &cobra.Command{Use: "project", Short: "Manage projects"}
	prj.AddCommand(projectCreateCmd())
	prj.AddCommand(projectListCmd())
	prj.AddCommand(projectShowCmd())
	prj.AddCommand(projectCloseCmd())
	return prj
}

func projectCreateCmd() *cobra.Command {
	var opts engine.ProjectCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Post a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CreateProject(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "project id")
	cmd.Flags().StringVar(&opts.BuyerID, "buyer", "", "buyer id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().Int64Var(&opts.BudgetMin, "budget-min", 0, "minimum budget in cents")
	cmd.Flags().Int64Var(&opts.BudgetMax, "budget-max", 0, "maximum budget in cents")
	cmd.Flags().StringVar(&opts.Deadline, "deadline", "", "deadline (RFC3339)")
	_ = cmd.MarkFlagRequired("buyer")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func projectListCmd() *cobra.Command {
	var f repo.ProjectFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List projects",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListProjects(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Title", "Buyer", "Category", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.Title, p.BuyerID, p.Category, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.BuyerID, "buyer", "", "buyer filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter (open, closed)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func projectShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <project-id>",
		Short: "Show a project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProject(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func projectCloseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "close <project-id>",
		Short: "Close a project to new proposals",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.CloseProject(ctx, args[0], viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalCmd() *cobra.Command {
	prop := &cobra.Command{Use: "proposal", Short: "Manage proposals"}
	prop.AddCommand(proposalSubmitCmd())
	prop.AddCommand(proposalListCmd())
	prop.AddCommand(proposalShowCmd())
	prop.AddCommand(proposalDecideCmd())
	prop.AddCommand(proposalUpdateCmd())
	return prop
}

func proposalSubmitCmd() *cobra.Command {
	var opts engine.ProposalSubmitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a proposal on an open project",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.SubmitProposal(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "proposal id")
	cmd.Flags().StringVar(&opts.ProjectID, "project", "", "project id")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "creator id")
	cmd.Flags().StringVar(&opts.ServiceID, "service", "", "service listing id")
	cmd.Flags().IntVar(&opts.DeliveryDays, "days", 0, "delivery days")
	cmd.Flags().StringVar(&opts.MilestonePlan, "milestones", "", "milestone plan")
	cmd.Flags().StringVar(&opts.RevisionScope, "revisions", "", "revision scope")
	cmd.Flags().Int64Var(&opts.Price, "price", 0, "price in cents")
	_ = cmd.MarkFlagRequired("project")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("days")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func proposalListCmd() *cobra.Command {
	var projectID, creatorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" && creatorID == "" {
				return fmt.Errorf("--project or --creator required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var items []domain.Proposal
				var err error
				if projectID != "" {
					items, err = r.ListProposalsByProject(ctx, projectID)
				} else {
					items, err = r.ListProposalsByCreator(ctx, creatorID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Creator", "Days", "Price", "Status"})
				for _, p := range items {
					tw.AppendRow(table.Row{p.ID, p.ProjectID, p.CreatorID, p.DeliveryDays, p.Price, p.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator id")
	return cmd
}

func proposalShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <proposal-id>",
		Short: "Show a proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				p, err := r.GetProposal(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	return cmd
}

func proposalDecideCmd() *cobra.Command {
	var decision string
	cmd := &cobra.Command{
		Use:   "decide <proposal-id>",
		Short: "Accept or reject a pending proposal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if decision != domain.ProposalAccepted && decision != domain.ProposalRejected {
				return fmt.Errorf("--decision must be accepted or rejected")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, order, err := e.DecideProposal(ctx, args[0], decision, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				out := map[string]any{"proposal": p}
				if order != nil {
					out["order"] = order
				}
				return printJSONOrTable(out)
			})
		},
	}
	cmd.Flags().StringVar(&decision, "decision", "", "accepted or rejected")
	_ = cmd.MarkFlagRequired("decision")
	return cmd
}

func proposalUpdateCmd() *cobra.Command {
	var days int
	var price int64
	var milestones, revisions string
	cmd := &cobra.Command{
		Use:   "update <proposal-id>",
		Short: "Update pending proposal terms",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.ProposalTermsOptions
			opts.ActorID = viper.GetString("actor-id")
			if cmd.Flags().Changed("days") {
				opts.DeliveryDays = &days
			}
			if cmd.Flags().Changed("price") {
				opts.Price = &price
			}
			if cmd.Flags().Changed("milestones") {
				opts.MilestonePlan = &milestones
			}
			if cmd.Flags().Changed("revisions") {
				opts.RevisionScope = &revisions
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				p, err := e.UpdateProposalTerms(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(p)
			})
		},
	}
	cmd.Flags().IntVar(&days, "days", 0, "delivery days")
	cmd.Flags().Int64Var(&price, "price", 0, "price in cents")
	cmd.Flags().StringVar(&milestones, "milestones", "", "milestone plan")
	cmd.Flags().StringVar(&revisions, "revisions", "", "revision scope")
	return cmd
}

func orderCmd() *cobra.Command {
	ord := &cobra.Command{Use: "order", Short: "Manage orders"}
	ord.AddCommand(orderListCmd())
	ord.AddCommand(orderShowCmd())
	ord.AddCommand(orderStatusCmd())
	return ord
}

func orderListCmd() *cobra.Command {
	var f repo.OrderFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListOrders(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Project", "Buyer", "Creator", "Price", "Status"})
				for _, o := range items {
					tw.AppendRow(table.Row{o.ID, o.ProjectID, o.BuyerID, o.CreatorID, o.Price, o.Status})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.BuyerID, "buyer", "", "buyer filter")
	cmd.Flags().StringVar(&f.CreatorID, "creator", "", "creator filter")
	cmd.Flags().StringVar(&f.ServiceID, "service", "", "service filter")
	cmd.Flags().StringVar(&f.ProjectID, "project", "", "project filter")
	cmd.Flags().StringVar(&f.Status, "status", "", "status filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func orderShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <order-id>",
		Short: "Show an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				o, err := r.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	return cmd
}

func orderStatusCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "status <order-id>",
		Short: "Advance order status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				o, err := e.UpdateOrderStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(o)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target status (in_progress, completed, cancelled)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func milestoneCmd() *cobra.Command {
	ms := &cobra.Command{Use: "milestone", Short: "Manage milestones"}
	ms.AddCommand(milestoneCreateCmd())
	ms.AddCommand(milestoneListCmd())
	ms.AddCommand(milestoneUpdateCmd())
	return ms
}

func milestoneCreateCmd() *cobra.Command {
	var opts engine.MilestoneCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a milestone under an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.CreateMilestone(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "milestone id")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.DueDate, "due", "", "due date (RFC3339)")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func milestoneListCmd() *cobra.Command {
	var orderID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List milestones for an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == "" {
				return fmt.Errorf("--order required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListMilestonesByOrder(ctx, orderID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	return cmd
}

func milestoneUpdateCmd() *cobra.Command {
	var title, description, due, state string
	var clearDue bool
	cmd := &cobra.Command{
		Use:   "update <milestone-id>",
		Short: "Update a milestone",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts engine.MilestoneUpdateOptions
			opts.ActorID = viper.GetString("actor-id")
			opts.ClearDue = clearDue
			if cmd.Flags().Changed("title") {
				opts.Title = &title
			}
			if cmd.Flags().Changed("description") {
				opts.Description = &description
			}
			if cmd.Flags().Changed("due") {
				opts.DueDate = &due
			}
			if cmd.Flags().Changed("state") {
				opts.State = &state
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.UpdateMilestone(ctx, args[0], opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&description, "description", "", "description")
	cmd.Flags().StringVar(&due, "due", "", "due date (RFC3339)")
	cmd.Flags().BoolVar(&clearDue, "clear-due", false, "remove the due date")
	cmd.Flags().StringVar(&state, "state", "", "planning state")
	return cmd
}

func deliveryCmd() *cobra.Command {
	del := &cobra.Command{
		Use:   "delivery",
		Short: "Manage deliveries",
		Long:  "Deliveries are append-only: submitting again adds a new row with the next sequence number, history is never rewritten.",
	}
	del.AddCommand(deliverySubmitCmd())
	del.AddCommand(deliveryListCmd())
	return del
}

func deliverySubmitCmd() *cobra.Command {
	var opts engine.DeliverySubmitOptions
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a delivery against a milestone",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.SubmitDelivery(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "delivery id")
	cmd.Flags().StringVar(&opts.MilestoneID, "milestone", "", "milestone id")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "creator id")
	cmd.Flags().StringVar(&opts.Note, "note", "", "note")
	cmd.Flags().StringVar(&opts.FileURL, "file-url", "", "file URL")
	_ = cmd.MarkFlagRequired("milestone")
	_ = cmd.MarkFlagRequired("creator")
	return cmd
}

func deliveryListCmd() *cobra.Command {
	var milestoneID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List deliveries for a milestone, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if milestoneID == "" {
				return fmt.Errorf("--milestone required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				items, err := e.ListDeliveries(ctx, milestoneID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&milestoneID, "milestone", "", "milestone id")
	return cmd
}

func reviewCmd() *cobra.Command {
	rev := &cobra.Command{Use: "review", Short: "Manage reviews"}
	rev.AddCommand(reviewCreateCmd())
	rev.AddCommand(reviewListCmd())
	return rev
}

func reviewCreateCmd() *cobra.Command {
	var opts engine.ReviewCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Leave a review on a completed order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				rv, err := e.CreateReview(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(rv)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "review id")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&opts.ReviewerID, "reviewer", "", "reviewer id")
	cmd.Flags().StringVar(&opts.RevieweeID, "reviewee", "", "reviewee id")
	cmd.Flags().IntVar(&opts.Rating, "rating", 0, "rating")
	cmd.Flags().StringVar(&opts.Comment, "comment", "", "comment")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("reviewer")
	_ = cmd.MarkFlagRequired("reviewee")
	_ = cmd.MarkFlagRequired("rating")
	return cmd
}

func reviewListCmd() *cobra.Command {
	var projectID, revieweeID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reviews",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" && revieweeID == "" {
				return fmt.Errorf("--project or --reviewee required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var items []domain.Review
				var err error
				if projectID != "" {
					items, err = r.ListReviewsByProject(ctx, projectID)
				} else {
					items, err = r.ListReviewsByReviewee(ctx, revieweeID)
				}
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().StringVar(&revieweeID, "reviewee", "", "reviewee id")
	return cmd
}

func disputeCmd() *cobra.Command {
	dis := &cobra.Command{Use: "dispute", Short: "Manage disputes"}
	dis.AddCommand(disputeRaiseCmd())
	dis.AddCommand(disputeShowCmd())
	dis.AddCommand(disputeAdvanceCmd())
	dis.AddCommand(disputeListCmd())
	return dis
}

func disputeRaiseCmd() *cobra.Command {
	var opts engine.DisputeRaiseOptions
	cmd := &cobra.Command{
		Use:   "raise",
		Short: "Raise a dispute on an active or completed order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.RaiseDispute(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "dispute id")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&opts.RaisedBy, "raised-by", "", "raising party")
	cmd.Flags().StringVar(&opts.Reason, "reason", "", "reason")
	cmd.Flags().StringArrayVar(&opts.Evidence, "evidence", []string{}, "evidence entries")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("raised-by")
	_ = cmd.MarkFlagRequired("reason")
	return cmd
}

func disputeShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <dispute-id>",
		Short: "Show a dispute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				d, err := r.GetDispute(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	return cmd
}

func disputeAdvanceCmd() *cobra.Command {
	var status string
	cmd := &cobra.Command{
		Use:   "advance <dispute-id>",
		Short: "Advance a dispute one step",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				d, err := e.AdvanceDisputeStatus(ctx, args[0], status, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(d)
			})
		},
	}
	cmd.Flags().StringVar(&status, "to", "", "target status (investigating, resolved, closed)")
	_ = cmd.MarkFlagRequired("to")
	return cmd
}

func disputeListCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List disputes for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListDisputesByProject(ctx, projectID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func sowCmd() *cobra.Command {
	sow := &cobra.Command{
		Use:   "sow",
		Short: "Statement of work",
		Long:  "Each generation writes the next version for the project; failed attempts never consume a version number.",
	}
	sow.AddCommand(sowGenerateCmd())
	sow.AddCommand(sowShowCmd())
	sow.AddCommand(sowVersionsCmd())
	return sow
}

func sowGenerateCmd() *cobra.Command {
	var opts engine.SowGenerateOptions
	var projectID string
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the next SOW version for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.GenerateSOW(ctx, projectID, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().IntVar(&opts.VideoDurationSeconds, "video-duration", 0, "video duration in seconds")
	cmd.Flags().StringVar(&opts.VideoStyle, "video-style", "", "video style")
	cmd.Flags().StringArrayVar(&opts.VideoReferences, "video-ref", []string{}, "video reference URLs")
	return cmd
}

func sowShowCmd() *cobra.Command {
	var projectID string
	var version int
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show a SOW version (latest by default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				var s domain.SOW
				var err error
				if version > 0 {
					s, err = r.GetSOW(ctx, projectID, version)
				} else {
					s, err = r.GetLatestSOW(ctx, projectID)
				}
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(s)
				}
				fmt.Printf("SOW %s v%d (%s, %s)\n\n%s\n", s.ProjectID, s.Version, s.Provider, s.GeneratedAt, s.Content)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	cmd.Flags().IntVar(&version, "version", 0, "version (0 = latest)")
	return cmd
}

func sowVersionsCmd() *cobra.Command {
	var projectID string
	cmd := &cobra.Command{
		Use:   "versions",
		Short: "List SOW versions for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			if projectID == "" {
				return fmt.Errorf("--project required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListSOWVersions(ctx, projectID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Version", "Provider", "Generated"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.Version, s.Provider, s.GeneratedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&projectID, "project", "", "project id")
	return cmd
}

func serviceCmd() *cobra.Command {
	svc := &cobra.Command{Use: "service", Short: "Manage service listings"}
	svc.AddCommand(serviceCreateCmd())
	svc.AddCommand(serviceListCmd())
	svc.AddCommand(serviceShowCmd())
	svc.AddCommand(serviceFeatureCmd())
	return svc
}

func serviceCreateCmd() *cobra.Command {
	var opts engine.ServiceCreateOptions
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Publish a service listing",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.CreateService(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "service id")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "creator id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "category")
	cmd.Flags().Int64Var(&opts.Price, "price", 0, "price in cents")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("title")
	_ = cmd.MarkFlagRequired("price")
	return cmd
}

func serviceListCmd() *cobra.Command {
	var f repo.ServiceFilters
	var featured bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List services",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("featured") {
				f.Featured = &featured
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListServices(ctx, f)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Creator", "Title", "Category", "Price", "Featured"})
				for _, s := range items {
					tw.AppendRow(table.Row{s.ID, s.CreatorID, s.Title, s.Category, s.Price, s.Featured})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&f.CreatorID, "creator", "", "creator filter")
	cmd.Flags().StringVar(&f.Category, "category", "", "category filter")
	cmd.Flags().BoolVar(&featured, "featured", false, "featured filter")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "max results")
	return cmd
}

func serviceShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <service-id>",
		Short: "Show a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				s, err := r.GetService(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	return cmd
}

func serviceFeatureCmd() *cobra.Command {
	var off bool
	cmd := &cobra.Command{
		Use:   "feature <service-id>",
		Short: "Feature or unfeature a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				s, err := e.SetServiceFeatured(ctx, args[0], !off, viper.GetString("actor-id"))
				if err != nil {
					return err
				}
				return printJSONOrTable(s)
			})
		},
	}
	cmd.Flags().BoolVar(&off, "off", false, "remove featured flag")
	return cmd
}

func messageCmd() *cobra.Command {
	msg := &cobra.Command{Use: "message", Short: "Order messages"}
	msg.AddCommand(messagePostCmd())
	msg.AddCommand(messageListCmd())
	return msg
}

func messagePostCmd() *cobra.Command {
	var opts engine.MessagePostOptions
	cmd := &cobra.Command{
		Use:   "post",
		Short: "Post a message on an order",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				m, err := e.PostMessage(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(m)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "message id")
	cmd.Flags().StringVar(&opts.OrderID, "order", "", "order id")
	cmd.Flags().StringVar(&opts.SenderID, "sender", "", "sender id")
	cmd.Flags().StringVar(&opts.Body, "body", "", "message body")
	_ = cmd.MarkFlagRequired("order")
	_ = cmd.MarkFlagRequired("sender")
	_ = cmd.MarkFlagRequired("body")
	return cmd
}

func messageListCmd() *cobra.Command {
	var orderID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List order messages, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == "" {
				return fmt.Errorf("--order required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListMessagesByOrder(ctx, orderID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&orderID, "order", "", "order id")
	return cmd
}

func portfolioCmd() *cobra.Command {
	pf := &cobra.Command{Use: "portfolio", Short: "Creator portfolios"}
	pf.AddCommand(portfolioAddCmd())
	pf.AddCommand(portfolioListCmd())
	return pf
}

func portfolioAddCmd() *cobra.Command {
	var opts engine.PortfolioAddOptions
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a portfolio item",
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.ActorID = viper.GetString("actor-id")
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				item, err := e.AddPortfolioItem(ctx, opts)
				if err != nil {
					return err
				}
				return printJSONOrTable(item)
			})
		},
	}
	cmd.Flags().StringVar(&opts.ID, "id", "", "item id")
	cmd.Flags().StringVar(&opts.CreatorID, "creator", "", "creator id")
	cmd.Flags().StringVar(&opts.Title, "title", "", "title")
	cmd.Flags().StringVar(&opts.Description, "description", "", "description")
	cmd.Flags().StringVar(&opts.URL, "url", "", "item URL")
	_ = cmd.MarkFlagRequired("creator")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func portfolioListCmd() *cobra.Command {
	var creatorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a creator's portfolio",
		RunE: func(cmd *cobra.Command, args []string) error {
			if creatorID == "" {
				return fmt.Errorf("--creator required")
			}
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListPortfolioByCreator(ctx, creatorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&creatorID, "creator", "", "creator id")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyDeleteCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var actorID, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if actorID == "" {
				actorID = viper.GetString("actor-id")
			}
			raw := make([]byte, 32)
			if _, err := rand.Read(raw); err != nil {
				return err
			}
			plaintext := "gig_" + hex.EncodeToString(raw)
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				key := domain.APIKey{
					ID:        uuid.NewString(),
					ActorID:   actorID,
					Name:      name,
					KeyHash:   repo.HashAPIKey(plaintext),
					CreatedAt: time.Now().UTC().Format(time.RFC3339),
				}
				tx, err := r.DB.BeginTx(ctx, nil)
				if err != nil {
					return err
				}
				defer tx.Rollback()
				if err := r.EnsureActor(ctx, tx, actorID, key.CreatedAt); err != nil {
					return err
				}
				if err := r.InsertAPIKey(ctx, tx, key); err != nil {
					return err
				}
				if err := tx.Commit(); err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"id":       key.ID,
					"actor_id": key.ActorID,
					"name":     key.Name,
					"key":      plaintext,
				})
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor id (defaults to --actor-id)")
	cmd.Flags().StringVar(&name, "name", "", "key label")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var actorID string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				items, err := r.ListAPIKeys(ctx, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(items)
			})
		},
	}
	cmd.Flags().StringVar(&actorID, "actor", "", "actor filter")
	return cmd
}

func apikeyDeleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <key-id>",
		Short: "Delete an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRepo(cmd.Context(), func(ctx context.Context, r repo.Repo) error {
				return r.DeleteAPIKey(ctx, args[0])
			})
		},
	}
	return cmd
}

func rbacCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "rbac", Short: "RBAC management"}
	cmd.AddCommand(rbacWhoamiCmd())
	cmd.AddCommand(rbacGrantCmd())
	cmd.AddCommand(rbacRevokeCmd())
	cmd.AddCommand(rbacSeedCmd())
	return cmd
}

func rbacWhoamiCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show current actor roles and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				svc := auth.Service{DB: e.DB}
				actorID := viper.GetString("actor-id")
				roles, err := svc.ActorRoles(ctx, e.Config.Marketplace.ID, actorID)
				if err != nil {
					return err
				}
				perms, err := svc.ActorPermissions(ctx, e.Config.Marketplace.ID, actorID)
				if err != nil {
					return err
				}
				return printJSONOrTable(map[string]any{
					"actor_id":    actorID,
					"roles":       roles,
					"permissions": perms,
				})
			})
		},
	}
	return cmd
}

func rbacGrantCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "grant-role",
		Short: "Grant role to actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.AssignRole(ctx, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rbacRevokeCmd() *cobra.Command {
	var target, role string
	cmd := &cobra.Command{
		Use:   "revoke-role",
		Short: "Revoke role from actor",
		RunE: func(cmd *cobra.Command, args []string) error {
			if target == "" || role == "" {
				return fmt.Errorf("--actor and --role required")
			}
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.RevokeRole(ctx, target, role, viper.GetString("actor-id"))
			})
		},
	}
	cmd.Flags().StringVar(&target, "actor", "", "actor id")
	cmd.Flags().StringVar(&role, "role", "", "role id")
	return cmd
}

func rbacSeedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Seed roles and permissions from config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				if err := e.SeedRBAC(ctx); err != nil {
					return err
				}
				fmt.Println("rbac seeded")
				return nil
			})
		},
	}
	return cmd
}

func configCmd() *cobra.Command {
	cfg := &cobra.Command{
		Use:   "config",
		Short: "Inspect marketplace config",
		Long:  "Config is the rulebook: marketplace identity, proposal policy, rating bounds, SOW provider, categories, and RBAC roles. Loaded from gigline.yml or the DB.",
	}
	cfg.AddCommand(configShowCmd())
	cfg.AddCommand(configCheckCmd())
	cfg.AddCommand(configInitCmd())
	return cfg
}

func configShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return printJSONOrTable(e.Config)
			})
		},
	}
	return cmd
}

func configCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate loaded config",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				return e.Config.Validate()
			})
			if viper.GetBool("json") {
				return printJSON(map[string]any{"ok": err == nil, "error": fmt.Sprint(err)})
			}
			if err != nil {
				return err
			}
			fmt.Println("config OK")
			return nil
		},
	}
	return cmd
}

func configInitCmd() *cobra.Command {
	var marketplaceID string
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default gigline.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			if marketplaceID == "" {
				return fmt.Errorf("--marketplace-id required")
			}
			path := config.Path(viper.GetString("workspace"))
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists", path)
			}
			if err := os.WriteFile(path, []byte(config.GenerateDefault(marketplaceID)), 0o644); err != nil {
				return err
			}
			fmt.Println("wrote", path)
			return nil
		},
	}
	cmd.Flags().StringVar(&marketplaceID, "marketplace-id", "", "marketplace id")
	return cmd
}

func statusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show marketplace status",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				projects, err := e.Repo.ListProjects(ctx, repo.ProjectFilters{Status: "open", Limit: 200})
				if err != nil {
					return err
				}
				orders, err := e.Repo.ListOrders(ctx, repo.OrderFilters{Status: domain.OrderInProgress, Limit: 200})
				if err != nil {
					return err
				}
				lastEvent, err := e.Repo.LatestEventID(ctx, e.Config.Marketplace.ID)
				if err != nil {
					return err
				}
				out := map[string]any{
					"marketplace_id":     e.Config.Marketplace.ID,
					"open_projects":      len(projects),
					"orders_in_progress": len(orders),
					"last_event_id":      lastEvent,
				}
				if viper.GetBool("json") {
					return printJSON(out)
				}
				fmt.Printf("Marketplace: %s\n", e.Config.Marketplace.ID)
				fmt.Printf("Open projects: %d\n", len(projects))
				fmt.Printf("Orders in progress: %d\n", len(orders))
				fmt.Printf("Last event id: %d\n", lastEvent)
				return nil
			})
		},
	}
	return cmd
}

func logCmd() *cobra.Command {
	lg := &cobra.Command{
		Use:   "log",
		Short: "Event log",
		Long:  "The diary of everything that happened: proposals, decisions, order transitions, deliveries, and more.",
	}
	lg.AddCommand(logTailCmd())
	return lg
}

func logTailCmd() *cobra.Command {
	var n int
	var evtType, entityKind, entityID string
	cmd := &cobra.Command{
		Use:   "tail",
		Short: "Tail events",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e engine.Engine) error {
				events, err := e.Repo.LatestEvents(ctx, n, e.Config.Marketplace.ID, evtType, entityKind, entityID)
				if err != nil {
					return err
				}
				return printJSONOrTable(events)
			})
		},
	}
	cmd.Flags().IntVar(&n, "n", 20, "number of events")
	cmd.Flags().StringVar(&evtType, "type", "", "event type filter")
	cmd.Flags().StringVar(&entityKind, "entity-kind", "", "entity kind")
	cmd.Flags().StringVar(&entityID, "entity-id", "", "entity id")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			if _, err := db.EnsureWorkspace(workspace); err != nil {
				return err
			}
			conn, err := db.Open(db.Config{Workspace: workspace})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			r := repo.Repo{DB: conn}
			_, cfg, err := app.ResolveMarketplaceAndConfig(cmd.Context(), workspace, viper.GetString("marketplace"), viper.GetString("actor-id"), r)
			if err != nil {
				return err
			}
			e := engine.New(conn, cfg)
			authCfg := server.AuthConfig{
				JWTSecret:  os.Getenv("GIGLINE_JWT_SECRET"),
				DevActorID: viper.GetString("actor-id"),
			}
			if authCfg.JWTSecret == "" {
				fmt.Println("GIGLINE_JWT_SECRET not set; running in dev mode without authentication")
			}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
			if err != nil {
				return err
			}
			server.StartWebhookDispatcher(e)
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving Gigline API on http://%s%s (OpenAPI at /openapi.json, Swagger UI at /docs)\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", "/v0", "API base path")
	return cmd
}

// --- helpers ---

func withEngine(ctx context.Context, fn func(context.Context, engine.Engine) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	_, cfg, err := app.ResolveMarketplaceAndConfig(ctx, workspace, viper.GetString("marketplace"), viper.GetString("actor-id"), r)
	if err != nil {
		return err
	}
	e := engine.New(conn, cfg)
	return fn(ctx, e)
}

func withRepo(ctx context.Context, fn func(context.Context, repo.Repo) error) error {
	workspace := viper.GetString("workspace")
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	r := repo.Repo{DB: conn}
	return fn(ctx, r)
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
