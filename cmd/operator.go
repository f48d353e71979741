package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"text/tabwriter"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"operator-dispatch.com/operator-dispatch/internal/constants"
	config "operator-dispatch.com/operator-dispatch/internal/configs"
	model "operator-dispatch.com/operator-dispatch/internal/models"
	repository "operator-dispatch.com/operator-dispatch/internal/repositories"
)

var operatorCmd = &cobra.Command{
	Use:   "operator",
	Short: "Manage the operator roster",
}

var operatorSetCmd = &cobra.Command{
	Use:   "set <id> <handle> <online|offline>",
	Short: "Add an operator or change their handle and status",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		status := args[2]
		if status != constants.OperatorOnline && status != constants.OperatorOffline {
			return fmt.Errorf("status must be %s or %s", constants.OperatorOnline, constants.OperatorOffline)
		}

		repo := operatorRepository()
		op := &model.Operator{ID: args[0], Handle: args[1], Status: status}
		if err := repo.Upsert(context.Background(), op); err != nil {
			return err
		}

		log.Printf("operator %s (@%s) is %s", op.ID, op.Handle, op.Status)
		return nil
	},
}

var operatorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the operator roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		operators, err := operatorRepository().List(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tHANDLE\tROLE\tSTATUS")
		for _, op := range operators {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", op.ID, op.Handle, op.Role, op.Status)
		}
		return w.Flush()
	},
}

func operatorRepository() *repository.OperatorRepository {
	if err := godotenv.Load(); err != nil {
		log.Println(".env file not found, using environment variables")
	}

	cfg := config.Load()
	return repository.NewOperatorRepository(config.NewDatabase(cfg.DatabaseDriver, cfg.DatabaseDSN))
}

func init() {
	operatorCmd.AddCommand(operatorSetCmd, operatorListCmd)
	rootCmd.AddCommand(operatorCmd)
}
