package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/younes-bami/hrcut-app/internal/apperr"
	"github.com/younes-bami/hrcut-app/internal/app"
	"github.com/younes-bami/hrcut-app/internal/logger"
	"github.com/younes-bami/hrcut-app/internal/model"
	"github.com/younes-bami/hrcut-app/internal/service/customers"
)

var seedPassword string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the store with demo customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		a, err := app.New(cfg, logger.Log)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if err := a.EnsureSchema(ctx); err != nil {
			return err
		}

		created, err := seedCustomers(customers.WithSource(ctx, "seed"), a.Service, seedPassword)
		if err != nil {
			return err
		}
		logger.Log.Info("seed completed", zap.Int("created", created))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedPassword, "password", "demo1234", "password given to every demo customer")
}

// seedCustomers registers deterministic demo customers; existing ones are skipped.
func seedCustomers(ctx context.Context, svc *customers.Service, password string) (int, error) {
	demo := []model.CreateCustomerInput{
		{Username: "john_doe", FirstName: "John", LastName: "Doe", Email: "john@example.com", PhoneNumber: "+212600000000"},
		{Username: "salma.b", FirstName: "Salma", LastName: "Bennani", Email: "salma@example.com", PhoneNumber: "+212661234567"},
		{Username: "youssef", FirstName: "Youssef", LastName: "El Amrani", Email: "youssef@example.com", PhoneNumber: "0522123456"},
		{Username: "imane_k", FirstName: "Imane", LastName: "Kabbaj", Email: "imane@example.com", PhoneNumber: "+212700112233"},
	}

	created := 0
	for _, in := range demo {
		_, err := svc.Register(ctx, model.RegisterCustomerInput{CreateCustomerInput: in, Password: password})
		switch {
		case err == nil:
			created++
		case apperr.Is(err, apperr.KindConflict):
			logger.Log.Info("customer exists, skipping", zap.String("username", in.Username))
		default:
			return created, fmt.Errorf("seed %s: %w", in.Username, err)
		}
	}
	return created, nil
}
