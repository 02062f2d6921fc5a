package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joshua-takyi/venuebook/internal/config"
	"github.com/joshua-takyi/venuebook/internal/connect"
	"github.com/joshua-takyi/venuebook/internal/helpers"
	"github.com/joshua-takyi/venuebook/internal/models"
	"github.com/joshua-takyi/venuebook/internal/services"
	"github.com/spf13/cobra"
)

func pdfCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "pdf <venue-id>",
		Short: "Export a venue summary as PDF",
		Example: `  venuectl pdf 3f2a9c1e-8d4b-4e7a-9b2c-1d2e3f4a5b6c
  venuectl pdf 3f2a9c1e-8d4b-4e7a-9b2c-1d2e3f4a5b6c -o hall.pdf`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid venue id %q", args[0])
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			pdfs, err := newPDFService(cfg)
			if err != nil {
				return err
			}

			if output == "" {
				output = id.String() + ".pdf"
			}
			f, err := os.Create(output)
			if err != nil {
				return err
			}
			venue, err := pdfs.Export(cmd.Context(), id, f)
			if closeErr := f.Close(); err == nil {
				err = closeErr
			}
			if err != nil {
				_ = os.Remove(output)
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s for %q\n", output, venue.Name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (default <venue-id>.pdf)")
	return cmd
}

func newPDFService(cfg *config.ToolConfig) (*services.VenuePDFService, error) {
	if cfg.SupabaseURL == "" || cfg.SupabaseAnonKey == "" {
		return nil, fmt.Errorf("SUPABASE_URL and SUPABASE_URL_ANON_KEY are required")
	}
	anon, err := connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseAnonKey)
	if err != nil {
		return nil, err
	}
	service := anon
	if cfg.SupabaseServiceRoleKey != "" {
		if service, err = connect.InitSupabase(cfg.SupabaseURL, cfg.SupabaseServiceRoleKey); err != nil {
			return nil, err
		}
	}
	repo := models.SupabaseNewRepo(anon, service, cfg.SupabaseURL, cfg.SupabaseAnonKey)
	logger := config.NewLogger(cfg.Environment, cfg.LogLevel)
	return services.NewVenuePDFService(repo, helpers.NewHTTPImageFetcher(15*time.Second), logger), nil
}
