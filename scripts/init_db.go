//go:build ignore
// +build ignore

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"case-disposition-engine/internal/config"
	"case-disposition-engine/internal/models"
	"case-disposition-engine/internal/services/database"
)

// sampleOrganizations seeds a fresh database so /api/plan has candidates to score.
var sampleOrganizations = []*models.Organization{
	{
		ID:                "org-north-law",
		Name:              "Northern Recovery Law Group",
		Type:              models.OrganizationTypeLawFirm,
		ServiceRegions:    []string{"north", "east"},
		TeamSize:          12,
		MonthlyCapacity:   400,
		CurrentLoad:       35,
		BusinessScope:     []string{"consumer_loan", "credit_card"},
		SettlementMethods: []string{"FULL_RISK", "HALF_RISK"},
		Performance:       models.PerformanceMetrics{RecoveryRate: 72, AvgProcessingDays: 45, Rating: 4.5},
		Status:            models.OperatingStatusActive,
		MembershipStatus:  models.MembershipStatusActive,
	},
	{
		ID:                "org-south-mediation",
		Name:              "Southern Mediation Center",
		Type:              models.OrganizationTypeMediation,
		ServiceRegions:    []string{"south"},
		TeamSize:          6,
		MonthlyCapacity:   150,
		CurrentLoad:       60,
		BusinessScope:     []string{"consumer_loan", "car_loan"},
		SettlementMethods: []string{"FIXED_FEE"},
		Performance:       models.PerformanceMetrics{RecoveryRate: 58, AvgProcessingDays: 30, Rating: 3.8},
		Status:            models.OperatingStatusActive,
		MembershipStatus:  models.MembershipStatusActive,
	},
	{
		ID:                "org-national-collect",
		Name:              "National Collections",
		Type:              models.OrganizationTypeCollection,
		ServiceRegions:    []string{"north", "south", "east", "west"},
		TeamSize:          40,
		MonthlyCapacity:   1200,
		CurrentLoad:       80,
		BusinessScope:     []string{"credit_card", "small_business"},
		SettlementMethods: []string{"FULL_RISK"},
		Performance:       models.PerformanceMetrics{RecoveryRate: 64, AvgProcessingDays: 60, Rating: 4.0},
		Status:            models.OperatingStatusBusy,
		MembershipStatus:  models.MembershipStatusActive,
	},
}

func main() {
	fmt.Println("=== Database Initialization Script ===")
	fmt.Println()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("❌ Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		databaseURL = cfg.DatabaseURL()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	if err := ensureDatabase(ctx, databaseURL, cfg.DBName); err != nil {
		fmt.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("📡 Connecting to %s database...\n", cfg.DBName)
	db, err := database.NewFromURL(databaseURL)
	if err != nil {
		fmt.Printf("❌ Failed to connect to database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	fmt.Println("🚀 Applying schema...")
	if err := db.Migrate(ctx); err != nil {
		fmt.Printf("❌ Failed to apply schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("✅ Schema applied")
	fmt.Println()

	fmt.Println("🌱 Seeding sample organizations...")
	for _, org := range sampleOrganizations {
		if err := db.Organizations().Upsert(ctx, org); err != nil {
			fmt.Printf("⚠️  Warning: could not seed %s: %v\n", org.ID, err)
		}
	}

	orgs, err := db.Organizations().ListAll(ctx)
	if err != nil {
		fmt.Printf("⚠️  Warning: Could not list organizations: %v\n", err)
	} else {
		fmt.Println()
		fmt.Println("   📋 Organizations:")
		fmt.Println("   ─────────────────────────────────────────────────────────")
		for _, org := range orgs {
			fmt.Printf("   %s. %s (%s, %s)\n", org.ID, org.Name, org.Type, org.Status)
			fmt.Printf("      Capacity: %.0f/month | Load: %.0f%% | Recovery: %.0f%%\n",
				org.MonthlyCapacity, org.CurrentLoad, org.Performance.RecoveryRate)
		}
		fmt.Println("   ─────────────────────────────────────────────────────────")
	}

	fmt.Println()
	fmt.Println("🎉 Database initialization completed successfully!")
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Test the connection: go run scripts/test_connection.go")
	fmt.Println("  2. Start the local server: go run ./cmd/server")
}

// ensureDatabase creates dbName through the postgres maintenance database when it is missing.
func ensureDatabase(ctx context.Context, databaseURL, dbName string) error {
	adminURL := strings.Replace(databaseURL, "/"+dbName, "/postgres", 1)
	fmt.Println("📡 Connecting to PostgreSQL server...")

	conn, err := pgx.Connect(ctx, adminURL)
	if err != nil {
		return fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	defer conn.Close(ctx)

	var exists bool
	if err := conn.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", dbName).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check database existence: %w", err)
	}
	if exists {
		fmt.Printf("✅ Database '%s' already exists\n", dbName)
		return nil
	}

	fmt.Printf("📦 Creating '%s' database...\n", dbName)
	if _, err := conn.Exec(ctx, "CREATE DATABASE "+pgx.Identifier{dbName}.Sanitize()); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}
	fmt.Printf("✅ Database '%s' created!\n", dbName)
	return nil
}
