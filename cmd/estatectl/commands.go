package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/MaxymChyncha/house-security-system/internal/access"
	"github.com/MaxymChyncha/house-security-system/internal/staff"
	"github.com/MaxymChyncha/house-security-system/pkg/audit"
	"github.com/MaxymChyncha/house-security-system/pkg/config"
	"github.com/MaxymChyncha/house-security-system/pkg/database"
	"github.com/MaxymChyncha/house-security-system/pkg/logger"
	"github.com/MaxymChyncha/house-security-system/pkg/migrations"
)

// adminPasswordEnv keeps the password out of shell history.
const adminPasswordEnv = "ESTATECTL_ADMIN_PASSWORD"

func openDatabase() (*database.DB, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log := logger.New(cfg.App.LogLevel, cfg.App.Environment)

	db, err := database.NewPostgres(database.Config{
		DSN:             cfg.Database.DSN(),
		MaxOpenConns:    2,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Minute,
	})
	if err != nil {
		return nil, nil, err
	}
	return db, log, nil
}

func runMigrate(args []string, stdout io.Writer) error {
	flagSet := pflag.NewFlagSet("migrate", pflag.ContinueOnError)
	if ok, err := parseFlags(flagSet, args, stdout); !ok {
		return err
	}

	db, log, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	applied, err := database.NewMigrationRunner(db.DB, log).RunMigrations(context.Background(), migrations.FS, migrations.Dir)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "applied %d migration(s)\n", applied)
	return nil
}

func runCreateAdmin(args []string, stdout io.Writer) error {
	var req staff.RegisterRequest
	flagSet := pflag.NewFlagSet("create-admin", pflag.ContinueOnError)
	flagSet.StringVar(&req.Username, "username", "", "login name")
	flagSet.StringVar(&req.Email, "email", "", "email address")
	flagSet.StringVar(&req.FirstName, "first-name", "", "first name")
	flagSet.StringVar(&req.LastName, "last-name", "", "last name")
	flagSet.StringVar(&req.Password, "password", "", "password (default $"+adminPasswordEnv+")")
	if ok, err := parseFlags(flagSet, args, stdout); !ok {
		return err
	}
	if req.Password == "" {
		req.Password = os.Getenv(adminPasswordEnv)
	}
	req.Role = access.RoleAdmin.String()

	db, log, err := openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	svc := staff.NewModule(db, staff.ModuleConfig{Recorder: audit.Discard}, log).Service
	return createAdmin(context.Background(), svc, req, stdout)
}

func createAdmin(ctx context.Context, svc staff.Service, req staff.RegisterRequest, stdout io.Writer) error {
	actor := access.Principal{Username: "estatectl", Role: access.RoleAdmin}
	user, err := svc.Register(ctx, actor, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "created admin %q with id %d\n", user.Username, user.ID)
	return nil
}

func runCapabilities(args []string, stdout io.Writer) error {
	var roleName, format string
	flagSet := pflag.NewFlagSet("capabilities", pflag.ContinueOnError)
	flagSet.StringVar(&roleName, "role", "", "only show rows for this role")
	flagSet.StringVar(&format, "format", "table", "output format: table or yaml")
	if ok, err := parseFlags(flagSet, args, stdout); !ok {
		return err
	}

	var role access.Role
	if roleName != "" {
		var err error
		if role, err = access.ParseRole(roleName); err != nil {
			return err
		}
	}

	table, err := access.NewTable(nil)
	if err != nil {
		return err
	}
	return printRules(stdout, table.Rules(role), format)
}

func printRules(w io.Writer, rules []access.Rule, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(rules); err != nil {
			return fmt.Errorf("failed to encode rules: %w", err)
		}
		return enc.Close()
	case "table":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ROLE\tRESOURCE\tACTION\tSCOPE")
		for _, r := range rules {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", r.Role, r.Resource, r.Action, r.Scope)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown format %q", format)
	}
}

func runGenSecret(args []string, stdout io.Writer) error {
	var size int
	flagSet := pflag.NewFlagSet("gen-secret", pflag.ContinueOnError)
	flagSet.IntVar(&size, "bytes", 32, "secret length in bytes before encoding")
	if ok, err := parseFlags(flagSet, args, stdout); !ok {
		return err
	}

	secret, err := generateSecret(size)
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, secret)
	return nil
}

// generateSecret returns size random bytes, base64url encoded.
func generateSecret(size int) (string, error) {
	if size < 32 {
		return "", fmt.Errorf("secret must be at least 32 bytes, got %d", size)
	}
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
