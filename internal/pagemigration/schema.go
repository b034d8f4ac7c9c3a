package pagemigration

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/adintel/adintel/internal/settings"
	"github.com/rs/zerolog"
)

//go:embed sql/schema-multi-pages.sql
var embeddedSchema string

// SchemaScriptName is the name of the embedded DDL script.
const SchemaScriptName = "schema-multi-pages.sql"

// EmbeddedSchema returns the built-in DDL script.
func EmbeddedSchema() string {
	return embeddedSchema
}

// SchemaResult summarizes what the SchemaApplier did or would do.
type SchemaResult struct {
	Source       string   `json:"source"`
	Statements   int      `json:"statements"`
	SeededKeys   []string `json:"seeded_keys,omitempty"`
	ExistingKeys []string `json:"existing_keys,omitempty"`
	DryRun       bool     `json:"dry_run,omitempty"`
}

// SchemaApplier runs the versioned DDL script and seeds default settings.
type SchemaApplier struct {
	store    SchemaStore
	script   string
	source   string
	defaults settings.ScraperSettings
	logger   zerolog.Logger
}

// NewSchemaApplier creates an applier for the embedded script.
func NewSchemaApplier(store SchemaStore, logger zerolog.Logger) *SchemaApplier {
	return &SchemaApplier{
		store:    store,
		script:   embeddedSchema,
		source:   "embedded:" + SchemaScriptName,
		defaults: settings.DefaultScraperSettings(),
		logger:   logger.With().Str("component", "schema").Logger(),
	}
}

// LoadSchemaFile replaces the embedded script with the file at path.
func (a *SchemaApplier) LoadSchemaFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read schema file: %w", err)
	}
	if len(SplitStatements(string(data))) == 0 {
		return fmt.Errorf("schema file %s contains no statements", path)
	}
	a.script = string(data)
	a.source = path
	return nil
}

// Statements returns the script split into executable statements.
func (a *SchemaApplier) Statements() []string {
	return SplitStatements(a.script)
}

// Apply executes every statement in one transaction, then seeds the default
// settings without overwriting existing values.
func (a *SchemaApplier) Apply(ctx context.Context, dryRun bool) (SchemaResult, error) {
	statements := a.Statements()
	result := SchemaResult{Source: a.source, Statements: len(statements), DryRun: dryRun}

	if dryRun {
		for i, stmt := range statements {
			a.logger.Info().Int("n", i+1).Msg("[dry-run] would execute: " + summary(stmt))
		}
		for _, row := range a.defaults.Rows() {
			a.logger.Info().Str("key", row.Key).Str("value", row.Value).Msg("[dry-run] would seed setting")
		}
		return result, nil
	}

	a.logger.Info().Str("source", a.source).Int("statements", len(statements)).Msg("applying schema")
	if err := a.store.ExecStatements(ctx, statements); err != nil {
		return result, fmt.Errorf("apply %s: %w", a.source, err)
	}

	for _, row := range a.defaults.Rows() {
		inserted, err := a.store.InsertSettingIfAbsent(ctx, row.Key, row.Value)
		if err != nil {
			return result, fmt.Errorf("seed default settings: %w", err)
		}
		if inserted {
			result.SeededKeys = append(result.SeededKeys, row.Key)
		} else {
			result.ExistingKeys = append(result.ExistingKeys, row.Key)
		}
	}

	a.logger.Info().
		Strs("seeded", result.SeededKeys).
		Strs("kept", result.ExistingKeys).
		Msg("schema applied")
	return result, nil
}

// summary returns the first line of stmt that is not a comment.
func summary(stmt string) string {
	lines := strings.Split(stmt, "\n")
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		if i < len(lines)-1 {
			return line + " ..."
		}
		return line
	}
	return stmt
}
