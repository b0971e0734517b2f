// Command schema-generator writes the tabd.yml JSON schema to schema/tabd.schema.json.
package main

import (
	"os"
	"path/filepath"

	"github.com/grovetools/tabd/config"
	"github.com/grovetools/tabd/logging"
)

func main() {
	logger := logging.NewLogger("schema-generator")

	schemaBytes, err := config.GenerateSchema()
	if err != nil {
		logger.Fatalf("Error generating schema: %v", err)
	}

	outputDir := "schema"
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		logger.Fatalf("Error creating schema directory: %v", err)
	}

	outputPath := filepath.Join(outputDir, "tabd.schema.json")
	if err := os.WriteFile(outputPath, schemaBytes, 0644); err != nil {
		logger.Fatalf("Error writing schema file: %v", err)
	}

	logger.Infof("Generated schema at %s", outputPath)
}
