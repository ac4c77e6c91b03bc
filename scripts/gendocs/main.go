// Package main generates the markdown reference documentation for leapidl
// from the CLI command tree and the built-in registries.
//
// Usage:
//
//	go run ./scripts/gendocs -gen=cli -outdir=docs/cli
//	go run ./scripts/gendocs -gen=catalog -outdir=docs/reference
//	go run ./scripts/gendocs -gen=all
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"
)

var (
	genFlag    = flag.String("gen", "all", "what to generate: cli, catalog, all")
	outDirFlag = flag.String("outdir", "", "output directory (defaults based on gen type)")
)

func main() {
	flag.Parse()

	validGenFlags := map[string]bool{"cli": true, "catalog": true, "all": true}
	if !validGenFlags[*genFlag] {
		log.Fatalf("unknown -gen value: %s (use: cli, catalog, all)", *genFlag)
	}

	projectRoot, err := findProjectRoot()
	if err != nil {
		log.Fatalf("failed to find project root: %v", err)
	}
	log.Printf("Project root: %s", projectRoot)

	outDir := func(def ...string) string {
		if *outDirFlag != "" && *genFlag != "all" {
			return *outDirFlag
		}
		return filepath.Join(append([]string{projectRoot, "docs"}, def...)...)
	}

	if *genFlag == "cli" || *genFlag == "all" {
		if err := generateCLIDocs(outDir("cli")); err != nil {
			log.Fatalf("failed to generate CLI docs: %v", err)
		}
	}
	if *genFlag == "catalog" || *genFlag == "all" {
		if err := generateCatalogDocs(outDir("reference")); err != nil {
			log.Fatalf("failed to generate catalog docs: %v", err)
		}
	}

	log.Println("Done!")
}

// findProjectRoot walks up from the current directory to find go.mod.
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", os.ErrNotExist
		}
		dir = parent
	}
}
