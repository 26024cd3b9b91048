package crawl

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"linkprobe/pkg/models"
	"linkprobe/pkg/utils"
)

// OutputWriter materializes a crawl result on disk: one directory per seed
// holding a links.yaml report and the decompressed captured pages. The report
// is sorted so two runs against the same site diff cleanly.
type OutputWriter struct {
	baseDir string
	log     *logrus.Entry
}

// NewOutputWriter creates a writer rooted at baseDir
func NewOutputWriter(baseDir string, logger *logrus.Entry) *OutputWriter {
	return &OutputWriter{baseDir: baseDir, log: logger}
}

// seedReport is the YAML shape of one seed's links.yaml
type seedReport struct {
	Site        string              `yaml:"site"`
	RunID       string              `yaml:"run_id"`
	Seed        string              `yaml:"seed"`
	Path        string              `yaml:"path"`
	State       string              `yaml:"state"`
	PagesParsed int                 `yaml:"pages_parsed"`
	Error       string              `yaml:"error,omitempty"`
	Links       []*models.Reference `yaml:"links"`
}

// Write persists every seed's report and captured files under baseDir
func (w *OutputWriter) Write(result *Result) error {
	for _, seed := range result.Seeds {
		if err := w.writeSeed(result, seed); err != nil {
			return err
		}
	}
	return nil
}

func (w *OutputWriter) writeSeed(result *Result, seed *SeedResult) error {
	seedDir := filepath.Join(w.baseDir, utils.SanitizeFilename(seed.Seed))
	pagesDir := filepath.Join(seedDir, "pages")
	if err := os.MkdirAll(pagesDir, 0755); err != nil {
		return fmt.Errorf("creating output directory '%s': %w", pagesDir, err)
	}

	report := seedReport{
		Site:        result.Site,
		RunID:       result.RunID,
		Seed:        seed.Seed,
		Path:        seed.Path,
		State:       seed.State.String(),
		PagesParsed: seed.PagesParsed,
		Links:       seed.SortedLinks(),
	}
	if seed.Err != nil {
		report.Error = seed.Err.Error()
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return fmt.Errorf("encoding report for seed '%s': %w", seed.Seed, err)
	}
	reportPath := filepath.Join(seedDir, "links.yaml")
	if err := os.WriteFile(reportPath, data, 0644); err != nil {
		return fmt.Errorf("writing report '%s': %w", reportPath, err)
	}

	for _, file := range seed.Files {
		body, err := file.Body()
		if err != nil {
			w.log.Errorf("Skipping corrupt capture '%s': %v", file.Path, err)
			continue
		}
		target := filepath.Join(pagesDir, pageFilename(file.Path))
		if err := os.WriteFile(target, body, 0644); err != nil {
			return fmt.Errorf("writing captured page '%s': %w", target, err)
		}
	}

	w.log.WithFields(logrus.Fields{
		"seed":  seed.Seed,
		"dir":   seedDir,
		"links": len(seed.Links),
		"files": len(seed.Files),
	}).Info("Seed output written")
	return nil
}

// pageFilename maps a site-relative path to a flat filename. The site root
// becomes index.html; everything else is sanitized into one component.
func pageFilename(path string) string {
	if path == "/" || path == "" {
		return "index.html"
	}
	return utils.SanitizeFilename(strings.TrimPrefix(path, "/"))
}
