// Build artifact detection from PHP project files.
// Reads composer.json and framework markers to find generated directories.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
)

// BuildArtifactDetector finds directories a PHP project generates or installs into
type BuildArtifactDetector struct {
	projectRoot string
}

func NewBuildArtifactDetector(projectRoot string) *BuildArtifactDetector {
	return &BuildArtifactDetector{projectRoot: projectRoot}
}

// DetectOutputDirectories returns glob patterns to exclude (e.g. "**/lib/vendor/**")
func (bad *BuildArtifactDetector) DetectOutputDirectories() []string {
	var patterns []string
	patterns = append(patterns, bad.detectComposerOutputs()...)
	patterns = append(patterns, bad.detectFrameworkCaches()...)
	return patterns
}

type composerManifest struct {
	Config struct {
		VendorDir string `json:"vendor-dir"`
		BinDir    string `json:"bin-dir"`
	} `json:"config"`
	Extra map[string]json.RawMessage `json:"extra"`
}

// detectComposerOutputs reads custom vendor-dir and bin-dir locations
func (bad *BuildArtifactDetector) detectComposerOutputs() []string {
	data, err := os.ReadFile(filepath.Join(bad.projectRoot, "composer.json"))
	if err != nil {
		return nil
	}
	var manifest composerManifest
	if json.Unmarshal(data, &manifest) != nil {
		return nil
	}

	var patterns []string
	for _, dir := range []string{manifest.Config.VendorDir, manifest.Config.BinDir} {
		if p := dirPattern(dir); p != "" {
			patterns = append(patterns, p)
		}
	}

	// wordpress installers put plugins next to the project code
	if raw, ok := manifest.Extra["installer-paths"]; ok {
		var paths map[string][]string
		if json.Unmarshal(raw, &paths) == nil {
			for path := range paths {
				if p := dirPattern(strings.SplitN(path, "{", 2)[0]); p != "" {
					patterns = append(patterns, p)
				}
			}
		}
	}
	return patterns
}

// detectFrameworkCaches excludes compiled caches of known frameworks when present
func (bad *BuildArtifactDetector) detectFrameworkCaches() []string {
	markers := []struct {
		marker  string
		pattern string
	}{
		{"artisan", "**/storage/**"},
		{"bin/console", "**/var/**"},
		{"yii", "**/runtime/**"},
		{"spark", "**/writable/**"},
	}

	var patterns []string
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(bad.projectRoot, m.marker)); err == nil {
			patterns = append(patterns, m.pattern)
		}
	}
	return patterns
}

func dirPattern(dir string) string {
	dir = strings.Trim(filepath.ToSlash(strings.TrimSpace(dir)), "/")
	dir = strings.TrimPrefix(dir, "./")
	if dir == "" || dir == "." {
		return ""
	}
	return "**/" + dir + "/**"
}
