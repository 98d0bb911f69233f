package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	kdl "github.com/sblinch/kdl-go"
	"github.com/sblinch/kdl-go/document"
)

// LoadKDL loads .callmap.kdl from dir. A missing file yields (nil, nil).
func LoadKDL(dir string) (*Config, error) {
	kdlPath := filepath.Join(dir, KDLFileName)

	if _, err := os.Stat(kdlPath); os.IsNotExist(err) {
		return nil, nil
	}

	content, err := os.ReadFile(kdlPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", KDLFileName, err)
	}

	cfg, err := parseKDL(string(content), dir)
	if err != nil {
		return nil, err
	}
	resolveRoot(cfg, dir)
	return cfg, nil
}

// parseKDL applies a KDL document on top of the defaults.
//
//	project { root "."; name "shop" }
//	index { include "**/*.php"; exclude "vendor/**"; max_file_size "2MB" }
//	discovery { max_concurrent_tasks 3; task_timeout_ms 30000 }
func parseKDL(content, dir string) (*Config, error) {
	cfg := Default(dir)
	cfg.Project.Root = ""
	cfg.Project.Name = ""

	doc, err := kdl.Parse(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse KDL config: %w", err)
	}

	var include, exclude []string
	for _, n := range doc.Nodes {
		switch nodeName(n) {
		case "project":
			for _, cn := range n.Children {
				assignSimpleString(cn, "root", func(v string) { cfg.Project.Root = v })
				assignSimpleString(cn, "name", func(v string) { cfg.Project.Name = v })
			}
		case "index":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "include":
					include = append(include, collectStringArgs(cn)...)
				case "exclude":
					exclude = append(exclude, collectStringArgs(cn)...)
				case "max_file_size":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.MaxFileSize = int64(v)
					}
					if s, ok := firstStringArg(cn); ok {
						if sz, err := parseSize(s); err == nil {
							cfg.Index.MaxFileSize = sz
						} else {
							log.Printf("WARNING: invalid max_file_size %q in KDL config: %v", s, err)
						}
					}
				case "respect_gitignore":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Index.RespectGitignore = b
					}
				case "workers":
					if v, ok := firstIntArg(cn); ok {
						cfg.Index.Workers = v
					}
				}
			}
		case "discovery":
			for _, cn := range n.Children {
				d := &cfg.Discovery
				switch nodeName(cn) {
				case "max_concurrent_tasks":
					assignInt(cn, &d.MaxConcurrentTasks)
				case "task_timeout_ms":
					assignInt(cn, &d.TaskTimeoutMs)
				case "idle_wait_ms":
					assignInt(cn, &d.IdleWaitMs)
				case "max_depth":
					assignInt(cn, &d.MaxDepth)
				case "auto_expand_depth":
					assignInt(cn, &d.AutoExpandDepth)
				case "auto_expand_fanout":
					assignInt(cn, &d.AutoExpandFanout)
				case "yield_every":
					assignInt(cn, &d.YieldEvery)
				case "yield_pause_ms":
					assignInt(cn, &d.YieldPauseMs)
				case "cycle_guard":
					if b, ok := firstBoolArg(cn); ok {
						d.CycleGuard = b
					}
				}
			}
		case "cache":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "ttl_seconds":
					assignInt(cn, &cfg.Cache.TTLSeconds)
				case "capacity":
					assignInt(cn, &cfg.Cache.Capacity)
				case "cleanup_interval_seconds":
					assignInt(cn, &cfg.Cache.CleanupIntervalSeconds)
				}
			}
		case "watch":
			for _, cn := range n.Children {
				switch nodeName(cn) {
				case "enabled":
					if b, ok := firstBoolArg(cn); ok {
						cfg.Watch.Enabled = b
					}
				case "debounce_ms":
					assignInt(cn, &cfg.Watch.DebounceMs)
				}
			}
		case "metrics":
			for _, cn := range n.Children {
				assignSimpleString(cn, "addr", func(v string) { cfg.Metrics.Addr = v })
			}
		case "include":
			include = append(include, collectStringArgs(n)...)
		case "exclude":
			exclude = append(exclude, collectStringArgs(n)...)
		}
	}

	if len(include) > 0 {
		cfg.Include = include
	}
	cfg.Exclude = DeduplicatePatterns(append(cfg.Exclude, exclude...))
	return cfg, nil
}

func nodeName(n *document.Node) string {
	if n == nil || n.Name == nil {
		return ""
	}
	return n.Name.NodeNameString()
}

func firstIntArg(n *document.Node) (int, bool) {
	if len(n.Arguments) == 0 {
		return 0, false
	}
	switch v := n.Arguments[0].Value.(type) {
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func assignInt(n *document.Node, dst *int) {
	if v, ok := firstIntArg(n); ok {
		*dst = v
		return
	}
	if len(n.Arguments) > 0 {
		log.Printf("WARNING: invalid integer for '%s' in KDL config, got %T", nodeName(n), n.Arguments[0].Value)
	}
}

func firstStringArg(n *document.Node) (string, bool) {
	if len(n.Arguments) == 0 {
		return "", false
	}
	if s, ok := n.Arguments[0].Value.(string); ok {
		return s, true
	}
	return "", false
}

func firstBoolArg(n *document.Node) (bool, bool) {
	if len(n.Arguments) == 0 {
		return false, false
	}
	if b, ok := n.Arguments[0].Value.(bool); ok {
		return b, true
	}
	return false, false
}

// collectStringArgs reads inline arguments (exclude "a" "b"), falling back to
// block children (exclude { "a"; "b" }) where each child name is the value.
func collectStringArgs(n *document.Node) []string {
	if n == nil {
		return nil
	}
	out := make([]string, 0, len(n.Arguments))
	for _, a := range n.Arguments {
		if s, ok := a.Value.(string); ok {
			out = append(out, s)
		}
	}

	if len(out) == 0 && len(n.Children) > 0 {
		for _, child := range n.Children {
			if s, ok := firstStringArg(child); ok {
				out = append(out, s)
			} else if child.Name != nil {
				if s, ok := child.Name.Value.(string); ok {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func assignSimpleString(n *document.Node, target string, set func(string)) {
	if nodeName(n) == target {
		if s, ok := firstStringArg(n); ok {
			set(s)
		}
	}
}

// parseSize handles size strings like "10MB", "500KB", "1GB" or plain bytes
func parseSize(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))

	var multiplier int64 = 1
	numStr := s
	switch {
	case strings.HasSuffix(s, "GB"):
		multiplier = 1024 * 1024 * 1024
		numStr = strings.TrimSuffix(s, "GB")
	case strings.HasSuffix(s, "MB"):
		multiplier = 1024 * 1024
		numStr = strings.TrimSuffix(s, "MB")
	case strings.HasSuffix(s, "KB"):
		multiplier = 1024
		numStr = strings.TrimSuffix(s, "KB")
	case strings.HasSuffix(s, "B"):
		numStr = strings.TrimSuffix(s, "B")
	}

	num, err := strconv.ParseFloat(strings.TrimSpace(numStr), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(num * float64(multiplier)), nil
}
