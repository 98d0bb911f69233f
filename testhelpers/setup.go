package testhelpers

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// PHPProject is a throwaway PHP source tree under t.TempDir()
type PHPProject struct {
	t    testing.TB
	Root string
}

// NewPHPProject creates an empty project and writes files (relative path -> source)
func NewPHPProject(t testing.TB, files map[string]string) *PHPProject {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatalf("failed to resolve temp dir: %v", err)
	}
	p := &PHPProject{t: t, Root: root}
	for rel, content := range files {
		p.Write(rel, content)
	}
	return p
}

// Write creates or replaces a file and returns its absolute path
func (p *PHPProject) Write(rel, content string) string {
	p.t.Helper()
	abs := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		p.t.Fatalf("failed to create directory for %s: %v", rel, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		p.t.Fatalf("failed to write %s: %v", rel, err)
	}
	return abs
}

// Remove deletes a file and returns its absolute path
func (p *PHPProject) Remove(rel string) string {
	p.t.Helper()
	abs := p.Path(rel)
	if err := os.Remove(abs); err != nil {
		p.t.Fatalf("failed to remove %s: %v", rel, err)
	}
	return abs
}

func (p *PHPProject) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Config returns a test config rooted at the project
func (p *PHPProject) Config() *TestConfigBuilder {
	return NewTestConfigBuilder(p.Root)
}

// ShopProject is a small application used across index, display and server tests.
//
//	OrderController::store -> OrderService::place -> Order::save
//	CheckoutJob::handle    -> OrderService::place
//	Order::save            -> audit()
//	bootstrap.php          -> top-level call to audit()
func ShopProject(t testing.TB) *PHPProject {
	return NewPHPProject(t, map[string]string{
		"src/Order.php": `<?php
namespace App;

class Order
{
    public function __construct(array $lines)
    {
        $this->lines = $lines;
    }

    public function save(): void
    {
        audit('order saved');
    }
}
`,
		"src/OrderService.php": `<?php
namespace App;

class OrderService
{
    public function place(array $lines): Order
    {
        $order = new Order($lines);
        $order->save();
        return $order;
    }
}
`,
		"src/Http/OrderController.php": `<?php
namespace App\Http;

use App\OrderService;

class OrderController
{
    public function store(OrderService $service)
    {
        return $service->place([]);
    }
}
`,
		"src/Jobs/CheckoutJob.php": `<?php
namespace App\Jobs;

class CheckoutJob
{
    public function handle($service)
    {
        $service?->place([]);
    }
}
`,
		"src/helpers.php": `<?php

function audit(string $message): void
{
    error_log($message);
}
`,
		"bootstrap.php": `<?php
require 'src/helpers.php';
audit('boot');
`,
	})
}

// WaitFor waits for a condition to become true with timeout
// Usage:
//
//	testhelpers.WaitFor(t, func() bool {
//	    return rec.Len() > 0
//	}, 5*time.Second)
func WaitFor(t testing.TB, condition func() bool, timeout time.Duration) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for range ticker.C {
		if condition() {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("Condition not met within %v", timeout)
			return
		}
	}
}
