package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/callmap/testhelpers"
)

// runApp executes the CLI against root and returns stdout, stderr and the error
func runApp(t *testing.T, root string, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	app.ExitErrHandler = func(*cli.Context, error) {}

	argv := append([]string{"callmap", "--root", root}, args...)
	err := app.Run(argv)
	return out.String(), errOut.String(), err
}

func exitCode(t *testing.T, err error) int {
	t.Helper()
	var coder cli.ExitCoder
	require.ErrorAs(t, err, &coder)
	return coder.ExitCode()
}

func TestCallers_Text(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "callers", "Order::save")
	require.NoError(t, err)

	assert.Contains(t, out, "Callers of 'Order::save()'")
	assert.Contains(t, out, "OrderService::place() [src/OrderService.php:6]")
	assert.Contains(t, out, "OrderController::store() [src/Http/OrderController.php:8]")
	assert.Contains(t, out, "CheckoutJob::handle() [src/Jobs/CheckoutJob.php:6]")
	assert.Contains(t, out, "Discovered nodes: 4")
}

func TestCallers_Compact(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "callers", "--format", "compact", "Order::save")
	require.NoError(t, err)
	assert.Equal(t, "Order::save() ← OrderService::place() (+1 more) ← OrderController::store()", strings.TrimSpace(out))
}

func TestCallers_JSON(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "callers", "-f", "json", "src/helpers.php:3")
	require.NoError(t, err)

	var doc struct {
		Root  string `json:"root"`
		Nodes int    `json:"total_nodes"`
		Tree  struct {
			State   string `json:"state"`
			Callers []struct {
				Signature string `json:"signature"`
			} `json:"callers"`
		} `json:"tree"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc), out)
	assert.Equal(t, "audit()", doc.Root)
	assert.Equal(t, "LOADED", doc.Tree.State)
	require.Len(t, doc.Tree.Callers, 1)
	assert.Equal(t, "Order::save()", doc.Tree.Callers[0].Signature)
}

func TestCallers_NoCacheWarm(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "callers", "--no-cache-warm", "Order::save")
	require.NoError(t, err)
	assert.Contains(t, out, "OrderService::place()")
	assert.Contains(t, out, "(+ expandable)")
	assert.NotContains(t, out, "OrderController::store()")
}

func TestCallers_Errors(t *testing.T) {
	project := testhelpers.ShopProject(t)

	_, _, err := runApp(t, project.Root, "callers")
	assert.Equal(t, 2, exitCode(t, err))

	_, _, err = runApp(t, project.Root, "callers", "--format", "yaml", "save")
	assert.Equal(t, 2, exitCode(t, err))

	_, _, err = runApp(t, project.Root, "callers", "plce")
	assert.Equal(t, 1, exitCode(t, err))
	assert.Contains(t, err.Error(), "did you mean")
	assert.Contains(t, err.Error(), "OrderService::place()")
}

func TestCallers_Trace(t *testing.T) {
	project := testhelpers.ShopProject(t)

	_, errOut, err := runApp(t, project.Root, "callers", "--trace", "OrderService::place")
	require.NoError(t, err)
	assert.Contains(t, errOut, "OrderService::place()")
	assert.Contains(t, errOut, "LOADED")
}

func TestSymbols(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "symbols")
	require.NoError(t, err)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 6)

	out, _, err = runApp(t, project.Root, "symbols", "order::")
	require.NoError(t, err)
	assert.Contains(t, out, "Order::__construct()\tsrc/Order.php:6")
	assert.Contains(t, out, "Order::save()\tsrc/Order.php:11")

	out, _, err = runApp(t, project.Root, "symbols", "plce")
	require.NoError(t, err)
	assert.Contains(t, out, "No exact match")
	assert.Contains(t, out, "OrderService::place()")
}

func TestGlobalIncludeOverride(t *testing.T) {
	project := testhelpers.ShopProject(t)

	out, _, err := runApp(t, project.Root, "--include", "src/helpers.php", "symbols")
	require.NoError(t, err)
	assert.Equal(t, "audit()\tsrc/helpers.php:3", strings.TrimSpace(out))
}

func TestInvalidConfig(t *testing.T) {
	project := testhelpers.ShopProject(t)
	project.Write(".callmap.kdl", "discovery {\n  max_concurrent_tasks -1\n}\n")

	_, _, err := runApp(t, project.Root, "symbols")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_concurrent_tasks")
}
