package errors

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTaskError(t *testing.T) {
	underlying := errors.New("resolver exploded")
	err := NewTaskError("src/A.php:m:3", underlying)

	assert.Equal(t, ErrorTypeTask, err.Type)
	assert.True(t, errors.Is(err, underlying))
	assert.Equal(t, "task discover callers failed for src/A.php:m:3: resolver exploded", err.Error())
	assert.False(t, err.Timestamp.IsZero())
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := NewTimeoutError("src/A.php:m:3", 30*time.Second)

	assert.Equal(t, ErrorTypeTimeout, err.Type)
	assert.Equal(t, "task timed out after 30s", err.Error())
	assert.True(t, IsType(err, ErrorTypeTimeout))
	assert.False(t, IsType(err, ErrorTypeTask))
}

func TestIsTypeThroughWrapping(t *testing.T) {
	base := NewConstructionError("A::m", errors.New("symbol has no containing file"))
	wrapped := fmt.Errorf("build tree: %w", base)

	assert.True(t, IsType(wrapped, ErrorTypeConstruction))
	assert.False(t, IsType(errors.New("plain"), ErrorTypeConstruction))
	assert.False(t, IsType(nil, ErrorTypeConstruction))
}

func TestResolutionErrorWithMethod(t *testing.T) {
	err := NewResolutionError("containing declaration", errors.New("no file")).WithMethod("a.php:f:1")
	assert.Equal(t, "resolution containing declaration failed for a.php:f:1: no file", err.Error())
}

func TestIndexError(t *testing.T) {
	underlying := errors.New("permission denied")
	err := NewIndexError("read", "/p/a.php", underlying)

	assert.Equal(t, ErrorTypeIndex, err.Type)
	assert.Equal(t, "index read failed for /p/a.php: permission denied", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func TestConfigError(t *testing.T) {
	underlying := errors.New("must be positive")
	err := NewConfigError("discovery.max_concurrent_tasks", "0", underlying)

	assert.Equal(t, "config error for field discovery.max_concurrent_tasks (value 0): must be positive", err.Error())
	assert.True(t, errors.Is(err, underlying))
}

func TestMultiError(t *testing.T) {
	t.Run("filters nil", func(t *testing.T) {
		e1 := errors.New("one")
		e2 := errors.New("two")
		m := NewMultiError([]error{e1, nil, e2})
		require.Len(t, m.Errors, 2)
		assert.True(t, errors.Is(m, e2))
		assert.Equal(t, "2 errors: [one two]", m.Error())
	})

	t.Run("empty is nil", func(t *testing.T) {
		m := NewMultiError([]error{nil})
		assert.Equal(t, "no errors", m.Error())
		assert.NoError(t, m.ErrOrNil())
	})

	t.Run("single", func(t *testing.T) {
		m := NewMultiError([]error{errors.New("only")})
		assert.Equal(t, "only", m.Error())
		assert.Error(t, m.ErrOrNil())
	})
}

func TestIsTypeConfigAndIndex(t *testing.T) {
	cfgErr := fmt.Errorf("load: %w", NewConfigError("cache", "", errors.New("capacity must be positive")))
	assert.True(t, IsType(cfgErr, ErrorTypeConfig))
	assert.False(t, IsType(cfgErr, ErrorTypeIndex))

	idxErr := NewIndexError("parse", "src/Order.php", errors.New("bad utf-8"))
	assert.True(t, IsType(idxErr, ErrorTypeIndex))
	assert.False(t, IsType(idxErr, ErrorTypeConfig))
}
