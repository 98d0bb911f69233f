package symbols

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignature(t *testing.T) {
	tests := []struct {
		name     string
		sym      Symbol
		expected string
	}{
		{"method", Symbol{Name: "save", Class: "Order", Kind: KindMethod}, "Order::save()"},
		{"method without class", Symbol{Name: "save", Kind: KindMethod}, "Unknown::save()"},
		{"function", Symbol{Name: "array_sum_all", Kind: KindFunction}, "array_sum_all()"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.sym.Signature())
		})
	}
}

func TestSame(t *testing.T) {
	a := Symbol{Name: "save", Class: "Order", File: "src/Order.php", Line: 12}

	assert.True(t, a.Same(Symbol{Name: "SAVE", File: "src/Order.php", Line: 12}))
	assert.False(t, a.Same(Symbol{Name: "save", File: "src/Order.php", Line: 13}))
	assert.False(t, a.Same(Symbol{Name: "save", File: "src/Cart.php", Line: 12}))
}

func TestStringers(t *testing.T) {
	sym := Symbol{Name: "m", Class: "A", File: "a.php", Line: 3}
	assert.Equal(t, "A::m() (a.php:3)", sym.String())
	assert.Equal(t, "a.php:10:4", Reference{File: "a.php", Line: 10, Column: 4}.String())
	assert.Equal(t, "function", KindFunction.String())
	assert.True(t, Symbol{}.IsZero())
}
