package main

import (
	"bytes"
	"testing"

	"github.com/openmined/storagebrowser/internal/conflict"
	"github.com/openmined/storagebrowser/internal/resource"
	"github.com/stretchr/testify/assert"
)

func TestPrintCheck(t *testing.T) {
	check := conflict.Check(
		[]resource.TransferItem{{Name: "a.txt"}, {Name: "b.txt"}},
		[]resource.Entry{{Name: "a.txt"}},
	)

	t.Run("report", func(t *testing.T) {
		var out bytes.Buffer
		printCheck(&out, "/docs", check, nil)
		text := stripANSI(out.String())
		assert.Contains(t, text, "exists a.txt")
		assert.Contains(t, text, "a (1).txt")
		assert.Contains(t, text, renameHint)
	})

	t.Run("custom name", func(t *testing.T) {
		res := conflict.Resolve(check, conflict.Policy{Rename: true, CustomName: "final.txt"})
		var out bytes.Buffer
		printCheck(&out, "/docs", check, &res)
		assert.Equal(t, "  rename a.txt -> final.txt\n", stripANSI(out.String()))
	})

	t.Run("clean", func(t *testing.T) {
		var out bytes.Buffer
		printCheck(&out, "/docs", conflict.Check(nil, nil), nil)
		assert.Contains(t, stripANSI(out.String()), "no conflicts in /docs")
	})
}
