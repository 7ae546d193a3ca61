package main

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/lanrat/blocksort/ngram"
)

// run executes the command line and returns what it printed.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func encode(vals []uint64) []byte {
	out := make([]byte, 8*len(vals))
	for i, v := range vals {
		binary.LittleEndian.PutUint64(out[8*i:], v)
	}
	return out
}

func isSorted(data []byte, width int) bool {
	for i := width; i < len(data); i += width {
		if bytes.Compare(data[i:i+width], data[i-width:i]) < 0 {
			return false
		}
	}
	return true
}

var smallMemory = []string{"--block-size", "4000", "--buffer-size", "800", "--total-memory", "3200", "--lazy-memory", "1600"}

func TestSortAndVerify(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	vals := make([]uint64, 5000)
	for i := range vals {
		vals[i] = rng.Uint64()
	}
	input := writeFile(t, "input", encode(vals))
	output := filepath.Join(t.TempDir(), "output")

	args := append([]string{"sort", "--entry-size", "8", "--temp-dir", t.TempDir(), "-o", output}, smallMemory...)
	if _, err := run(t, append(args, input)...); err != nil {
		t.Fatal(err)
	}
	sorted, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	if len(sorted) != 8*len(vals) {
		t.Fatalf("output has %d bytes, want %d", len(sorted), 8*len(vals))
	}
	if !isSorted(sorted, 8) {
		t.Fatal("output is not sorted")
	}

	want, err := run(t, "verify", "--entry-size", "8", output)
	if err != nil {
		t.Fatalf("verify sorted output: %v", err)
	}
	got, err := run(t, "verify", "--entry-size", "8", input)
	if err == nil {
		t.Fatal("verify accepted unsorted input")
	}
	if got != want {
		t.Fatalf("fingerprints differ:\ninput:\n%s\noutput:\n%s", got, want)
	}
	if !strings.HasPrefix(want, "records: 5000\n") {
		t.Fatalf("unexpected verify output %q", want)
	}
}

func TestSortZstdUniq(t *testing.T) {
	var compressed bytes.Buffer
	enc, err := zstd.NewWriter(&compressed)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := enc.Write(encode([]uint64{5, 3, 5, 1, 3, 3, 9})); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	input := writeFile(t, "input.zst", compressed.Bytes())
	output := filepath.Join(t.TempDir(), "output.zst")

	args := append([]string{"sort", "--entry-size", "8", "--key-width", "1", "--uniq", "--zstd-in", "--zstd-out", "-o", output}, smallMemory...)
	if _, err := run(t, append(args, input)...); err != nil {
		t.Fatal(err)
	}
	f, err := os.Open(output)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		t.Fatal(err)
	}
	defer dec.Close()
	got, err := io.ReadAll(dec)
	if err != nil {
		t.Fatal(err)
	}
	if want := encode([]uint64{1, 3, 5, 9}); !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestSortNgramCounts(t *testing.T) {
	var input []byte
	for _, g := range [][]ngram.WordIndex{{2, 1}, {1, 2}, {2, 1}, {1, 1}, {2, 1}} {
		input = append(input, ngram.Encode(g, 1)...)
	}
	output := filepath.Join(t.TempDir(), "output")
	args := []string{"sort", "--ngram-order", "2", "--ngram-sort", "prefix", "--sum-count-offset", "8",
		"--block-size", "32", "--buffer-size", "16", "--total-memory", "64", "-o", output, writeFile(t, "input", input)}
	if _, err := run(t, args...); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatal(err)
	}
	want := bytes.Join([][]byte{
		ngram.Encode([]ngram.WordIndex{1, 1}, 1),
		ngram.Encode([]ngram.WordIndex{1, 2}, 1),
		ngram.Encode([]ngram.WordIndex{2, 1}, 3),
	}, nil)
	if !bytes.Equal(got, want) {
		t.Fatalf("got %x, want %x", got, want)
	}
}

func TestDiff(t *testing.T) {
	a := writeFile(t, "a", []byte("aabbddee"))
	b := writeFile(t, "b", []byte("bbccee"))
	out, err := run(t, "diff", "--entry-size", "2", a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := "< 6161\n> 6363\n< 6464\nA: 2/4\tB: 1/3\tC: 2\n"
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestFlagErrors(t *testing.T) {
	input := writeFile(t, "input", encode([]uint64{1, 2}))
	tests := []struct {
		name string
		args []string
	}{
		{"no record size", []string{"sort", input}},
		{"key past record", []string{"sort", "--entry-size", "8", "--key-offset", "4", "--key-width", "8", input}},
		{"uniq and sum", []string{"sort", "--entry-size", "16", "--uniq", "--sum-count-offset", "8", input}},
		{"count past record", []string{"sort", "--entry-size", "8", "--sum-count-offset", "4", input}},
		{"bad ngram sort", []string{"sort", "--ngram-order", "3", "--ngram-sort", "sideways", input}},
		{"ngram size mismatch", []string{"verify", "--ngram-order", "3", "--entry-size", "8", input}},
		{"bad log level", []string{"--log-level", "loud", "verify", "--entry-size", "8", input}},
		{"missing file", []string{"verify", "--entry-size", "8", filepath.Join(t.TempDir(), "missing")}},
		{"diff arity", []string{"diff", "--entry-size", "8", input}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := run(t, tt.args...); err == nil {
				t.Fatalf("%v succeeded", tt.args)
			}
		})
	}
}
