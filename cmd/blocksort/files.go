package main

import (
	"errors"
	"io"
	"os"

	"github.com/klauspost/compress/zstd"
)

// openInput opens path for reading, "-" being stdin.
func openInput(path string, stdin io.Reader, compressed bool) (io.ReadCloser, error) {
	var f io.ReadCloser = io.NopCloser(stdin)
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		f = file
	}
	if !compressed {
		return f, nil
	}
	decoder, err := zstd.NewReader(f)
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return &zstdReader{decoder: decoder, f: f}, nil
}

type zstdReader struct {
	decoder *zstd.Decoder
	f       io.Closer
}

func (r *zstdReader) Read(p []byte) (int, error) {
	return r.decoder.Read(p)
}

func (r *zstdReader) Close() error {
	r.decoder.Close()
	return r.f.Close()
}

// createOutput creates path for writing, "-" being stdout.
func createOutput(path string, stdout io.Writer, compressed bool) (io.WriteCloser, error) {
	var f io.WriteCloser = nopCloser{stdout}
	if path != "-" {
		file, err := os.Create(path)
		if err != nil {
			return nil, err
		}
		f = file
	}
	if !compressed {
		return f, nil
	}
	encoder, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return nil, errors.Join(err, f.Close())
	}
	return &zstdWriter{encoder: encoder, f: f}, nil
}

type zstdWriter struct {
	encoder *zstd.Encoder
	f       io.Closer
}

func (w *zstdWriter) Write(p []byte) (int, error) {
	return w.encoder.Write(p)
}

// Close flushes the last frame before closing the file.
func (w *zstdWriter) Close() error {
	return errors.Join(w.encoder.Close(), w.f.Close())
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
