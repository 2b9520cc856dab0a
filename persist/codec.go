// Copyright (c) 2019, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package persist

import (
	"archive/zip"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/emer/nodenet/nnerr"
)

func indexZip(zr *zip.Reader) map[string]*zip.File {
	m := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		m[f.Name] = f
	}
	return m
}

func openEntry(files map[string]*zip.File, key string) ([]byte, error) {
	f, ok := files[key]
	if !ok {
		return nil, nnerr.New(nnerr.PersistenceMissing, "persist: key %q not present in archive", key)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func writeI32(zw *zip.Writer, key string, v []int32) error {
	w, err := zw.Create(key)
	if err != nil {
		return err
	}
	return binary.Write(w, order, v)
}

func readI32(files map[string]*zip.File, key string) ([]int32, error) {
	b, err := openEntry(files, key)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("persist: key %q has %d bytes, not a multiple of 4", key, len(b))
	}
	out := make([]int32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), order, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeF32(zw *zip.Writer, key string, v []float32) error {
	w, err := zw.Create(key)
	if err != nil {
		return err
	}
	return binary.Write(w, order, v)
}

func readF32(files map[string]*zip.File, key string) ([]float32, error) {
	b, err := openEntry(files, key)
	if err != nil {
		return nil, err
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("persist: key %q has %d bytes, not a multiple of 4", key, len(b))
	}
	out := make([]float32, len(b)/4)
	if err := binary.Read(bytes.NewReader(b), order, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeI16(zw *zip.Writer, key string, v []int16) error {
	w, err := zw.Create(key)
	if err != nil {
		return err
	}
	return binary.Write(w, order, v)
}

func readI16(files map[string]*zip.File, key string) ([]int16, error) {
	b, err := openEntry(files, key)
	if err != nil {
		return nil, err
	}
	if len(b)%2 != 0 {
		return nil, fmt.Errorf("persist: key %q has %d bytes, not a multiple of 2", key, len(b))
	}
	out := make([]int16, len(b)/2)
	if err := binary.Read(bytes.NewReader(b), order, out); err != nil {
		return nil, err
	}
	return out, nil
}

func writeI8(zw *zip.Writer, key string, v []int8) error {
	w, err := zw.Create(key)
	if err != nil {
		return err
	}
	buf := make([]byte, len(v))
	for i, b := range v {
		buf[i] = byte(b)
	}
	_, err = w.Write(buf)
	return err
}

func readI8(files map[string]*zip.File, key string) ([]int8, error) {
	b, err := openEntry(files, key)
	if err != nil {
		return nil, err
	}
	out := make([]int8, len(b))
	for i, c := range b {
		out[i] = int8(c)
	}
	return out, nil
}

// writeStrings encodes a []string as a length-prefixed stream: for each
// entry, a uint32 byte length followed by the UTF-8 bytes.
func writeStrings(zw *zip.Writer, key string, v []string) error {
	w, err := zw.Create(key)
	if err != nil {
		return err
	}
	for _, s := range v {
		if err := binary.Write(w, order, uint32(len(s))); err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return err
		}
	}
	return nil
}

func readStrings(files map[string]*zip.File, key string) ([]string, error) {
	b, err := openEntry(files, key)
	if err != nil {
		return nil, err
	}
	var out []string
	r := bytes.NewReader(b)
	for r.Len() > 0 {
		var n uint32
		if err := binary.Read(r, order, &n); err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		out = append(out, string(buf))
	}
	return out, nil
}
