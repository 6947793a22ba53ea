// Package tsv writes confidence estimates to delimited text files
package tsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"

	"github.com/shenwei356/xopen"

	"github.com/ChrisMcGann/crema/pkg/confidence"
	"github.com/ChrisMcGann/crema/pkg/core"
)

var ErrNoConfidence = errors.New("no confidence estimates to write")

// Config holds output configuration
type Config struct {
	OutputDir string // Empty writes to the working directory
	FileRoot  string // Optional prefix: <root>.crema.<level>.txt
	Sep       rune   // Zero means tab
	Decoys    bool   // Also write decoy.<level> files
	Compress  bool   // gzip the files and append .gz
}

// levelData collects the tables written to one file.
type levelData struct {
	name   string
	tables []*core.Table
}

// Write saves the estimates of every level to its own file. Estimates of
// several confidences are combined into one file per level; their columns
// are merged in first-appearance order. It returns the written paths.
func Write(confs []*confidence.Confidence, cfg Config) ([]string, error) {
	if len(confs) == 0 {
		return nil, ErrNoConfidence
	}

	base := "crema"
	if cfg.FileRoot != "" {
		base = cfg.FileRoot + "." + base
	}
	if cfg.OutputDir != "" {
		base = filepath.Join(cfg.OutputDir, base)
	}

	var levels []*levelData
	byName := make(map[string]*levelData)
	add := func(name string, table *core.Table) {
		if table == nil {
			return
		}
		data, ok := byName[name]
		if !ok {
			data = &levelData{name: name}
			byName[name] = data
			levels = append(levels, data)
		}
		data.tables = append(data.tables, table)
	}

	for _, conf := range confs {
		for _, level := range conf.Levels {
			add(string(level), conf.Table(level))
		}
		if cfg.Decoys {
			for _, level := range conf.Levels {
				add("decoy."+string(level), conf.DecoyTable(level))
			}
		}
	}

	var paths []string
	for _, data := range levels {
		path := fmt.Sprintf("%s.%s.txt", base, data.name)
		if cfg.Compress {
			path += ".gz"
		}
		if err := writeFile(path, data.tables, cfg.Sep); err != nil {
			return paths, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, tables []*core.Table, sep rune) error {
	fh, err := xopen.Wopen(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}

	if err := WriteTables(fh, tables, sep); err != nil {
		fh.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	if err := fh.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	return nil
}

// WriteTables writes the rows of several tables under a merged header.
// Columns missing from a table are left empty.
func WriteTables(w io.Writer, tables []*core.Table, sep rune) error {
	if sep == 0 {
		sep = '\t'
	}

	var header []string
	index := make(map[string]int)
	for _, t := range tables {
		for _, col := range t.Layout.Header() {
			if _, ok := index[col]; !ok {
				index[col] = len(header)
				header = append(header, col)
			}
		}
	}

	cw := csv.NewWriter(w)
	cw.Comma = sep
	if err := cw.Write(header); err != nil {
		return err
	}

	out := make([]string, len(header))
	for _, t := range tables {
		cols := t.Layout.Header()
		for _, row := range t.Rows {
			for i := range out {
				out[i] = ""
			}
			for i, v := range t.Layout.Record(row) {
				out[index[cols[i]]] = v
			}
			if err := cw.Write(out); err != nil {
				return err
			}
		}
	}

	cw.Flush()
	return cw.Error()
}
