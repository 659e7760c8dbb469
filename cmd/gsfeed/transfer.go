// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/peterbourgon/ff/v3/ffcli"
	"github.com/xuri/excelize/v2"

	"github.com/UNO-SOFT/gsfeed"
	"github.com/UNO-SOFT/gsfeed/spreadsheet"
	"github.com/UNO-SOFT/gsfeed/spreadsheet/pdf"
	"github.com/UNO-SOFT/gsfeed/spreadsheet/xlsx"
)

func (a *app) importCmd() *ffcli.Command {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	flagEnc := fs.String("charset", spreadsheet.EncName, "csv charset name")
	flagSheet := fs.String("sheet", "", "sheet of the xlsx file (default: the first)")
	flagTitle := fs.String("title", "", "title of the new worksheet (default: the file name)")
	return &ffcli.Command{Name: "import", FlagSet: fs,
		ShortUsage: "import [flags] <file.csv|file.csv.gz|file.xlsx>",
		ShortHelp:  "import a table as a new worksheet, the first line being the header",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			fn := args[0]
			var records [][]string
			var err error
			if strings.HasSuffix(fn, ".xlsx") {
				records, err = readXLSX(fn, *flagSheet)
			} else {
				records, err = readCSV(fn, *flagEnc)
			}
			if err != nil {
				return fmt.Errorf("%q: %w", fn, err)
			}
			if len(records) == 0 {
				return fmt.Errorf("%q: empty", fn)
			}
			title := *flagTitle
			if title == "" && fn != "" && fn != "-" {
				title = strings.TrimSuffix(filepath.Base(fn), ".gz")
				title = strings.TrimSuffix(title, filepath.Ext(title))
			}
			doc, err := a.connect(ctx)
			if err != nil {
				return err
			}
			return importRecords(ctx, doc, title, records)
		},
	}
}

func readCSV(fn, encName string) ([][]string, error) {
	cr, err := spreadsheet.OpenCsv(fn, encName)
	if err != nil {
		return nil, err
	}
	defer cr.Close()
	cr.ReuseRecord = false
	return cr.ReadAll()
}

func readXLSX(fn, sheet string) ([][]string, error) {
	f, err := excelize.OpenFile(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	return f.GetRows(sheet)
}

// importRecords adds a worksheet with records[0] as its header row, and
// appends the rest as rows.
func importRecords(ctx context.Context, doc *gsfeed.Spreadsheet, title string, records [][]string) error {
	header := records[0]
	ws, err := doc.AddWorksheet(ctx, gsfeed.WorksheetOptions{
		Title:    title,
		RowCount: max(len(records), 2), ColCount: len(header),
		Headers: header,
	})
	if err != nil {
		return err
	}
	logger.Info("import", "worksheet", ws.Title, "id", ws.ID, "rows", len(records)-1)
	for i, rec := range records[1:] {
		values := make(map[string]string, len(header))
		for j, v := range rec {
			if j < len(header) && v != "" {
				values[header[j]] = v
			}
		}
		if len(values) == 0 {
			// the list feed stops at the first empty row
			logger.Warn("skip empty row", "line", i+2)
			continue
		}
		if _, err := ws.AddRow(ctx, values); err != nil {
			return fmt.Errorf("line %d: %w", i+2, err)
		}
	}
	return nil
}

func (a *app) exportCmd() *ffcli.Command {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	flagOut := fs.String("o", "-", "output file: .xlsx, .pdf, .csv or .csv.gz (default CSV to stdout)")
	flagEnc := fs.String("charset", spreadsheet.EncName, "csv charset name")
	flagColor := fs.String("alternate-color", "e6e6e6", "pdf: alternate row background (empty for none)")
	flagLandscape := fs.Bool("L", false, "pdf: landscape orientation (default: portrait)")
	flagFontSize := fs.Float64("f", 8, "pdf: font size")
	return &ffcli.Command{Name: "export", FlagSet: fs,
		ShortUsage: "export [flags] [worksheet...]",
		ShortHelp:  "export worksheets (default: all of them) as xlsx, pdf or csv",
		Exec: func(ctx context.Context, args []string) error {
			doc, err := a.connect(ctx)
			if err != nil {
				return err
			}
			info, err := doc.GetInfo(ctx)
			if err != nil {
				return err
			}
			wss := info.Worksheets
			if len(args) != 0 {
				wss = nil
				for _, nm := range args {
					ws, err := a.worksheet(ctx, nm)
					if err != nil {
						return err
					}
					wss = append(wss, ws)
				}
			}

			out := *flagOut
			fh, err := spreadsheet.Create(out)
			if err != nil {
				return err
			}
			defer fh.Close()
			var w spreadsheet.Writer
			switch ext := strings.ToLower(filepath.Ext(out)); ext {
			case ".xlsx":
				w = xlsx.NewWriter(fh)
			case ".pdf":
				opts := pdf.Options{Landscape: *flagLandscape, FontSize: *flagFontSize}
				if *flagColor != "" {
					c, err := pdf.ParseColor(*flagColor)
					if err != nil {
						return fmt.Errorf("-alternate-color=%q: %w", *flagColor, err)
					}
					opts.AlternateColor = &c
				}
				w = pdf.NewWriter(fh, opts)
			default:
				if w, err = spreadsheet.NewCSVWriter(fh, *flagEnc); err != nil {
					return err
				}
			}
			if err = exportAll(ctx, w, wss); err != nil {
				return err
			}
			return fh.Close()
		},
	}
}

func exportAll(ctx context.Context, w spreadsheet.Writer, wss []*gsfeed.Worksheet) error {
	for _, ws := range wss {
		logger.Debug("export", "worksheet", ws.Title)
		if err := ws.Export(ctx, w); err != nil {
			return errors.Join(err, w.Close())
		}
	}
	return w.Close()
}
