// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

// Command gsfeed reads and edits a spreadsheet through the spreadsheet feeds.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/UNO-SOFT/zlog/v2"
	"github.com/peterbourgon/ff/v3"
	"github.com/peterbourgon/ff/v3/ffcli"

	"github.com/UNO-SOFT/gsfeed"
	"github.com/UNO-SOFT/gsfeed/auth"
	"github.com/UNO-SOFT/gsfeed/feed"
)

var verbose zlog.VerboseVar
var logger = zlog.NewLogger(zlog.MaybeConsoleHandler(&verbose, os.Stderr)).SLog()

func main() {
	if err := Main(); err != nil {
		logger.Error("MAIN", "error", err)
		os.Exit(1)
	}
}

type app struct {
	key, creds, token      string
	baseURL                string
	visibility, projection string

	doc *gsfeed.Spreadsheet
}

func Main() error {
	var a app
	fs := flag.NewFlagSet("gsfeed", flag.ContinueOnError)
	fs.Var(&verbose, "v", "logging verbosity")
	fs.StringVar(&a.key, "key", "", "spreadsheet key")
	fs.StringVar(&a.creds, "creds", "", "service account JSON key file")
	fs.StringVar(&a.token, "token", "", "OAuth2 bearer token (when no -creds)")
	fs.StringVar(&a.baseURL, "base-url", feed.DefaultBaseURL, "feeds base URL")
	fs.StringVar(&a.visibility, "visibility", "", "public or private (default: private when authenticated)")
	fs.StringVar(&a.projection, "projection", "", "values or full (default: full when authenticated)")

	root := ffcli.Command{Name: "gsfeed", FlagSet: fs,
		ShortUsage: "gsfeed [flags] <subcommand> [args]",
		Options:    []ff.Option{ff.WithEnvVarPrefix("GSFEED")},
		Exec:       func(context.Context, []string) error { return flag.ErrHelp },
		Subcommands: []*ffcli.Command{
			a.infoCmd(), a.rowsCmd(), a.cellsCmd(), a.setCmd(),
			a.importCmd(), a.exportCmd(),
			a.addSheetCmd(), a.rmSheetCmd(), a.clearCmd(),
		},
	}

	if err := root.Parse(fixFontSizeArgs(os.Args[1:])); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return root.Run(ctx)
}

// fixFontSizeArgs splits "-f8" into "-f", "8".
func fixFontSizeArgs(args []string) []string {
	fixed := make([]string, 0, len(args))
	for _, a := range args {
		if strings.HasPrefix(a, "-f") && len(a) > 2 && '0' <= a[2] && a[2] <= '9' {
			fixed = append(fixed, "-f", a[2:])
		} else {
			fixed = append(fixed, a)
		}
	}
	return fixed
}

// connect returns the document, authenticated as the flags say.
func (a *app) connect(ctx context.Context) (*gsfeed.Spreadsheet, error) {
	if a.doc != nil {
		return a.doc, nil
	}
	doc, err := gsfeed.New(a.key, gsfeed.Options{
		BaseURL:    a.baseURL,
		Visibility: a.visibility, Projection: a.projection,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("-key: %w", err)
	}
	switch {
	case a.creds != "":
		if err := doc.UseServiceAccountFile(ctx, a.creds); err != nil {
			return nil, err
		}
	case a.token != "":
		doc.SetAuthToken(auth.Bearer(a.token, time.Time{}))
	}
	logger.Debug("connect", "key", a.key, "authenticated", doc.IsAuthActive())
	a.doc = doc
	return doc, nil
}

// worksheet finds the worksheet by id or title.
func (a *app) worksheet(ctx context.Context, name string) (*gsfeed.Worksheet, error) {
	doc, err := a.connect(ctx)
	if err != nil {
		return nil, err
	}
	info := doc.Info()
	if info == nil {
		if info, err = doc.GetInfo(ctx); err != nil {
			return nil, err
		}
	}
	id, convErr := strconv.Atoi(name)
	for _, ws := range info.Worksheets {
		if convErr == nil && ws.ID == id || ws.Title == name {
			return ws, nil
		}
	}
	return nil, fmt.Errorf("no worksheet %q in %q", name, info.Title)
}

func (a *app) infoCmd() *ffcli.Command {
	return &ffcli.Command{Name: "info",
		ShortHelp: "print the document's metadata and worksheets",
		Exec: func(ctx context.Context, args []string) error {
			doc, err := a.connect(ctx)
			if err != nil {
				return err
			}
			info, err := doc.GetInfo(ctx)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(os.Stdout, 0, 8, 1, ' ', 0)
			fmt.Fprintf(tw, "Title:\t%s\nUpdated:\t%s\nAuthor:\t%s <%s>\n\n",
				info.Title, info.Updated.Format(time.RFC3339), info.Author.Name, info.Author.Email)
			fmt.Fprintln(tw, "ID\tTITLE\tROWS\tCOLS")
			for _, ws := range info.Worksheets {
				fmt.Fprintf(tw, "%d\t%s\t%d\t%d\n", ws.ID, ws.Title, ws.RowCount, ws.ColCount)
			}
			return tw.Flush()
		},
	}
}

func (a *app) addSheetCmd() *ffcli.Command {
	fs := flag.NewFlagSet("add-sheet", flag.ContinueOnError)
	flagRows := fs.Int("rows", 0, "row count (default 50)")
	flagCols := fs.Int("cols", 0, "column count (default 20)")
	return &ffcli.Command{Name: "add-sheet", FlagSet: fs,
		ShortUsage: "add-sheet [-rows N] [-cols N] <title> [header...]",
		ShortHelp:  "add a worksheet, with an optional header row",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return flag.ErrHelp
			}
			doc, err := a.connect(ctx)
			if err != nil {
				return err
			}
			opts := gsfeed.WorksheetOptions{Title: args[0], RowCount: *flagRows, ColCount: *flagCols}
			if len(args) > 1 {
				opts.Headers = args[1:]
			}
			ws, err := doc.AddWorksheet(ctx, opts)
			if err != nil {
				return err
			}
			fmt.Println(ws.ID)
			return nil
		},
	}
}

func (a *app) rmSheetCmd() *ffcli.Command {
	return &ffcli.Command{Name: "rm-sheet",
		ShortUsage: "rm-sheet <worksheet>",
		ShortHelp:  "delete a worksheet",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			ws, err := a.worksheet(ctx, args[0])
			if err != nil {
				return err
			}
			return a.doc.RemoveWorksheet(ctx, ws.ID)
		},
	}
}

func (a *app) clearCmd() *ffcli.Command {
	return &ffcli.Command{Name: "clear",
		ShortUsage: "clear <worksheet>",
		ShortHelp:  "empty a worksheet, keeping its size",
		Exec: func(ctx context.Context, args []string) error {
			if len(args) != 1 {
				return flag.ErrHelp
			}
			ws, err := a.worksheet(ctx, args[0])
			if err != nil {
				return err
			}
			return ws.Clear(ctx)
		},
	}
}
