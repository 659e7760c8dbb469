// Copyright 2026 Tamás Gulácsi.
//
// SPDX-License-Identifier: Apache-2.0

package gsfeed

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/UNO-SOFT/gsfeed/atom"
)

const (
	testKey   = "testkey"
	testToken = "test-token"
	feedNS    = `xmlns="http://www.w3.org/2005/Atom" xmlns:openSearch="http://a9.com/-/spec/opensearchrss/1.0/" xmlns:batch="http://schemas.google.com/gdata/batch" xmlns:gs="http://schemas.google.com/spreadsheets/2006"`
	listNS    = `xmlns='http://www.w3.org/2005/Atom' xmlns:openSearch='http://a9.com/-/spec/opensearchrss/1.0/' xmlns:gsx='http://schemas.google.com/spreadsheets/2006/extended' xmlns:gd='http://schemas.google.com/g/2005' gd:etag='W/"D0cERnk-eip7ImA9WBBXGEg."'`
)

type fakeSheet struct {
	id         int
	title      string
	rows, cols int
	// input values by [row, col]
	cells map[[2]int]string
}

// fakeFeed is an in-memory spreadsheet feed server.
type fakeFeed struct {
	srv *httptest.Server
	url string

	mu          sync.Mutex
	sheets      map[int]*fakeSheet
	nextID      int
	public      bool
	lastRowPut  string
	requests    []string
	corruptNext bool
	// dropLast leaves the last entry out of the next batch response.
	dropLast bool
	// rowZero adds a cell at row 0 to the cell listings.
	rowZero bool
}

func newFakeFeed(t *testing.T) *fakeFeed {
	t.Helper()
	ff := &fakeFeed{sheets: make(map[int]*fakeSheet), nextID: 1, public: true}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /worksheets/{key}/{vis}/{proj}", ff.listWorksheets)
	mux.HandleFunc("POST /worksheets/{key}/{vis}/{proj}", ff.writer(ff.addWorksheet))
	mux.HandleFunc("PUT /worksheets/{key}/{vis}/{proj}/{ws}/{version}", ff.writer(ff.updateWorksheet))
	mux.HandleFunc("DELETE /worksheets/{key}/{vis}/{proj}/{ws}", ff.writer(ff.deleteWorksheet))
	mux.HandleFunc("DELETE /worksheets/{key}/{vis}/{proj}/{ws}/{version}", ff.writer(ff.deleteWorksheet))
	mux.HandleFunc("GET /cells/{key}/{ws}/{vis}/{proj}", ff.listCells)
	mux.HandleFunc("PUT /cells/{key}/{ws}/{vis}/{proj}/{cell}/{version}", ff.writer(ff.updateCell))
	mux.HandleFunc("POST /cells/{key}/{ws}/{vis}/{proj}/batch", ff.writer(ff.batchCells))
	mux.HandleFunc("GET /list/{key}/{ws}/{vis}/{proj}", ff.listRows)
	mux.HandleFunc("POST /list/{key}/{ws}/{vis}/{proj}", ff.writer(ff.addRow))
	mux.HandleFunc("PUT /list/{key}/{ws}/{vis}/{proj}/{row}/{version}", ff.writer(ff.updateRow))
	mux.HandleFunc("DELETE /list/{key}/{ws}/{vis}/{proj}/{row}/{version}", ff.writer(ff.deleteRow))
	ff.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ff.mu.Lock()
		ff.requests = append(ff.requests, r.Method+" "+r.URL.Path)
		ff.mu.Unlock()
		if parts := strings.Split(r.URL.Path, "/"); len(parts) < 3 || parts[2] != testKey {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		mux.ServeHTTP(w, r)
	}))
	t.Cleanup(ff.srv.Close)
	ff.url = ff.srv.URL + "/"
	return ff
}

// addSheet adds a sheet directly, without a request.
func (ff *fakeFeed) addSheet(title string, rows, cols int) *fakeSheet {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	sh := &fakeSheet{id: ff.nextID, title: title, rows: rows, cols: cols, cells: make(map[[2]int]string)}
	ff.sheets[sh.id] = sh
	ff.nextID++
	return sh
}

func (ff *fakeFeed) authorized(r *http.Request) bool {
	return r.Header.Get("Authorization") == "Bearer "+testToken
}

// readable answers unauthorized private reads with the login page.
func (ff *fakeFeed) readable(w http.ResponseWriter, r *http.Request) bool {
	if r.PathValue("vis") == "public" && ff.public || ff.authorized(r) {
		return true
	}
	w.Header().Set("Content-Type", "text/html; charset=UTF-8")
	_, _ = io.WriteString(w, "<html><body>Sign in</body></html>")
	return false
}

func (ff *fakeFeed) writer(h func(http.ResponseWriter, *http.Request, *atom.Node)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !ff.authorized(r) {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		if r.Header.Get("GData-Version") != "3.0" {
			http.Error(w, "GData-Version missing", http.StatusBadRequest)
			return
		}
		var root *atom.Node
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			if r.Header.Get("If-Match") != "*" && r.Method == http.MethodPut {
				http.Error(w, "If-Match missing", http.StatusPreconditionFailed)
				return
			}
			b, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if root, err = atom.Parse(b); err != nil {
				http.Error(w, "[Line 1, Column 1] "+err.Error(), http.StatusBadRequest)
				return
			}
			if r.Method == http.MethodPut && strings.HasPrefix(r.URL.Path, "/list/") {
				ff.mu.Lock()
				ff.lastRowPut = string(b)
				ff.mu.Unlock()
			}
		}
		ff.mu.Lock()
		defer ff.mu.Unlock()
		h(w, r, root)
	}
}

func (ff *fakeFeed) sheet(w http.ResponseWriter, r *http.Request) *fakeSheet {
	id, _ := strconv.Atoi(r.PathValue("ws"))
	sh := ff.sheets[id]
	if sh == nil {
		http.Error(w, "worksheet not found", http.StatusNotFound)
	}
	return sh
}

func writeAtom(w http.ResponseWriter, s string) {
	w.Header().Set("Content-Type", "application/atom+xml; charset=UTF-8")
	_, _ = io.WriteString(w, "<?xml version='1.0' encoding='UTF-8'?>"+s)
}

func (ff *fakeFeed) worksheetEntry(sh *fakeSheet, ns string) string {
	self := ff.url + "worksheets/" + testKey + "/private/full/" + strconv.Itoa(sh.id)
	return fmt.Sprintf(`<entry%s><id>%s</id><updated>2026-10-18T12:00:00.000Z</updated>`+
		`<title type="text">%s</title><content type="text">%s</content>`+
		`<link rel="http://schemas.google.com/spreadsheets/2006#listfeed" type="application/atom+xml" href="%slist/%s/%d/private/full"/>`+
		`<link rel="http://schemas.google.com/spreadsheets/2006#cellsfeed" type="application/atom+xml" href="%scells/%s/%d/private/full"/>`+
		`<link rel="self" type="application/atom+xml" href="%s"/>`+
		`<link rel="edit" type="application/atom+xml" href="%s/v%d"/>`+
		`<gs:rowCount>%d</gs:rowCount><gs:colCount>%d</gs:colCount></entry>`,
		ns, self, atom.EscapeValue(sh.title), atom.EscapeValue(sh.title),
		ff.url, testKey, sh.id, ff.url, testKey, sh.id, self, self, sh.rows*100+sh.cols,
		sh.rows, sh.cols)
}

func (ff *fakeFeed) listWorksheets(w http.ResponseWriter, r *http.Request) {
	if !ff.readable(w, r) {
		return
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	ids := make([]int, 0, len(ff.sheets))
	for id := range ff.sheets {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	var buf strings.Builder
	fmt.Fprintf(&buf, `<feed %s><id>%sworksheets/%s/private/full</id><updated>2026-10-18T12:34:56.789Z</updated>`+
		`<title type="text">Test document</title>`+
		`<author><name>tester</name><email>tester@example.com</email></author>`+
		`<openSearch:totalResults>%d</openSearch:totalResults>`, feedNS, ff.url, testKey, len(ids))
	for _, id := range ids {
		buf.WriteString(ff.worksheetEntry(ff.sheets[id], ""))
	}
	buf.WriteString("</feed>")
	writeAtom(w, buf.String())
}

func (ff *fakeFeed) addWorksheet(w http.ResponseWriter, r *http.Request, e *atom.Node) {
	rows, _ := strconv.Atoi(e.ChildText("gs:rowCount"))
	cols, _ := strconv.Atoi(e.ChildText("gs:colCount"))
	sh := &fakeSheet{id: ff.nextID, title: e.ChildText("title"), rows: rows, cols: cols, cells: make(map[[2]int]string)}
	ff.sheets[sh.id] = sh
	ff.nextID++
	w.WriteHeader(http.StatusCreated)
	writeAtom(w, ff.worksheetEntry(sh, " "+feedNS))
}

func (ff *fakeFeed) updateWorksheet(w http.ResponseWriter, r *http.Request, e *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	sh.title = e.ChildText("title")
	sh.rows, _ = strconv.Atoi(e.ChildText("gs:rowCount"))
	sh.cols, _ = strconv.Atoi(e.ChildText("gs:colCount"))
	for k := range sh.cells {
		if k[0] > sh.rows || k[1] > sh.cols {
			delete(sh.cells, k)
		}
	}
	writeAtom(w, ff.worksheetEntry(sh, " "+feedNS))
}

func (ff *fakeFeed) deleteWorksheet(w http.ResponseWriter, r *http.Request, _ *atom.Node) {
	if sh := ff.sheet(w, r); sh != nil {
		delete(ff.sheets, sh.id)
	}
}

var (
	rxRef  = regexp.MustCompile(`^([A-Z])([0-9]+)$`)
	rxIfTr = regexp.MustCompile(`^=IF\(TRUE,\s*"([^"]*)"`)
)

// eval computes the displayed value of the input at (row, col).
func (sh *fakeSheet) eval(input string, row, col int) string {
	switch {
	case !strings.HasPrefix(input, "="):
		return input
	case input == "=ROW()":
		return strconv.Itoa(row)
	case input == "=COLUMN()":
		return strconv.Itoa(col)
	}
	if m := rxIfTr.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	var sum float64
	for _, ref := range strings.Split(input[1:], "+") {
		m := rxRef.FindStringSubmatch(strings.TrimSpace(ref))
		if m == nil {
			return "#ERROR!"
		}
		r, _ := strconv.Atoi(m[2])
		c := int(m[1][0]-'A') + 1
		f, err := strconv.ParseFloat(sh.eval(sh.cells[[2]int{r, c}], r, c), 64)
		if err != nil {
			return "#VALUE!"
		}
		sum += f
	}
	return strconv.FormatFloat(sum, 'f', -1, 64)
}

func (ff *fakeFeed) cellEntry(sh *fakeSheet, row, col int, extra, inner string) string {
	id := fmt.Sprintf("%scells/%s/%d/private/full/R%dC%d", ff.url, testKey, sh.id, row, col)
	input := sh.cells[[2]int{row, col}]
	value := sh.eval(input, row, col)
	var numeric string
	if f, err := strconv.ParseFloat(value, 64); err == nil {
		n := strconv.FormatFloat(f, 'f', -1, 64)
		if !strings.Contains(n, ".") {
			n += ".0"
		}
		numeric = ` numericValue="` + n + `"`
	}
	return fmt.Sprintf(`<entry%s><id>%s</id><updated>2026-10-18T12:00:00.000Z</updated>`+
		`<title type="text">%c%d</title><content type="text">%s</content>`+
		`<link rel="self" type="application/atom+xml" href="%s"/>`+
		`<link rel="edit" type="application/atom+xml" href="%s/1q2w"/>`+
		`<gs:cell row="%d" col="%d" inputValue="%s"%s>%s</gs:cell>%s</entry>`,
		extra, id, 'A'+col-1, row, atom.EscapeValue(value), id, id,
		row, col, atom.EscapeValue(input), numeric, atom.EscapeValue(value), inner)
}

func queryInt(r *http.Request, name string, def int) int {
	if s := r.URL.Query().Get(name); s != "" {
		n, _ := strconv.Atoi(s)
		return n
	}
	return def
}

func (ff *fakeFeed) listCells(w http.ResponseWriter, r *http.Request) {
	if !ff.readable(w, r) {
		return
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	minRow, maxRow := queryInt(r, "min-row", 1), queryInt(r, "max-row", sh.rows)
	minCol, maxCol := queryInt(r, "min-col", 1), queryInt(r, "max-col", sh.cols)
	switch {
	case maxRow > sh.rows:
		http.Error(w, "Invalid query parameter value for max-row.", http.StatusBadRequest)
		return
	case maxCol > sh.cols:
		http.Error(w, "Invalid query parameter value for max-col.", http.StatusBadRequest)
		return
	}
	returnEmpty := r.URL.Query().Get("return-empty") == "true"
	var buf strings.Builder
	fmt.Fprintf(&buf, `<feed %s><id>%scells/%s/%d/private/full</id><title type="text">%s</title>`,
		feedNS, ff.url, testKey, sh.id, atom.EscapeValue(sh.title))
	for row := minRow; row <= maxRow; row++ {
		for col := minCol; col <= maxCol; col++ {
			if !returnEmpty && sh.cells[[2]int{row, col}] == "" {
				continue
			}
			buf.WriteString(ff.cellEntry(sh, row, col, "", ""))
		}
	}
	if ff.rowZero {
		buf.WriteString(ff.cellEntry(sh, 0, 1, "", ""))
	}
	buf.WriteString("</feed>")
	writeAtom(w, buf.String())
}

func (ff *fakeFeed) updateCell(w http.ResponseWriter, r *http.Request, e *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	gc := e.First("gs:cell")
	row, _ := strconv.Atoi(gc.Attrs["row"])
	col, _ := strconv.Atoi(gc.Attrs["col"])
	if r.PathValue("cell") != fmt.Sprintf("R%dC%d", row, col) {
		http.Error(w, "cell mismatch", http.StatusBadRequest)
		return
	}
	sh.cells[[2]int{row, col}] = gc.Attrs["inputValue"]
	writeAtom(w, ff.cellEntry(sh, row, col, " "+feedNS, ""))
}

func (ff *fakeFeed) batchCells(w http.ResponseWriter, r *http.Request, f *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	if r.Header.Get("If-Match") != "*" {
		http.Error(w, "If-Match missing", http.StatusPreconditionFailed)
		return
	}
	type upd struct {
		batchID  string
		row, col int
	}
	var upds []upd
	for _, e := range f.All("entry") {
		gc := e.First("gs:cell")
		row, _ := strconv.Atoi(gc.Attrs["row"])
		col, _ := strconv.Atoi(gc.Attrs["col"])
		sh.cells[[2]int{row, col}] = gc.Attrs["inputValue"]
		upds = append(upds, upd{batchID: e.ChildText("batch:id"), row: row, col: col})
	}
	if ff.dropLast && len(upds) != 0 {
		upds = upds[:len(upds)-1]
	}
	ff.dropLast = false
	var buf strings.Builder
	fmt.Fprintf(&buf, `<feed %s><id>%scells/%s/%d/private/full/batch/1</id>`, feedNS, ff.url, testKey, sh.id)
	for _, u := range upds {
		id := u.batchID
		if ff.corruptNext {
			id = "R99C99"
		}
		buf.WriteString(ff.cellEntry(sh, u.row, u.col, "",
			`<batch:id>`+id+`</batch:id><batch:status code="200" reason="Success"/><batch:operation type="update"/>`))
	}
	ff.corruptNext = false
	buf.WriteString("</feed>")
	writeAtom(w, buf.String())
}

// header returns the sanitized column names of the first row.
func (sh *fakeSheet) header() []string {
	var names []string
	for col := 1; col <= sh.cols; col++ {
		names = append(names, atom.SanitizeColumnName(sh.eval(sh.cells[[2]int{1, col}], 1, col)))
	}
	return names
}

func (sh *fakeSheet) rowEmpty(row int) bool {
	for col := 1; col <= sh.cols; col++ {
		if sh.cells[[2]int{row, col}] != "" {
			return false
		}
	}
	return true
}

// dataRows returns the list rows: from the second row to the first empty one.
func (sh *fakeSheet) dataRows() []int {
	var rows []int
	for row := 2; row <= sh.rows && !sh.rowEmpty(row); row++ {
		rows = append(rows, row)
	}
	return rows
}

func (ff *fakeFeed) rowEntry(sh *fakeSheet, row int, extra string) string {
	id := fmt.Sprintf("%slist/%s/%d/private/full/r%d", ff.url, testKey, sh.id, row)
	var buf strings.Builder
	fmt.Fprintf(&buf, `<entry%s gd:etag='"r%d"'><id>%s</id><updated>2026-10-18T12:00:00.000Z</updated>`+
		`<category scheme='http://schemas.google.com/spreadsheets/2006' term='http://schemas.google.com/spreadsheets/2006#list'/>`+
		`<title type='text'>row %d</title><content type='text'>row %d</content>`+
		`<link rel='self' type='application/atom+xml' href='%s'/>`+
		`<link rel='edit' type='application/atom+xml' href='%s/v1'/>`,
		extra, row, id, row, row, id, id)
	for col, name := range sh.header() {
		if name == "" {
			continue
		}
		v := sh.eval(sh.cells[[2]int{row, col + 1}], row, col+1)
		if v == "" {
			fmt.Fprintf(&buf, "<gsx:%s/>", name)
			continue
		}
		// the server escapes apostrophes, the client never does
		fmt.Fprintf(&buf, "<gsx:%s>%s</gsx:%s>", name, strings.ReplaceAll(atom.EscapeValue(v), "'", "&#39;"), name)
	}
	buf.WriteString("</entry>")
	return buf.String()
}

func (ff *fakeFeed) listRows(w http.ResponseWriter, r *http.Request) {
	if !ff.readable(w, r) {
		return
	}
	ff.mu.Lock()
	defer ff.mu.Unlock()
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	q := r.URL.Query()
	rows := sh.dataRows()
	if sq := q.Get("sq"); sq != "" {
		var ok bool
		if rows, ok = sh.filter(rows, sq); !ok {
			http.Error(w, "Invalid structured query: "+sq, http.StatusBadRequest)
			return
		}
	}
	if start := queryInt(r, "start-index", 1); start > 1 {
		rows = rows[min(start-1, len(rows)):]
	}
	if n := queryInt(r, "max-results", 0); n > 0 && n < len(rows) {
		rows = rows[:n]
	}
	var buf strings.Builder
	fmt.Fprintf(&buf, `<feed %s><id>%slist/%s/%d/private/full</id><title type='text'>%s</title>`,
		listNS, ff.url, testKey, sh.id, atom.EscapeValue(sh.title))
	for _, row := range rows {
		buf.WriteString("\n" + ff.rowEntry(sh, row, ""))
	}
	buf.WriteString("</feed>")
	writeAtom(w, buf.String())
}

var rxCond = regexp.MustCompile(`^(\w+)\s*(>=|<=|=|>|<)\s*(\S+)$`)

// filter supports "col op value [and col op value...]" numeric conditions.
func (sh *fakeSheet) filter(rows []int, sq string) ([]int, bool) {
	header := sh.header()
	var kept []int
	for _, row := range rows {
		ok := true
		for _, cond := range strings.Split(sq, " and ") {
			m := rxCond.FindStringSubmatch(strings.TrimSpace(cond))
			if m == nil {
				return nil, false
			}
			col := -1
			for i, h := range header {
				if h == m[1] {
					col = i + 1
				}
			}
			a, _ := strconv.ParseFloat(sh.eval(sh.cells[[2]int{row, col}], row, col), 64)
			b, _ := strconv.ParseFloat(m[3], 64)
			switch m[2] {
			case ">=":
				ok = ok && a >= b
			case "<=":
				ok = ok && a <= b
			case "=":
				ok = ok && a == b
			case ">":
				ok = ok && a > b
			case "<":
				ok = ok && a < b
			}
		}
		if ok {
			kept = append(kept, row)
		}
	}
	return kept, true
}

func (sh *fakeSheet) setRow(row int, e *atom.Node) {
	for col, name := range sh.header() {
		if n := e.First("gsx:" + name); n != nil && name != "" {
			sh.cells[[2]int{row, col + 1}] = n.Text
		}
	}
}

func (ff *fakeFeed) addRow(w http.ResponseWriter, r *http.Request, e *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	row := len(sh.dataRows()) + 2
	if row > sh.rows {
		sh.rows = row
	}
	sh.setRow(row, e)
	w.WriteHeader(http.StatusCreated)
	writeAtom(w, ff.rowEntry(sh, row, " "+listNS[:strings.Index(listNS, " gd:etag")]))
}

func (ff *fakeFeed) rowNum(w http.ResponseWriter, r *http.Request, sh *fakeSheet) int {
	row, err := strconv.Atoi(strings.TrimPrefix(r.PathValue("row"), "r"))
	if err != nil || row < 2 || row > sh.rows {
		http.Error(w, "row not found", http.StatusNotFound)
		return 0
	}
	return row
}

func (ff *fakeFeed) updateRow(w http.ResponseWriter, r *http.Request, e *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	row := ff.rowNum(w, r, sh)
	if row == 0 {
		return
	}
	if e.Name != "entry" || e.Attrs["xmlns:gsx"] != atom.NSExtended {
		http.Error(w, "entry must declare the gsx namespace", http.StatusBadRequest)
		return
	}
	sh.setRow(row, e)
	writeAtom(w, ff.rowEntry(sh, row, " "+listNS[:strings.Index(listNS, " gd:etag")]))
}

func (ff *fakeFeed) deleteRow(w http.ResponseWriter, r *http.Request, _ *atom.Node) {
	sh := ff.sheet(w, r)
	if sh == nil {
		return
	}
	row := ff.rowNum(w, r, sh)
	if row == 0 {
		return
	}
	shifted := make(map[[2]int]string, len(sh.cells))
	for k, v := range sh.cells {
		switch {
		case k[0] < row:
			shifted[k] = v
		case k[0] > row:
			shifted[[2]int{k[0] - 1, k[1]}] = v
		}
	}
	sh.cells = shifted
}
