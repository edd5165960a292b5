package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/franz/playlog/internal/report"
	"github.com/franz/playlog/internal/store"
)

const consolidatedHeader = `"artist","first_name","gender","item_in_session","last_name","length","level","location","session_id","song","user_id"`

// writeConsolidated writes a consolidated file with the given data lines
func writeConsolidated(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "event_datafile_new.csv")
	content := consolidatedHeader + "\r\n"
	for _, l := range lines {
		content += l + "\r\n"
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write consolidated file: %v", err)
	}
	return path
}

var sampleLines = []string{
	`"Faithless","Ava","F","4","Robinson","495.3073","free","New Haven-Milford, CT","338","Music Matters (Mark Knight Dub)","50"`,
	`"Down To The Bone","Sylvie","F","0","Cruz","333.7660","free","Washington-Arlington-Alexandria, DC-VA-MD-WV","182","Keep On Keepin' On","10"`,
	`"Three Drives","Sylvie","F","1","Cruz","411.6371","free","Washington-Arlington-Alexandria, DC-VA-MD-WV","182","Greece 2000","10"`,
	`"The Black Keys","Tegan","F","0","Levine","196.91057","paid","Portland-South Portland, ME","611","All Hands Against His Own","80"`,
	`"The Black Keys","Sara","F","0","Johnson","196.91057","paid","Winston-Salem, NC","152","All Hands Against His Own","95"`,
}

func openSQLite(t *testing.T) *store.SQLite {
	t.Helper()
	db, err := store.OpenSQLite(filepath.Join(t.TempDir(), "playlog.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// dump returns every row of a table in key order
func dump(t *testing.T, s store.Session, spec *TableSpec) []store.Record {
	t.Helper()
	keys := append(append([]string{}, spec.PartitionKeys...), spec.ClusteringKeys...)
	records, err := s.Query(context.Background(),
		"SELECT * FROM "+spec.Name+" ORDER BY "+strings.Join(keys, ", "))
	if err != nil {
		t.Fatalf("failed to dump %s: %v", spec.Name, err)
	}
	return records
}

func TestRebuildAll_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines...)

	rep, err := New(&Config{Session: db}).RebuildAll(ctx, csvPath)
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if rep.Failed() {
		t.Fatalf("unexpected failures: %v", rep.Err())
	}
	if len(rep.Tables) != 3 {
		t.Fatalf("expected 3 table results, got %d", len(rep.Tables))
	}
	for _, tr := range rep.Tables {
		if tr.RowsRead != len(sampleLines) || tr.RowsInserted != len(sampleLines) {
			t.Errorf("%s: read %d inserted %d", tr.Table, tr.RowsRead, tr.RowsInserted)
		}
	}

	records, err := db.Query(ctx,
		"SELECT artist, song_title, song_length FROM session_library WHERE session_id = ? AND item_in_session = ?", 338, 4)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 row for (338, 4), got %d", len(records))
	}
	if records[0]["artist"] != "Faithless" || records[0]["song_title"] != "Music Matters (Mark Knight Dub)" {
		t.Errorf("unexpected row: %v", records[0])
	}
	if length, _ := store.AsFloat64(records[0]["song_length"]); length != 495.3073 {
		t.Errorf("song_length = %v, expected 495.3073", records[0]["song_length"])
	}

	records, err = db.Query(ctx,
		"SELECT artist, item_in_session FROM user_library WHERE user_id = ? AND session_id = ? ORDER BY item_in_session", 10, 182)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 2 || records[0]["artist"] != "Down To The Bone" || records[1]["artist"] != "Three Drives" {
		t.Errorf("unexpected user_library rows: %v", records)
	}

	records, err = db.Query(ctx,
		"SELECT first_name, last_name FROM name_library WHERE song_title = ? ORDER BY user_id", "All Hands Against His Own")
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(records) != 2 || records[0]["first_name"] != "Tegan" || records[1]["first_name"] != "Sara" {
		t.Errorf("unexpected name_library rows: %v", records)
	}
}

func TestRebuildAll_Idempotent(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines...)
	l := New(&Config{Session: db})

	if _, err := l.RebuildAll(ctx, csvPath); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	first := map[string][]store.Record{}
	for _, spec := range Tables() {
		first[spec.Name] = dump(t, db, spec)
	}

	if _, err := l.RebuildAll(ctx, csvPath); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	for _, spec := range Tables() {
		if second := dump(t, db, spec); !reflect.DeepEqual(first[spec.Name], second) {
			t.Errorf("%s differs after second run:\n%v\n%v", spec.Name, first[spec.Name], second)
		}
	}
}

func TestRebuildAll_HeaderOnly(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t)

	rep, err := New(&Config{Session: db}).RebuildAll(ctx, csvPath)
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if rep.Err() != nil {
		t.Errorf("expected no failures, got %v", rep.Err())
	}
	for _, spec := range Tables() {
		n, err := store.CountRows(ctx, db, &spec.Table)
		if err != nil {
			t.Fatalf("CountRows(%s) failed: %v", spec.Name, err)
		}
		if n != 0 {
			t.Errorf("%s: expected empty table, got %d rows", spec.Name, n)
		}
	}
}

func TestRebuild_SessionKeyLastWriteWins(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t,
		`"First","A","F","0","X","100.0","free","Here","7","One","1"`,
		`"Second","B","M","0","Y","200.0","paid","There","7","Two","2"`,
	)

	result, err := New(&Config{Session: db}).Rebuild(ctx, &SessionLibrary, csvPath)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if result.RowsInserted != 2 {
		t.Errorf("expected 2 inserts, got %d", result.RowsInserted)
	}

	records := dump(t, db, &SessionLibrary)
	if len(records) != 1 || records[0]["artist"] != "Second" {
		t.Errorf("expected last write to win, got %v", records)
	}
}

func TestRebuild_CoerceFailureContinues(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t,
		sampleLines[0],
		`"Bad Row","A","F","x","X","100.0","free","Here","7","One","1"`,
		sampleLines[1],
	)

	result, err := New(&Config{Session: db}).Rebuild(ctx, &SessionLibrary, csvPath)
	if err != nil {
		t.Fatalf("Rebuild failed: %v", err)
	}
	if result.RowsRead != 3 || result.RowsInserted != 2 {
		t.Errorf("read %d inserted %d, expected 3 and 2", result.RowsRead, result.RowsInserted)
	}
	if result.CountKind(KindCoerce) != 1 {
		t.Fatalf("expected 1 coerce failure, got %v", result.Failures)
	}

	f := result.Failures[0]
	if f.Line != 3 {
		t.Errorf("failure line = %d, expected 3", f.Line)
	}
	if !CoerceError.Has(f.Err) {
		t.Errorf("expected CoerceError, got %v", f.Err)
	}
}

// failingSession wraps a session and fails every statement starting with prefix
type failingSession struct {
	store.Session
	prefix string
}

var errInjected = errors.New("injected failure")

func (s *failingSession) Exec(ctx context.Context, stmt string, args ...any) error {
	if strings.HasPrefix(stmt, s.prefix) {
		return errInjected
	}
	return s.Session.Exec(ctx, stmt, args...)
}

func TestRebuild_CreateFailureCascades(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines...)

	logger, err := report.NewEventLogger(t.TempDir(), report.LevelDebug)
	if err != nil {
		t.Fatalf("NewEventLogger failed: %v", err)
	}
	defer logger.Close()

	l := New(&Config{Session: &failingSession{Session: db, prefix: "CREATE"}, Logger: logger})
	result, err := l.Rebuild(ctx, &UserLibrary, csvPath)
	if err != nil {
		t.Fatalf("statement failures must not abort the rebuild: %v", err)
	}

	if result.CountKind(KindCreate) != 1 {
		t.Errorf("expected 1 create failure, got %d", result.CountKind(KindCreate))
	}
	if result.CountKind(KindInsert) != len(sampleLines) {
		t.Errorf("expected %d insert failures, got %d", len(sampleLines), result.CountKind(KindInsert))
	}
	if result.RowsInserted != 0 {
		t.Errorf("expected no inserts, got %d", result.RowsInserted)
	}

	if !errors.Is(result.Failures[0], errInjected) {
		t.Errorf("create failure does not wrap the store error: %v", result.Failures[0])
	}
	if !CreateError.Has(result.Failures[0].Err) {
		t.Errorf("expected CreateError, got %v", result.Failures[0].Err)
	}
	for _, f := range result.Failures[1:] {
		if f.Kind != KindInsert || !InsertError.Has(f.Err) {
			t.Errorf("expected insert failure, got %v", f)
		}
		if f.Line < 2 {
			t.Errorf("insert failure should carry its line, got %d", f.Line)
		}
	}
}

func TestRebuildAll_ReportErr(t *testing.T) {
	ctx := context.Background()
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines[:2]...)

	rep, err := New(&Config{Session: &failingSession{Session: db, prefix: "DROP"}}).RebuildAll(ctx, csvPath)
	if err != nil {
		t.Fatalf("RebuildAll failed: %v", err)
	}
	if !rep.Failed() {
		t.Fatal("expected failed report")
	}
	for _, tr := range rep.Tables {
		if tr.CountKind(KindDrop) != 1 || tr.RowsInserted != 2 {
			t.Errorf("%s: drop failures %d inserted %d", tr.Table, tr.CountKind(KindDrop), tr.RowsInserted)
		}
	}

	combined := rep.Err()
	if combined == nil {
		t.Fatal("expected combined error")
	}
	if !strings.Contains(combined.Error(), errInjected.Error()) {
		t.Errorf("combined error does not mention the store error: %v", combined)
	}
}

func TestRebuildAll_MissingFile(t *testing.T) {
	db := openSQLite(t)
	_, err := New(&Config{Session: db}).RebuildAll(context.Background(), filepath.Join(t.TempDir(), "missing.csv"))
	if err == nil {
		t.Fatal("expected error for missing consolidated file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected not-exist error, got %v", err)
	}
}

func TestRebuild_Canceled(t *testing.T) {
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	counting := &countingSession{Session: db}
	result, err := New(&Config{Session: counting}).Rebuild(ctx, &NameLibrary, csvPath)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if counting.execs != 0 {
		t.Errorf("expected no statements after cancel, got %d", counting.execs)
	}
	if result == nil || result.Failed() {
		t.Errorf("cancel should not record failures: %+v", result)
	}
}

func TestRebuildAll_CanceledRecordsNothing(t *testing.T) {
	db := openSQLite(t)
	csvPath := writeConsolidated(t, sampleLines...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := New(&Config{Session: db}).RebuildAll(ctx, csvPath)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if rep.Failed() {
		t.Errorf("cancel should not record failures: %v", rep.Err())
	}
}

// countingSession counts the statements passed to Exec
type countingSession struct {
	store.Session
	execs int
}

func (s *countingSession) Exec(ctx context.Context, stmt string, args ...any) error {
	s.execs++
	return s.Session.Exec(ctx, stmt, args...)
}
