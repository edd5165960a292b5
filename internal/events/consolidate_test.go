package events

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/franz/playlog/internal/util"
)

const sourceHeader = "artist,auth,firstName,gender,itemInSession,lastName,length,level,location,method,page,registration,sessionId,song,status,ts,userId"

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read %s: %v", path, err)
	}
	return string(data)
}

func TestHeader(t *testing.T) {
	expected := []string{
		"artist", "first_name", "gender", "item_in_session", "last_name",
		"length", "level", "location", "session_id", "song", "user_id",
	}
	if got := Header(); !reflect.DeepEqual(got, expected) {
		t.Errorf("Header() = %v, expected %v", got, expected)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "2018-11-02-events.csv"), sourceHeader+"\n")
	writeFile(t, filepath.Join(dir, "2018-11-01-events.csv"), sourceHeader+"\n")
	writeFile(t, filepath.Join(dir, "nested", "2018-11-03-events.CSV"), sourceHeader+"\n")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignore me")

	paths, err := Discover(dir)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "2018-11-01-events.csv"),
		filepath.Join(dir, "2018-11-02-events.csv"),
		filepath.Join(dir, "nested", "2018-11-03-events.CSV"),
	}
	if !reflect.DeepEqual(paths, expected) {
		t.Errorf("Discover() = %v, expected %v", paths, expected)
	}
}

func TestDiscover_MissingDirectory(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "event_data"))
	if !errors.Is(err, util.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestConsolidate_SkipsEventsWithoutArtist(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.csv")
	b := filepath.Join(dir, "b.csv")
	writeFile(t, a, sourceHeader+"\n"+
		"Harmonia,Logged In,Ryan,M,0,Smith,655.77751,free,\"San Jose-Sunnyvale-Santa Clara, CA\",PUT,NextSong,1.54102E+12,583,Sehr kosmisch,200,1.54224E+12,26\n")
	writeFile(t, b, sourceHeader+"\n"+
		",Logged In,Wyatt,M,0,Scott,,free,\"Eureka-Arcata-Fortuna, CA\",GET,Home,1.54087E+12,563,,200,1.54225E+12,9\n")

	dest := filepath.Join(dir, "event_datafile_new.csv")
	result, err := Consolidate([]string{a, b}, dest)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	if result.Files != 2 || result.RowsRead != 2 || result.RowsSkipped != 1 || result.RowsWritten != 1 {
		t.Errorf("unexpected result: %+v", result)
	}

	expected := `"artist","first_name","gender","item_in_session","last_name","length","level","location","session_id","song","user_id"` + "\r\n" +
		`"Harmonia","Ryan","M","0","Smith","655.77751","free","San Jose-Sunnyvale-Santa Clara, CA","583","Sehr kosmisch","26"` + "\r\n"
	if got := readFile(t, dest); got != expected {
		t.Errorf("consolidated file mismatch:\n got: %q\nwant: %q", got, expected)
	}
	if result.BytesWritten != int64(len(expected)) {
		t.Errorf("BytesWritten = %d, expected %d", result.BytesWritten, len(expected))
	}
}

func TestConsolidate_HeaderOnlyWhenNoValidRows(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "events.csv")
	writeFile(t, src, sourceHeader+"\n"+
		",Logged In,Wyatt,M,0,Scott,,free,Eureka,GET,Home,1.54087E+12,563,,200,1.54225E+12,9\n"+
		",Logged Out,,,1,,,free,,PUT,Login,,563,,307,1.54225E+12,\n")

	dest := filepath.Join(dir, "out.csv")
	result, err := Consolidate([]string{src}, dest)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if result.RowsWritten != 0 || result.RowsSkipped != 2 {
		t.Errorf("unexpected result: %+v", result)
	}

	rows, err := ReadRows(dest)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}

	lines := strings.Split(strings.TrimRight(readFile(t, dest), "\r\n"), "\r\n")
	if len(lines) != 1 {
		t.Errorf("expected only the header line, got %d lines", len(lines))
	}
}

func TestConsolidate_NoInputFiles(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "out.csv")
	if _, err := Consolidate(nil, dest); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	expected := `"artist","first_name","gender","item_in_session","last_name","length","level","location","session_id","song","user_id"` + "\r\n"
	if got := readFile(t, dest); got != expected {
		t.Errorf("got %q, want %q", got, expected)
	}
}

func TestConsolidate_OverwritesDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "events.csv")
	writeFile(t, src, sourceHeader+"\n"+
		"Faithless,Logged In,Ava,F,4,Robinson,495.3073,free,\"New Haven-Milford, CT\",PUT,NextSong,1.54098E+12,338,Music Matters (Mark Knight Dub),200,1.54149E+12,50\n")

	dest := filepath.Join(dir, "out.csv")
	writeFile(t, dest, strings.Repeat("stale line\n", 50))

	if _, err := Consolidate([]string{src}, dest); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	rows, err := ReadRows(dest)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
	want := Row{
		Artist: "Faithless", FirstName: "Ava", Gender: "F", ItemInSession: "4",
		LastName: "Robinson", Length: "495.3073", Level: "free",
		Location: "New Haven-Milford, CT", SessionID: "338",
		Song: "Music Matters (Mark Knight Dub)", UserID: "50",
	}
	if rows[0] != want {
		t.Errorf("row = %+v, expected %+v", rows[0], want)
	}
}

func TestConsolidate_QuotesEmbeddedQuotes(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "events.csv")
	writeFile(t, src, sourceHeader+"\n"+
		"Blue October / Imogen Heap,Logged In,Kaylee,F,1,Summers,241.3971,free,\"Phoenix-Mesa-Scottsdale, AZ\",PUT,NextSong,1.54034E+12,139,\"Say \"\"It\"\"\",200,1.54111E+12,8\n")

	dest := filepath.Join(dir, "out.csv")
	if _, err := Consolidate([]string{src}, dest); err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}

	if got := readFile(t, dest); !strings.Contains(got, `"Say ""It"""`) {
		t.Errorf("embedded quotes not doubled: %q", got)
	}

	rows, err := ReadRows(dest)
	if err != nil {
		t.Fatalf("ReadRows failed: %v", err)
	}
	if rows[0].Song != `Say "It"` {
		t.Errorf("Song = %q after round trip", rows[0].Song)
	}
}

func TestConsolidate_StripsByteOrderMark(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "events.csv")
	writeFile(t, src, "\xEF\xBB\xBF"+sourceHeader+"\n"+
		"Sophie B. Hawkins,Logged In,Ava,F,1,Robinson,305.162,free,\"New Haven-Milford, CT\",PUT,NextSong,1.54098E+12,338,The Ballad Of Sleeping Beauty,200,1.54149E+12,50\n")

	dest := filepath.Join(dir, "out.csv")
	result, err := Consolidate([]string{src}, dest)
	if err != nil {
		t.Fatalf("Consolidate failed: %v", err)
	}
	if result.RowsWritten != 1 {
		t.Errorf("expected 1 row written, got %d", result.RowsWritten)
	}
}

func TestConsolidate_MissingColumns(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "events.csv")
	writeFile(t, src, "artist,firstName\nHarmonia,Ryan\n")

	_, err := Consolidate([]string{src}, filepath.Join(dir, "out.csv"))
	if !errors.Is(err, util.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
	if !strings.Contains(err.Error(), "sessionId") {
		t.Errorf("error should name missing columns: %v", err)
	}
}

func TestConsolidate_EmptyFileAborts(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "empty.csv")
	writeFile(t, src, "")

	_, err := Consolidate([]string{src}, filepath.Join(dir, "out.csv"))
	if !errors.Is(err, util.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema for missing header, got %v", err)
	}
}

func TestConsolidate_UnreadableFileAborts(t *testing.T) {
	dir := t.TempDir()
	_, err := Consolidate([]string{filepath.Join(dir, "missing.csv")}, filepath.Join(dir, "out.csv"))
	if err == nil {
		t.Fatal("expected error for missing source file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected wrapped os.ErrNotExist, got %v", err)
	}
}

func TestOpenRows_RejectsForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	writeFile(t, path, "a,b,c\n1,2,3\n")

	_, err := OpenRows(path)
	if !errors.Is(err, util.ErrInvalidSchema) {
		t.Fatalf("expected ErrInvalidSchema, got %v", err)
	}
}
