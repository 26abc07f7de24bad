package test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

// MustBe uses reflect.DeepEqual to assert that thing1 and thing2 are equal, and
// fails otherwise.
func MustBe(t *testing.T, thing1, thing2 interface{}, context ...string) {
	t.Helper()
	var ctx string
	if len(context) == 0 {
		ctx = ""
	} else {
		ctx = context[0] + ": "
	}
	if !reflect.DeepEqual(thing1, thing2) {
		t.Fatalf("%v'%#v' != '%#v'", ctx, thing1, thing2)
	}
}

// ErrNil asserts that the err is nil and fails otherwise.
func ErrNil(t *testing.T, err error, ctx string) {
	t.Helper()
	if err != nil {
		t.Fatalf("%v: %v", ctx, err)
	}
}

// MustTempDir gets a new temporary directory which is removed when the test
// finishes.
func MustTempDir(t *testing.T, prefix string) string {
	t.Helper()
	d, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatalf("getting temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(d) })
	return d
}

// MustWriteFiles writes each file, keyed by its slash separated path
// relative to root, creating directories as needed.
func MustWriteFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, contents := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatalf("making directory for %s: %v", name, err)
		}
		if err := ioutil.WriteFile(p, []byte(contents), 0644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}

// SongData is a small song dataset in the layout of the sparkify bucket. The
// file under song_data/B is outside the default song pattern.
var SongData = map[string]string{
	"song_data/A/A/A/TRAAAAW128F429D538.json": `{"num_songs": 1, "artist_id": "ARD7TVE1187B99BFB1", "artist_latitude": null, "artist_longitude": null, "artist_location": "California - LA", "artist_name": "Casual", "song_id": "SOMZWCG12A8C13C480", "title": "I Didn't Mean To", "duration": 218.93179, "year": 0}`,
	"song_data/A/A/B/TRAAABD128F429CF47.json": `{"num_songs": 1, "artist_id": "ARMJAGH1187FB546F3", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "The Box Tops", "song_id": "SOCIWDW12A8C13D406", "title": "Soul Deep", "duration": 148.03546, "year": 1969}`,
	"song_data/A/B/C/TRABCEF128F4273421.json": `{"num_songs": 1, "artist_id": "ARMJAGH1187FB546F3", "artist_latitude": 35.14968, "artist_longitude": -90.04892, "artist_location": "Memphis, TN", "artist_name": "The Box Tops", "song_id": "SOBLFFE12AF72AA5BA", "title": "Scream", "duration": 213.9424, "year": 1969}`,
	"song_data/B/A/A/TRBAAAA128F4273421.json": `{"num_songs": 1, "artist_id": "ARZZZZZ1187FB546F3", "artist_latitude": null, "artist_longitude": null, "artist_location": "", "artist_name": "Elsewhere", "song_id": "SOZZZZZ12AF72AA5BA", "title": "Outside", "duration": 100.5, "year": 2001}`,
}

// LogData is a small event log dataset matching SongData. It holds four
// NextSong events from two users, one of which matches no song, and one
// event of another page.
var LogData = map[string]string{
	"log_data/2018/11/2018-11-01-events.json": `{"artist":"The Box Tops","auth":"Logged In","firstName":"Walter","gender":"M","itemInSession":0,"lastName":"Frye","length":148.03546,"level":"free","location":"San Francisco-Oakland-Hayward, CA","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":38,"song":"Soul Deep","status":200,"ts":1541105830796,"userAgent":"Mozilla/5.0","userId":"39"}
{"artist":null,"auth":"Logged In","firstName":"Walter","gender":"M","itemInSession":1,"lastName":"Frye","length":null,"level":"free","location":"San Francisco-Oakland-Hayward, CA","method":"GET","page":"Home","registration":1540919166796.0,"sessionId":38,"song":null,"status":200,"ts":1541106106796,"userAgent":"Mozilla/5.0","userId":"39"}
{"artist":"Unknown Band","auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":0,"lastName":"Summers","length":200.0,"level":"free","location":"Phoenix-Mesa-Scottsdale, AZ","method":"PUT","page":"NextSong","registration":1540344794796.0,"sessionId":139,"song":"Nothing","status":200,"ts":1541106352796,"userAgent":"Mozilla/5.0","userId":"8"}
{"artist":"Casual","auth":"Logged In","firstName":"Walter","gender":"M","itemInSession":2,"lastName":"Frye","length":218.93179,"level":"free","location":"San Francisco-Oakland-Hayward, CA","method":"PUT","page":"NextSong","registration":1540919166796.0,"sessionId":38,"song":"I Didn't Mean To","status":200,"ts":1541107053796,"userAgent":"Mozilla/5.0","userId":"39"}
`,
	"log_data/2018/11/2018-11-02-events.json": `{"artist":"The Box Tops","auth":"Logged In","firstName":"Kaylee","gender":"F","itemInSession":1,"lastName":"Summers","length":213.9424,"level":"paid","location":"Phoenix-Mesa-Scottsdale, AZ","method":"PUT","page":"NextSong","registration":1540344794796.0,"sessionId":140,"song":"Scream","status":200,"ts":1541121934796,"userAgent":"Mozilla/5.0","userId":"8"}
`,
}
