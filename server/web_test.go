package server

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/openseis/seisvol/datatype/seismic"
	"github.com/openseis/seisvol/segy"
	"github.com/openseis/seisvol/storage"
)

func serveRequest(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	ServeSingleHTTP(w, req)
	return w
}

func writeTestVolume(t *testing.T, name string) string {
	g := segy.SyntheticGrid{
		Inlines:     segy.Range(100, 4, 1),
		Crosslines:  segy.Range(1000, 6, 2),
		NumSamples:  8,
		Interval:    4000,
		OriginX:     1000,
		OriginY:     2000,
		InlineDY:    25,
		CrosslineDX: 25,
		Scalar:      -100,
	}
	path := filepath.Join(t.TempDir(), name)
	if err := segy.WriteSynthetic(path, g); err != nil {
		t.Fatalf("can't write %s: %v\n", path, err)
	}
	return path
}

func importTestVolume(t *testing.T, path string) *seismic.ImportResult {
	body := fmt.Sprintf(`{"file_path": %q}`, path)
	resp := TestHTTP(t, "POST", WebAPIPath+"seismic/import", strings.NewReader(body))
	var result seismic.ImportResult
	if err := json.Unmarshal(resp, &result); err != nil {
		t.Fatalf("can't decode import response %s: %v\n", string(resp), err)
	}
	if result.Volume == nil || result.Volume.ID == 0 {
		t.Fatalf("bad import response: %s\n", string(resp))
	}
	return &result
}

func TestHelpAndInfo(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	help := string(TestHTTP(t, "GET", WebHelp, nil))
	if !strings.Contains(help, "/api/seismic/segy-headers") || !strings.Contains(help, "/api/server/info") {
		t.Errorf("help message missing endpoints:\n%s\n", help)
	}

	var info map[string]interface{}
	if err := json.Unmarshal(TestHTTP(t, "GET", WebAPIPath+"server/info", nil), &info); err != nil {
		t.Fatalf("can't decode server info: %v\n", err)
	}
	if _, found := info["Version"]; !found {
		t.Errorf("server info has no version: %v\n", info)
	}
	if _, found := info["Geometry Cache"]; !found {
		t.Errorf("server info has no cache stats: %v\n", info)
	}

	TestBadHTTP(t, "GET", WebAPIPath+"nothing/here", nil, http.StatusNotFound)
}

func TestVolumeLifecycle(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	path := writeTestVolume(t, "north_sea.sgy")
	result := importTestVolume(t, path)
	v := result.Volume
	if v.Name != "north_sea" || v.Metadata.NumInlines != 4 || v.Metadata.NumCrosslines != 6 {
		t.Errorf("bad imported volume: %+v\n", v)
	}
	if result.Survey == nil || result.Survey.Name != "north_sea" {
		t.Errorf("expected survey with import, got %+v\n", result.Survey)
	}

	// A second import under the same name conflicts unless replaced.
	body := fmt.Sprintf(`{"file_path": %q}`, path)
	TestBadHTTP(t, "POST", WebAPIPath+"seismic/import", strings.NewReader(body), http.StatusConflict)
	body = fmt.Sprintf(`{"file_path": %q, "replace": true}`, path)
	var replaced seismic.ImportResult
	if err := json.Unmarshal(TestHTTP(t, "POST", WebAPIPath+"seismic/import", strings.NewReader(body)), &replaced); err != nil {
		t.Fatalf("can't decode replace response: %v\n", err)
	}
	if replaced.Volume.ID == v.ID {
		t.Errorf("replaced volume should get a new id, still %d\n", v.ID)
	}
	v = replaced.Volume

	var volumes []*storage.Volume
	if err := json.Unmarshal(TestHTTP(t, "GET", WebAPIPath+"seismic/volumes", nil), &volumes); err != nil {
		t.Fatalf("can't decode volumes: %v\n", err)
	}
	if len(volumes) != 1 || volumes[0].ID != v.ID {
		t.Errorf("expected only volume %d, got %v\n", v.ID, volumes)
	}

	volumeURL := fmt.Sprintf("%sseismic/volumes/%d", WebAPIPath, v.ID)
	var got storage.Volume
	if err := json.Unmarshal(TestHTTP(t, "GET", volumeURL, nil), &got); err != nil {
		t.Fatalf("can't decode volume: %v\n", err)
	}
	if got.FilePath != path {
		t.Errorf("bad volume file path %q\n", got.FilePath)
	}
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/volumes/abc", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/volumes/9999", nil, http.StatusNotFound)

	TestHTTP(t, "DELETE", volumeURL, nil)
	TestBadHTTP(t, "GET", volumeURL, nil, http.StatusNotFound)
	TestBadHTTP(t, "DELETE", volumeURL, nil, http.StatusNotFound)
}

func TestImportRequests(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	url := WebAPIPath + "seismic/import"
	TestBadHTTP(t, "POST", url, strings.NewReader(`{"name": "x"}`), http.StatusBadRequest)
	TestBadHTTP(t, "POST", url, strings.NewReader(`{"file_path": "/a.sgy", "color": "red"}`), http.StatusBadRequest)
	TestBadHTTP(t, "POST", url, strings.NewReader(`{"file_path": `), http.StatusBadRequest)
	TestBadHTTP(t, "POST", url, strings.NewReader(`{"file_path": "/no/such/file.sgy"}`), http.StatusNotFound)
}

func TestSectionHTTP(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	v := importTestVolume(t, writeTestVolume(t, "sec.sgy")).Volume
	base := fmt.Sprintf("%sseismic/section?volume_id=%d", WebAPIPath, v.ID)

	var section seismic.Section
	if err := json.Unmarshal(TestHTTP(t, "GET", base+"&direction=inline&index=101", nil), &section); err != nil {
		t.Fatalf("can't decode section: %v\n", err)
	}
	if len(section.Data) != 6 || len(section.Data[0]) != 8 || len(section.Positions) != 6 || len(section.Times) != 8 {
		t.Errorf("inline section has bad shape: %d rows\n", len(section.Data))
	}
	if section.Direction != seismic.AlongInline || section.Index != 101 {
		t.Errorf("bad section identity: %s %d\n", section.Direction, section.Index)
	}

	if err := json.Unmarshal(TestHTTP(t, "GET", base+"&direction=Crossline&index=1004&downsample=3", nil), &section); err != nil {
		t.Fatalf("can't decode section: %v\n", err)
	}
	if len(section.Data) != 2 || len(section.Data[0]) != 3 || section.Positions[1] != 103 {
		t.Errorf("downsampled crossline section has bad shape: %d rows, positions %v\n", len(section.Data), section.Positions)
	}

	resp := TestHTTPResponse(t, "GET", base+"&direction=inline&index=9999", nil)
	if resp.Code != http.StatusBadRequest || !strings.Contains(resp.Body.String(), "[100, 103]") {
		t.Errorf("expected 400 with valid range, got %d: %s\n", resp.Code, resp.Body.String())
	}
	TestBadHTTP(t, "GET", base+"&direction=diagonal&index=101", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", base+"&direction=inline&index=101&downsample=0", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", base+"&direction=inline", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", base+"&direction=inline&index=x", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/section?volume_id=77&index=101", nil, http.StatusNotFound)
}

func TestOutlineAndHeadersHTTP(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	path := writeTestVolume(t, "outline.sgy")
	v := importTestVolume(t, path).Volume

	var corners []seismic.Corner
	url := fmt.Sprintf("%sseismic/survey-outline?volume_id=%d", WebAPIPath, v.ID)
	if err := json.Unmarshal(TestHTTP(t, "GET", url, nil), &corners); err != nil {
		t.Fatalf("can't decode outline: %v\n", err)
	}
	if len(corners) != 4 {
		t.Fatalf("expected 4 corners, got %v\n", corners)
	}
	if corners[0].Inline != 100 || corners[0].Crossline != 1000 || corners[0].X != 1000 || corners[0].Y != 2000 {
		t.Errorf("bad first corner: %+v\n", corners[0])
	}
	if corners[2].Inline != 103 || corners[2].Crossline != 1010 || corners[2].X != 1125 || corners[2].Y != 2075 {
		t.Errorf("bad third corner: %+v\n", corners[2])
	}
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/survey-outline", nil, http.StatusBadRequest)

	var summary seismic.HeaderSummary
	url = WebAPIPath + "seismic/segy-headers?file_path=" + path
	if err := json.Unmarshal(TestHTTP(t, "GET", url, nil), &summary); err != nil {
		t.Fatalf("can't decode header summary: %v\n", err)
	}
	if summary.TotalTraces != 24 || len(summary.TraceHeaders) != seismic.HeaderPreviewTraces {
		t.Errorf("bad header summary: %d traces, %d previews\n", summary.TotalTraces, len(summary.TraceHeaders))
	}
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/segy-headers", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/segy-headers?file_path=/no/such.sgy", nil, http.StatusNotFound)
}

func TestSurveysHTTP(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	create := `{"name": "grid", "inline_min": 1, "inline_max": 11, "inline_step": 2,
		"crossline_min": 10, "crossline_max": 20, "origin_x": 500, "origin_y": 600,
		"inline_dx": 10, "inline_dy": 0, "crossline_dx": 0, "crossline_dy": 5}`
	var sv storage.Survey
	if err := json.Unmarshal(TestHTTP(t, "POST", WebAPIPath+"seismic/surveys/create", strings.NewReader(create)), &sv); err != nil {
		t.Fatalf("can't decode survey: %v\n", err)
	}
	if sv.Name != "grid" || sv.CrosslineStep != 1 || sv.InlineStep != 2 {
		t.Errorf("bad created survey: %+v\n", sv)
	}
	TestBadHTTP(t, "POST", WebAPIPath+"seismic/surveys/create", strings.NewReader(create), http.StatusConflict)
	TestBadHTTP(t, "POST", WebAPIPath+"seismic/surveys/create", strings.NewReader(`{"name": "x"}`), http.StatusBadRequest)

	var loc seismic.Location
	url := WebAPIPath + "seismic/surveys/grid/locate?inline=5&crossline=12"
	if err := json.Unmarshal(TestHTTP(t, "GET", url, nil), &loc); err != nil {
		t.Fatalf("can't decode location: %v\n", err)
	}
	if math.Abs(loc.X-520) > 1e-9 || math.Abs(loc.Y-610) > 1e-9 || !loc.InSurvey {
		t.Errorf("bad location for inline 5, crossline 12: %+v\n", loc)
	}
	url = WebAPIPath + "seismic/surveys/grid/locate?x=520&y=610"
	if err := json.Unmarshal(TestHTTP(t, "GET", url, nil), &loc); err != nil {
		t.Fatalf("can't decode location: %v\n", err)
	}
	if math.Abs(loc.Inline-5) > 1e-9 || math.Abs(loc.Crossline-12) > 1e-9 || loc.NearestInline != 5 || loc.NearestCrossline != 12 {
		t.Errorf("bad location for (520, 610): %+v\n", loc)
	}
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/surveys/grid/locate?x=520", nil, http.StatusBadRequest)
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/surveys/nope/locate?x=1&y=2", nil, http.StatusNotFound)

	// Derive a second survey from an imported volume.
	v := importTestVolume(t, writeTestVolume(t, "derived.sgy")).Volume
	url = fmt.Sprintf("%sseismic/surveys/from-volume?volume_id=%d&survey_name=copy", WebAPIPath, v.ID)
	if err := json.Unmarshal(TestHTTP(t, "POST", url, nil), &sv); err != nil {
		t.Fatalf("can't decode derived survey: %v\n", err)
	}
	if sv.Name != "copy" || sv.InlineDY != 25 || sv.CrosslineDX != 25 {
		t.Errorf("bad derived survey: %+v\n", sv)
	}

	var surveys []*storage.Survey
	if err := json.Unmarshal(TestHTTP(t, "GET", WebAPIPath+"seismic/surveys", nil), &surveys); err != nil {
		t.Fatalf("can't decode surveys: %v\n", err)
	}
	if len(surveys) != 3 {
		t.Errorf("expected 3 surveys (created, imported, derived), got %d\n", len(surveys))
	}

	TestHTTP(t, "DELETE", WebAPIPath+"seismic/surveys/grid", nil)
	TestBadHTTP(t, "GET", WebAPIPath+"seismic/surveys/grid", nil, http.StatusNotFound)
	TestBadHTTP(t, "DELETE", WebAPIPath+"seismic/surveys/grid", nil, http.StatusNotFound)
}

func TestMutationJournal(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	if got := string(TestHTTP(t, "GET", WebAPIPath+"server/mutations", nil)); got != "[]" {
		t.Errorf("expected empty journal, got %s\n", got)
	}

	journalPath := filepath.Join(t.TempDir(), "journal", "mutations.log")
	if err := openJournal(MutationsConfig{Journal: journalPath}); err != nil {
		t.Fatalf("can't open journal: %v\n", err)
	}
	v := importTestVolume(t, writeTestVolume(t, "journaled.sgy")).Volume
	TestHTTP(t, "DELETE", fmt.Sprintf("%sseismic/volumes/%d", WebAPIPath, v.ID), nil)

	var mutations []map[string]interface{}
	resp := TestHTTP(t, "GET", WebAPIPath+"server/mutations", nil)
	if err := json.Unmarshal(resp, &mutations); err != nil {
		t.Fatalf("can't decode mutations %s: %v\n", string(resp), err)
	}
	if len(mutations) != 2 {
		t.Fatalf("expected import and delete mutations, got %s\n", string(resp))
	}
	if mutations[0]["action"] != "import" || mutations[1]["action"] != "delete-volume" {
		t.Errorf("bad mutation actions: %v, %v\n", mutations[0]["action"], mutations[1]["action"])
	}
	id0, _ := mutations[0]["mutation_id"].(string)
	id1, _ := mutations[1]["mutation_id"].(string)
	if id0 == "" || id0 == id1 {
		t.Errorf("mutation ids should be unique and non-empty: %q, %q\n", id0, id1)
	}
	order0, _ := mutations[0]["order"].(float64)
	order1, _ := mutations[1]["order"].(float64)
	if order1 != order0+1 {
		t.Errorf("mutation order not sequential: %v then %v\n", order0, order1)
	}
}

func TestAuthorization(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()
	tc.Auth.SecretKey = "test-secret"
	defer func() {
		tc.Auth = authConfig{}
		authorizedUsersMu.Lock()
		authorizedUsers = nil
		authorizedUsersMu.Unlock()
	}()

	create := `{"name": "secured", "inline_min": 1, "inline_max": 2, "crossline_min": 1, "crossline_max": 2}`
	url := WebAPIPath + "seismic/surveys/create"
	TestBadHTTP(t, "POST", url, strings.NewReader(create), http.StatusUnauthorized)

	// Reads are not checked.
	TestHTTP(t, "GET", WebAPIPath+"seismic/surveys", nil)

	post := func(user string) int {
		token, err := generateJWT(user)
		if err != nil {
			t.Fatalf("can't generate token: %v\n", err)
		}
		req, err := http.NewRequest("POST", url, strings.NewReader(create))
		if err != nil {
			t.Fatalf("can't make request: %v\n", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		w := serveRequest(req)
		return w.Code
	}
	authorizedUsersMu.Lock()
	authorizedUsers = map[string]string{"alice": "readwrite", "bob": "read"}
	authorizedUsersMu.Unlock()
	if code := post("bob"); code != http.StatusUnauthorized {
		t.Errorf("read-only user should not write, got %d\n", code)
	}
	if code := post("alice"); code != http.StatusOK {
		t.Errorf("readwrite user should write, got %d\n", code)
	}

	req, _ := http.NewRequest("POST", url, strings.NewReader(create))
	req.Header.Set("Authorization", "Bearer not-a-token")
	if w := serveRequest(req); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token should be rejected, got %d\n", w.Code)
	}
}

func TestGlobalIsAuthorized(t *testing.T) {
	authorizedUsersMu.Lock()
	authorizedUsers = map[string]string{"reader": "read", "writer": "write", "*": "read"}
	authorizedUsersMu.Unlock()
	defer func() {
		authorizedUsersMu.Lock()
		authorizedUsers = nil
		authorizedUsersMu.Unlock()
	}()

	tests := []struct {
		user, method string
		expected     bool
	}{
		{"reader", "GET", true},
		{"reader", "POST", false},
		{"writer", "DELETE", true},
		{"writer", "HEAD", false},
		{"anyone", "GET", true},
		{"anyone", "POST", false},
	}
	for _, tt := range tests {
		if got := globalIsAuthorized(tt.user, tt.method); got != tt.expected {
			t.Errorf("user %q %s: expected %t, got %t\n", tt.user, tt.method, tt.expected, got)
		}
	}
}

func TestBlockList(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	blockFile := filepath.Join(t.TempDir(), "blocklist.txt")
	content := "# abusive clients\nu=spammer,too many requests\n\nip=10.1.*.*,scanner\n"
	if err := os.WriteFile(blockFile, []byte(content), 0644); err != nil {
		t.Fatalf("can't write blocklist: %v\n", err)
	}
	tc.Server.BlockListFile = blockFile
	defer func() {
		tc.Server.BlockListFile = ""
		loadBlockListFile()
	}()
	if err := loadBlockListFile(); err != nil {
		t.Fatalf("can't load blocklist: %v\n", err)
	}

	tests := []struct {
		remote, forwarded, user string
		status                  int
	}{
		{"10.1.2.3:4000", "", "", http.StatusTooManyRequests},
		{"10.2.2.3:4000", "", "", http.StatusOK},
		{"10.2.2.3:4000", "10.1.9.9", "", http.StatusTooManyRequests},
		{"10.2.2.3:4000", "", "spammer", http.StatusTooManyRequests},
		{"10.2.2.3:4000", "", "friend", http.StatusOK},
	}
	for _, tt := range tests {
		url := WebAPIPath + "seismic/volumes"
		if tt.user != "" {
			url += "?u=" + tt.user
		}
		req, err := http.NewRequest("GET", url, nil)
		if err != nil {
			t.Fatalf("can't make request: %v\n", err)
		}
		req.RemoteAddr = tt.remote
		if tt.forwarded != "" {
			req.Header.Set("X-Forwarded-For", tt.forwarded)
		}
		if w := serveRequest(req); w.Code != tt.status {
			t.Errorf("request from %s (forwarded %q, user %q): expected %d, got %d\n",
				tt.remote, tt.forwarded, tt.user, tt.status, w.Code)
		}
	}

	if err := os.WriteFile(blockFile, []byte("bogus line\n"), 0644); err != nil {
		t.Fatalf("can't rewrite blocklist: %v\n", err)
	}
	if err := loadBlockListFile(); err == nil {
		t.Errorf("expected error on bad blocklist line\n")
	}
	req, err := http.NewRequest("GET", WebAPIPath+"seismic/volumes?u=spammer", nil)
	if err != nil {
		t.Fatalf("can't make request: %v\n", err)
	}
	req.RemoteAddr = "10.2.2.3:4000"
	if w := serveRequest(req); w.Code != http.StatusTooManyRequests {
		t.Errorf("previous blocklist dropped after bad reload, got %d\n", w.Code)
	}
}

func TestCORS(t *testing.T) {
	OpenTest(t, "")
	defer CloseTest()

	tc.Server.AllowedOrigins = []string{"https://viewer.example.org"}
	resetRoutes()
	defer func() {
		tc.Server.AllowedOrigins = nil
		resetRoutes()
	}()
	req, _ := http.NewRequest("GET", WebAPIPath+"seismic/volumes", nil)
	req.Header.Set("Origin", "https://viewer.example.org")
	w := serveRequest(req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://viewer.example.org" {
		t.Errorf("expected CORS header for allowed origin, got %q\n", got)
	}
}
