/*
	This file contains functions useful for testing the seisvol server in other
	packages.  Unfortunately, due to the way Go handles compilation of *_test.go
	files, these functions cannot be in server_test.go since they will be
	unavailable to test files in external packages.  So these functions are
	exported and contain the "Test" keyword.
*/

package server

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/openseis/seisvol/seisvol"
	"github.com/openseis/seisvol/storage"
)

// OpenTest sets up a server backed by a throwaway store from the named
// engine, or the default test engine if name is empty.  Any previously
// loaded configuration is cleared.
func OpenTest(t *testing.T, engine string) {
	tc = tomlConfig{}
	tcLocation = ""
	store, err := storage.NewTestStore(engine)
	if err != nil {
		t.Fatalf("can't open test store: %v\n", err)
	}
	if err := openJournal(tc.Mutations); err != nil {
		t.Fatalf("can't reset mutation journal: %v\n", err)
	}
	setService(newService(store))
	resetRoutes()
	seisvol.Debugf("Opened test server with store engine %q\n", engine)
}

// CloseTest closes the test store and mutation journal.
func CloseTest() {
	if s := currentService(); s != nil {
		s.Store().Close()
		setService(nil)
	}
	closeJournal()
	resetRoutes()
}

// TestHTTPResponse returns a response from a test run of the seisvol server.
// Use TestHTTP if you just want the response body bytes.
func TestHTTPResponse(t *testing.T, method, urlStr string, payload io.Reader) *httptest.ResponseRecorder {
	req, err := http.NewRequest(method, urlStr, payload)
	if err != nil {
		t.Fatalf("Unsuccessful %s on %q: %v\n", method, urlStr, err)
	}
	resp := httptest.NewRecorder()
	ServeSingleHTTP(resp, req)
	return resp
}

// TestHTTP returns the response body bytes for a test request, making sure any response has
// status OK.
func TestHTTP(t *testing.T, method, urlStr string, payload io.Reader) []byte {
	resp := TestHTTPResponse(t, method, urlStr, payload)
	if resp.Code != http.StatusOK {
		t.Fatalf("Bad server response (%d) to %s on %q: %s\n", resp.Code, method, urlStr, resp.Body.String())
	}
	return resp.Body.Bytes()
}

// TestBadHTTP expects a HTTP response with the given error status code.
func TestBadHTTP(t *testing.T, method, urlStr string, payload io.Reader, status int) {
	resp := TestHTTPResponse(t, method, urlStr, payload)
	if resp.Code != status {
		t.Fatalf("Expected status %d to %s on %q, got %d instead: %s\n", status, method, urlStr, resp.Code, resp.Body.String())
	}
}
