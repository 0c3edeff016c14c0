package functional

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeFormula is the subset of the real formula.json schema the fake
// registry needs to drive the orchestrator end to end.
type fakeFormula struct {
	Name         string         `json:"name"`
	Desc         string         `json:"desc,omitempty"`
	Versions     fakeVersions   `json:"versions"`
	Dependencies []string       `json:"dependencies,omitempty"`
	Bottle       fakeBottle     `json:"bottle,omitempty"`
}

type fakeVersions struct {
	Stable string `json:"stable"`
}

type fakeBottle struct {
	Stable fakeBottleStable `json:"stable"`
}

type fakeBottleStable struct {
	Files map[string]fakeBottleFile `json:"files"`
}

type fakeBottleFile struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// fakeRegistry serves a tiny in-memory Homebrew API plus the bottle
// tarballs it advertises, so functional scenarios never touch the
// real network.
type fakeRegistry struct {
	t        *testing.T
	server   *httptest.Server
	formulae map[string]*fakeFormula
	bottles  map[string][]byte // "<name>-<version>" -> tar.gz bytes
}

func newFakeRegistry(t *testing.T) *fakeRegistry {
	t.Helper()

	reg := &fakeRegistry{
		t:        t,
		formulae: map[string]*fakeFormula{},
		bottles:  map[string][]byte{},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/formula.json", func(w http.ResponseWriter, r *http.Request) {
		var all []*fakeFormula
		for _, f := range reg.formulae {
			all = append(all, f)
		}
		_ = json.NewEncoder(w).Encode(all)
	})
	mux.HandleFunc("/api/cask.json", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode([]any{})
	})
	mux.HandleFunc("/api/formula/", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/api/formula/"), ".json")
		f, ok := reg.formulae[name]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_ = json.NewEncoder(w).Encode(f)
	})
	mux.HandleFunc("/api/cask/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})
	mux.HandleFunc("/bottles/", func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/bottles/")
		body, ok := reg.bottles[key]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(body)
	})

	reg.server = httptest.NewServer(mux)
	t.Cleanup(reg.server.Close)
	return reg
}

// addFormula registers a formula with a generated single-file bottle, under
// every platform tag the test run might resolve to (arm64_linux,
// x86_64_linux): platform.SelectBottleTag requires an exact match and the
// fake registry doesn't know which arch is running the suite.
func (reg *fakeRegistry) addFormula(name, version string, deps []string, files map[string]string) {
	reg.t.Helper()

	body := buildBottleTarGz(reg.t, name, version, files)
	key := fmt.Sprintf("%s-%s", name, version)
	reg.bottles[key] = body

	sum := sha256.Sum256(body)
	url := reg.server.URL + "/bottles/" + key
	bottleFile := fakeBottleFile{URL: url, SHA256: hex.EncodeToString(sum[:])}

	reg.formulae[name] = &fakeFormula{
		Name:         name,
		Desc:         name + " test fixture",
		Versions:     fakeVersions{Stable: version},
		Dependencies: deps,
		Bottle: fakeBottle{Stable: fakeBottleStable{Files: map[string]fakeBottleFile{
			"arm64_linux":  bottleFile,
			"x86_64_linux": bottleFile,
		}}},
	}
}

func buildBottleTarGz(t *testing.T, name, version string, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	for rel, contents := range files {
		hdr := &tar.Header{
			Name:     fmt.Sprintf("%s/%s/%s", name, version, rel),
			Typeflag: tar.TypeReg,
			Mode:     0o755,
			Size:     int64(len(contents)),
		}
		require.NoError(t, tw.WriteHeader(hdr))
		_, err := tw.Write([]byte(contents))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, gz.Close())

	return buf.Bytes()
}
