package testutil

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/Belphemur/opensubtitles-dl/internal/models"
)

// LogInResponse builds a LogIn methodResponse. An empty token omits the member.
func LogInResponse(status, token string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><methodResponse><params><param><value><struct>`)
	writeMember(&b, "status", status)
	if token != "" {
		writeMember(&b, "token", token)
	}
	b.WriteString(`<member><name>seconds</name><value><double>0.004</double></value></member>`)
	b.WriteString(`</struct></value></param></params></methodResponse>`)
	return b.String()
}

// SearchResponse builds a SearchSubtitles methodResponse. A nil hits slice is
// encoded the way the server reports no match: data set to boolean false.
func SearchResponse(status string, hits []models.SearchHit) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><methodResponse><params><param><value><struct>`)
	writeMember(&b, "status", status)
	if hits == nil {
		b.WriteString(`<member><name>data</name><value><boolean>0</boolean></value></member>`)
	} else {
		b.WriteString(`<member><name>data</name><value><array><data>`)
		for _, hit := range hits {
			b.WriteString(`<value><struct>`)
			writeMember(&b, "MovieName", hit.MovieName)
			writeMember(&b, "MovieYear", hit.MovieYear)
			writeMember(&b, "IDSubtitleFile", hit.IDSubtitleFile)
			writeMember(&b, "SubFileName", hit.SubFileName)
			writeMember(&b, "SubDownloadLink", hit.SubDownloadLink)
			writeMember(&b, "SubEncoding", hit.SubEncoding)
			writeMember(&b, "LanguageName", hit.LanguageName)
			writeMember(&b, "SubLanguageID", hit.SubLanguageID)
			writeMember(&b, "SubFormat", hit.SubFormat)
			writeMember(&b, "IDMovieImdb", hit.IDMovieImdb)
			b.WriteString(`</struct></value>`)
		}
		b.WriteString(`</data></array></value></member>`)
	}
	b.WriteString(`<member><name>seconds</name><value><double>0.12</double></value></member>`)
	b.WriteString(`</struct></value></param></params></methodResponse>`)
	return b.String()
}

// FaultResponse builds an XML-RPC fault.
func FaultResponse(code int, message string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0"?><methodResponse><fault><value><struct>`)
	fmt.Fprintf(&b, `<member><name>faultCode</name><value><int>%d</int></value></member>`, code)
	writeMember(&b, "faultString", message)
	b.WriteString(`</struct></value></fault></methodResponse>`)
	return b.String()
}

func writeMember(b *strings.Builder, name, value string) {
	b.WriteString(`<member><name>`)
	b.WriteString(name)
	b.WriteString(`</name><value><string>`)
	_ = xml.EscapeText(b, []byte(value))
	b.WriteString(`</string></value></member>`)
}

// OpenSubtitlesServer is a fake of the OpenSubtitles API: XML-RPC calls are
// answered by method name and GET requests serve registered files.
type OpenSubtitlesServer struct {
	*httptest.Server

	mu        sync.Mutex
	responses map[string]string
	files     map[string][]byte
	calls     []string
	downloads map[string]int
	userAgent string
}

// NewOpenSubtitlesServer starts a fake server closed at the end of the test.
func NewOpenSubtitlesServer(t testing.TB) *OpenSubtitlesServer {
	t.Helper()
	s := &OpenSubtitlesServer{
		responses: make(map[string]string),
		files:     make(map[string][]byte),
		downloads: make(map[string]int),
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

// RPCURL is the XML-RPC endpoint of the fake.
func (s *OpenSubtitlesServer) RPCURL() string {
	return s.URL + "/xml-rpc"
}

// Respond sets the methodResponse returned for method.
func (s *OpenSubtitlesServer) Respond(method, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.responses[method] = body
}

// AddFile serves content at path and returns its absolute URL.
func (s *OpenSubtitlesServer) AddFile(path string, content []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[path] = content
	return s.URL + path
}

// Calls returns the XML-RPC method names received so far, in order.
func (s *OpenSubtitlesServer) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// Downloads returns how many times path was fetched.
func (s *OpenSubtitlesServer) Downloads(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.downloads[path]
}

// UserAgent returns the User-Agent of the last XML-RPC call.
func (s *OpenSubtitlesServer) UserAgent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userAgent
}

func (s *OpenSubtitlesServer) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		s.mu.Lock()
		content, ok := s.files[r.URL.Path]
		if ok {
			s.downloads[r.URL.Path]++
		}
		s.mu.Unlock()

		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/x-gzip")
		_, _ = w.Write(content)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var call struct {
		MethodName string `xml:"methodName"`
	}
	if err := xml.NewDecoder(bytes.NewReader(body)).Decode(&call); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.calls = append(s.calls, call.MethodName)
	s.userAgent = r.Header.Get("User-Agent")
	response, ok := s.responses[call.MethodName]
	s.mu.Unlock()

	if !ok {
		response = FaultResponse(1, "unknown method "+call.MethodName)
	}

	w.Header().Set("Content-Type", "text/xml")
	_, _ = io.WriteString(w, response)
}
