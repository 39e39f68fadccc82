package router

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"student-records/internal/config"
	"student-records/internal/database"
	"student-records/internal/metrics"
	"student-records/internal/store"
)

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Errors  []struct {
		Field  string `json:"field"`
		Reason string `json:"reason"`
	} `json:"errors"`
}

type testServer struct {
	t       *testing.T
	r       *gin.Engine
	uploads string
}

func newServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.OpenInMemory(t.Name())
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	if _, err := database.EnsureAdmin(db, "Admin", "admin@school.local", "Admin1234", bcrypt.MinCost); err != nil {
		t.Fatalf("EnsureAdmin() error = %v", err)
	}
	uploads := t.TempDir()
	cfg := &config.Config{
		Server: config.ServerConfig{Mode: gin.TestMode},
		JWT:    config.JWTConfig{Secret: "test-secret", Issuer: "student-records"},
		Auth:   config.AuthConfig{BcryptCost: bcrypt.MinCost, AllowRegister: true},
		Upload: config.UploadConfig{Dir: uploads, URLPath: "/uploads"},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"*"}},
	}
	r := SetupRouter(cfg, Deps{
		DB:       db,
		Renewals: store.NewGormRenewalStore(db),
		Log:      zap.NewNop(),
		Metrics:  metrics.New(),
	})
	return &testServer{t: t, r: r, uploads: uploads}
}

func (s *testServer) do(method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return s.serve(req, token)
}

func (s *testServer) serve(req *http.Request, token string) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)
	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			s.t.Fatalf("%s %s: decode body %q: %v", req.Method, req.URL.Path, rec.Body.String(), err)
		}
	}
	return rec, env
}

func (s *testServer) login(email, password string) (string, string) {
	s.t.Helper()
	rec, env := s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": email, "password": password})
	if rec.Code != http.StatusOK {
		s.t.Fatalf("login %s: status %d body %s", email, rec.Code, rec.Body.String())
	}
	var data struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	}
	_ = json.Unmarshal(env.Data, &data)
	return data.AccessToken, data.RefreshToken
}

func (s *testServer) teacherToken() string {
	s.t.Helper()
	rec, _ := s.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"name": "Tess", "email": "tess@school.local", "password": "Teach1234",
	})
	if rec.Code != http.StatusCreated {
		s.t.Fatalf("register: status %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := s.login("tess@school.local", "Teach1234")
	return token
}

func TestStudentLifecycleOverHTTP(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")
	teacher := s.teacherToken()

	rec, env := s.do(http.MethodPost, "/api/students", admin, map[string]string{
		"name": "Ann", "email": "ann@example.com", "phone": "1", "className": "10A", "gender": "Female", "address": "x",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Student struct {
			ID     string `json:"id"`
			Gender string `json:"gender"`
		} `json:"student"`
	}
	_ = json.Unmarshal(env.Data, &created)
	id := created.Student.ID
	if id == "" || created.Student.Gender != "female" {
		t.Fatalf("created = %+v", created)
	}

	rec, env = s.do(http.MethodPost, "/api/students", admin, map[string]string{
		"name": "Dup", "email": "ANN@example.com", "phone": "1", "className": "10A", "gender": "male", "address": "x",
	})
	if rec.Code != http.StatusConflict || env.Code != 40901 {
		t.Errorf("duplicate: status %d code %d", rec.Code, env.Code)
	}

	rec, env = s.do(http.MethodPost, "/api/students", admin, map[string]string{"name": "", "gender": "robot"})
	if rec.Code != http.StatusBadRequest || len(env.Errors) == 0 {
		t.Errorf("invalid: status %d errors %+v", rec.Code, env.Errors)
	}

	rec, _ = s.do(http.MethodGet, "/api/students?search=an&limit=500", teacher, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"limit":100`) {
		t.Errorf("list: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(http.MethodPut, "/api/students/"+id, admin, map[string]string{"className": "11B"})
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"className":"11B"`) {
		t.Errorf("update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, env = s.do(http.MethodDelete, "/api/students/"+id, teacher, nil)
	if rec.Code != http.StatusForbidden || env.Code != 40301 {
		t.Errorf("teacher delete: status %d code %d", rec.Code, env.Code)
	}
	rec, _ = s.do(http.MethodDelete, "/api/students/"+id, admin, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("delete: status %d", rec.Code)
	}
	rec, env = s.do(http.MethodDelete, "/api/students/"+id, admin, nil)
	if rec.Code != http.StatusNotFound || env.Code != 40401 {
		t.Errorf("delete again: status %d code %d", rec.Code, env.Code)
	}

	rec, _ = s.do(http.MethodGet, "/api/logs", teacher, nil)
	if rec.Code != http.StatusForbidden {
		t.Errorf("teacher logs: status %d", rec.Code)
	}
	rec, env = s.do(http.MethodGet, "/api/logs", admin, nil)
	if rec.Code != http.StatusOK || !strings.Contains(string(env.Data), `"total":3`) {
		t.Errorf("logs: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(http.MethodGet, "/api/analytics", teacher, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("analytics: status %d", rec.Code)
	}
}

func TestUnauthenticatedAndRefresh(t *testing.T) {
	s := newServer(t)

	rec, env := s.do(http.MethodGet, "/api/students", "", nil)
	if rec.Code != http.StatusUnauthorized || env.Code != 40101 {
		t.Errorf("anonymous: status %d code %d", rec.Code, env.Code)
	}
	rec, _ = s.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "admin@school.local", "password": "nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad login: status %d", rec.Code)
	}

	_, refresh := s.login("admin@school.local", "Admin1234")
	rec, env = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	var data struct {
		AccessToken string `json:"accessToken"`
	}
	_ = json.Unmarshal(env.Data, &data)
	rec, _ = s.do(http.MethodGet, "/api/auth/me", data.AccessToken, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "admin@school.local") {
		t.Errorf("me: status %d body %s", rec.Code, rec.Body.String())
	}
	rec, _ = s.do(http.MethodPost, "/api/auth/refresh", "", map[string]string{"refreshToken": refresh})
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("reused refresh: status %d", rec.Code)
	}
}

func TestImportExportOverHTTP(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")

	s.do(http.MethodPost, "/api/students", admin, map[string]string{
		"name": "Bob", "phone": "1", "className": "10A", "gender": "male", "address": "x",
	})

	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Name", "Email", "Phone", "Class", "Gender", "DateOfBirth", "Address", "ProfilePhotoUrl"},
		{"", "", "1", "10A", "male", "", "x", ""},
		{"Bob", "", "1", "10A", "male", "", "x", ""},
		{"Cara", "", "1", "10B", "female", "2009-02-03", "x", ""},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		r := row
		_ = f.SetSheetRow("Sheet1", cell, &r)
	}
	buf, err := f.WriteToBuffer()
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, _ := mw.CreateFormFile("file", "students.xlsx")
	_, _ = fw.Write(buf.Bytes())
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/api/students/import/xlsx", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec, env := s.serve(req, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("import: status %d body %s", rec.Code, rec.Body.String())
	}
	var sum struct {
		Created int `json:"created"`
		Skipped int `json:"skipped"`
		Errors  []struct {
			Row    int    `json:"row"`
			Reason string `json:"reason"`
		} `json:"errors"`
	}
	_ = json.Unmarshal(env.Data, &sum)
	if sum.Created != 1 || sum.Skipped != 2 || len(sum.Errors) != 1 || sum.Errors[0].Row != 2 {
		t.Errorf("import summary = %+v", sum)
	}

	rec, _ = s.do(http.MethodGet, "/api/students/export/xlsx/all", admin, nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
		t.Fatalf("export: status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
	out, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	got, _ := out.GetRows("Students")
	out.Close()
	if len(got) != 3 {
		t.Errorf("export rows = %d, want header + 2", len(got))
	}

	rec, _ = s.do(http.MethodGet, "/api/students/export/csv/all", admin, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Cara") {
		t.Errorf("csv export: status %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newServer(t)
	rec, _ := s.do(http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz: status %d body %s", rec.Code, rec.Body.String())
	}
	s.do(http.MethodGet, "/api/students", "", nil)
	rec, _ = s.do(http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "student_records_http_requests_total") {
		t.Errorf("metrics: status %d", rec.Code)
	}
}

func TestCORSConfig(t *testing.T) {
	wild := corsConfig(config.CORSConfig{AllowedOrigins: []string{"*"}})
	if !wild.AllowAllOrigins || wild.AllowCredentials {
		t.Errorf("wildcard: AllowAllOrigins = %v, AllowCredentials = %v", wild.AllowAllOrigins, wild.AllowCredentials)
	}
	empty := corsConfig(config.CORSConfig{})
	if !empty.AllowAllOrigins || empty.AllowCredentials {
		t.Errorf("empty: AllowAllOrigins = %v, AllowCredentials = %v", empty.AllowAllOrigins, empty.AllowCredentials)
	}
	explicit := corsConfig(config.CORSConfig{AllowedOrigins: []string{"https://school.example"}})
	if explicit.AllowAllOrigins || !explicit.AllowCredentials || len(explicit.AllowOrigins) != 1 {
		t.Errorf("explicit: %+v", explicit)
	}
}
