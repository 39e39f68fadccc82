package router

import (
	"bytes"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// multipartStudent builds a multipart create body with an optional photo.
func multipartStudent(t *testing.T, fields map[string]string, filename string, photo []byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		_ = mw.WriteField(k, v)
	}
	if photo != nil {
		fw, err := mw.CreateFormFile("profilePhoto", filename)
		if err != nil {
			t.Fatal(err)
		}
		_, _ = fw.Write(photo)
	}
	mw.Close()
	return &body, mw.FormDataContentType()
}

func (s *testServer) postMultipart(path, token string, fields map[string]string, filename string, photo []byte) (*httptest.ResponseRecorder, envelope) {
	s.t.Helper()
	body, ct := multipartStudent(s.t, fields, filename, photo)
	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", ct)
	return s.serve(req, token)
}

func (s *testServer) uploadCount() int {
	s.t.Helper()
	entries, err := os.ReadDir(s.uploads)
	if err != nil {
		if os.IsNotExist(err) {
			return 0
		}
		s.t.Fatal(err)
	}
	return len(entries)
}

func studentFields(name string) map[string]string {
	return map[string]string{"name": name, "phone": "1", "className": "10A", "gender": "female", "address": "x"}
}

func TestMultipartPhotoUpload(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")

	rec, env := s.postMultipart("/api/students", admin, studentFields("Ann"), "ann.png", pngBytes(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Student struct {
			ID              string `json:"id"`
			ProfilePhotoURL string `json:"profilePhotoUrl"`
		} `json:"student"`
	}
	_ = json.Unmarshal(env.Data, &created)
	photo := created.Student.ProfilePhotoURL
	if !strings.HasPrefix(photo, "/uploads/") || !strings.HasSuffix(photo, ".png") {
		t.Fatalf("profilePhotoUrl = %q", photo)
	}

	rec, _ = s.do(http.MethodGet, photo, "", nil)
	if rec.Code != http.StatusOK || rec.Header().Get("Content-Type") != "image/png" {
		t.Errorf("GET photo: status %d type %q", rec.Code, rec.Header().Get("Content-Type"))
	}
}

func TestRejectedUploadsLeaveNoFile(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")
	teacher := s.teacherToken()

	rec, env := s.postMultipart("/api/students", admin, studentFields("Ann"), "notes.png", []byte("just some text"))
	if rec.Code != http.StatusBadRequest || len(env.Errors) == 0 || env.Errors[0].Field != "profilePhoto" {
		t.Errorf("non-image: status %d errors %+v", rec.Code, env.Errors)
	}

	invalid := studentFields("")
	rec, _ = s.postMultipart("/api/students", admin, invalid, "ann.png", pngBytes(t))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("invalid fields: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.postMultipart("/api/students", teacher, studentFields("Ann"), "ann.png", pngBytes(t))
	if rec.Code != http.StatusForbidden {
		t.Errorf("teacher create: status %d", rec.Code)
	}

	if n := s.uploadCount(); n != 0 {
		t.Errorf("upload dir holds %d files, want 0", n)
	}
}

func TestDeletingOneOwnerKeepsSharedPhoto(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")

	rec, env := s.postMultipart("/api/students", admin, studentFields("Ann"), "ann.png", pngBytes(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create a: status %d body %s", rec.Code, rec.Body.String())
	}
	var a struct {
		Student struct {
			ProfilePhotoURL string `json:"profilePhotoUrl"`
		} `json:"student"`
	}
	_ = json.Unmarshal(env.Data, &a)
	photo := a.Student.ProfilePhotoURL

	fields := studentFields("Bea")
	fields["profilePhotoUrl"] = photo
	rec, env = s.do(http.MethodPost, "/api/students", admin, fields)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create b: status %d body %s", rec.Code, rec.Body.String())
	}
	var b struct {
		Student struct {
			ID string `json:"id"`
		} `json:"student"`
	}
	_ = json.Unmarshal(env.Data, &b)

	rec, _ = s.do(http.MethodDelete, "/api/students/"+b.Student.ID, admin, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete b: status %d", rec.Code)
	}
	rec, _ = s.do(http.MethodGet, photo, "", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("GET shared photo after deleting b: status %d, want 200", rec.Code)
	}
}

func TestReplacingPhotoRemovesOldUpload(t *testing.T) {
	s := newServer(t)
	admin, _ := s.login("admin@school.local", "Admin1234")

	rec, env := s.postMultipart("/api/students", admin, studentFields("Ann"), "ann.png", pngBytes(t))
	if rec.Code != http.StatusCreated {
		t.Fatalf("create: status %d body %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Student struct {
			ID              string `json:"id"`
			ProfilePhotoURL string `json:"profilePhotoUrl"`
		} `json:"student"`
	}
	_ = json.Unmarshal(env.Data, &created)

	body, ct := multipartStudent(t, map[string]string{"className": "11B"}, "new.png", pngBytes(t))
	req := httptest.NewRequest(http.MethodPut, "/api/students/"+created.Student.ID, body)
	req.Header.Set("Content-Type", ct)
	rec, _ = s.serve(req, admin)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}

	rec, _ = s.do(http.MethodGet, created.Student.ProfilePhotoURL, "", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET old photo: status %d, want 404", rec.Code)
	}
	if n := s.uploadCount(); n != 1 {
		t.Errorf("upload dir holds %d files, want 1", n)
	}
}

func TestWildcardCORSDoesNotAllowCredentials(t *testing.T) {
	s := newServer(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/students", nil)
	req.Header.Set("Origin", "https://evil.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	s.r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "" {
		t.Errorf("Allow-Credentials = %q, want unset", got)
	}
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Allow-Origin = %q, want *", got)
	}
}
