package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certdispatch/internal/batch"
	"certdispatch/internal/config"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/convert"
	"certdispatch/internal/render"
)

type sentMail struct {
	to, subject, body string
	attachments       []string
}

type fakeSender struct {
	sent []sentMail
	err  error
}

func (f *fakeSender) Send(_ context.Context, to, subject, body string, attachments []string) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body, attachments})
	return nil
}

type fixture struct {
	app    *fiber.App
	outDir string
	sender *fakeSender
}

var copyPDF = convert.ConverterFunc(func(_ context.Context, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
})

func newFixture(t *testing.T) *fixture {
	t.Helper()
	tmplDir := t.TempDir()
	cert := filepath.Join(tmplDir, "cert.txt")
	offer := filepath.Join(tmplDir, "offer.txt")
	require.NoError(t, os.WriteFile(cert, []byte("Certificate for <NAME> in <DOMAIN>"), 0o644))
	require.NoError(t, os.WriteFile(offer, []byte("Offer for <NAME> in <DOMAIN>"), 0o644))

	r := render.New(convert.NewRegistry().Register(copyPDF, ".txt"), render.Options{
		Prefixes: map[domain.Kind]string{
			domain.KindCertificate: "DNYX-Completion",
			domain.KindOfferLetter: "DNYX-OfferLetter",
		},
	})
	outDir := filepath.Join(t.TempDir(), "output")
	fs := &fakeSender{}
	o := batch.New(r, fs, batch.Options{
		OutputDir: outDir,
		Documents: map[domain.Kind]config.DocumentConfig{
			domain.KindCertificate: {
				Template: cert, Subject: "Congrats, <NAME>!", Body: "Well done in <ROLE>.",
				SingleBody: "Dear <NAME>,\nWell done in <ROLE>!\nWarm regards,\n",
			},
			domain.KindOfferLetter: {Template: offer, Subject: "<DOMAIN> Internship Offer Letter - DNYX", Body: "Dear <NAME>"},
		},
	})

	svc := NewDocumentService(o, 0)
	app := fiber.New()
	app.Post("/certificates", svc.HandleGenerateCertificate)
	app.Post("/certificates/email", svc.HandleSendCertificateEmail)
	app.Post("/certificates/send", svc.HandleGenerateAndSendCertificate)
	app.Post("/offer-letters/send", svc.HandleSendOfferLetter)
	app.Post("/batches/certificates", svc.HandleBatch(domain.KindCertificate))
	app.Get("/outputs", svc.HandleListOutputs)
	return &fixture{app: app, outDir: outDir, sender: fs}
}

func (f *fixture) postJSON(t *testing.T, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return f.do(t, req)
}

func (f *fixture) do(t *testing.T, req *http.Request) (*http.Response, map[string]any) {
	t.Helper()
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}
	return resp, out
}

func TestGenerateCertificate(t *testing.T) {
	f := newFixture(t)
	resp, out := f.postJSON(t, "/certificates", GenerateRequest{Name: "Asha Rao", Role: "Data Science"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "DNYX-Completion-Asha Rao.pdf", out["certificate_file"])

	data, err := os.ReadFile(filepath.Join(f.outDir, "DNYX-Completion-Asha Rao.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "Certificate for Asha Rao in Data Science", string(data))
}

func TestGenerateCertificate_BlankName(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.postJSON(t, "/certificates", GenerateRequest{Name: "  ", Role: "ML"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestSendCertificateEmail_Validation(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.postJSON(t, "/certificates/email", EmailRequest{Name: "A"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, "email is required")

	resp, _ = f.postJSON(t, "/certificates/email", EmailRequest{Email: "a@x.com", Name: "A", CertificateFilename: "../etc/passwd"})
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	resp, _ = f.postJSON(t, "/certificates/email", EmailRequest{Email: "a@x.com", Name: "A", CertificateFilename: "missing.pdf"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	resp, _ = f.postJSON(t, "/certificates/email", EmailRequest{Email: "a@x.com", Name: "A"})
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode, "no PDFs in the output dir")
	assert.Empty(t, f.sender.sent)
}

func TestSendCertificateEmail_AllPDFsWhenNoFilename(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.outDir, 0o755))
	for _, n := range []string{"b.pdf", "a.pdf", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(f.outDir, n), []byte("x"), 0o644))
	}

	resp, out := f.postJSON(t, "/certificates/email", EmailRequest{Email: "a@x.com", Name: "Asha", Role: "ML"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, []any{"a.pdf", "b.pdf"}, out["files_sent"])
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Congrats, Asha!", f.sender.sent[0].subject)
	assert.Len(t, f.sender.sent[0].attachments, 2)
}

func TestSendCertificateEmail_NamedFileAndOverrides(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, "c.pdf"), []byte("x"), 0o644))

	resp, _ := f.postJSON(t, "/certificates/email", EmailRequest{
		Email: "a@x.com", Name: "Asha", Role: "ML", CertificateFilename: "c.pdf",
		Subject: "Hi <NAME>", Body: "<ROLE> done",
	})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Hi Asha", f.sender.sent[0].subject)
	assert.Equal(t, "ML done", f.sender.sent[0].body)
	assert.Equal(t, []string{filepath.Join(f.outDir, "c.pdf")}, f.sender.sent[0].attachments)
}

func TestGenerateAndSend(t *testing.T) {
	f := newFixture(t)
	resp, out := f.postJSON(t, "/certificates/send", EmailRequest{Email: "asha@x.com", Name: "Asha Rao", Role: "Data Science"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Certificate generated and sent to asha@x.com", out["message"])
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, []string{filepath.Join(f.outDir, "DNYX-Completion-Asha Rao.pdf")}, f.sender.sent[0].attachments)
	assert.Equal(t, "Dear Asha Rao,\nWell done in Data Science!\nWarm regards,\n", f.sender.sent[0].body)
}

func TestSendCertificateEmail_DefaultsToMultiLineBody(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.MkdirAll(f.outDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(f.outDir, "c.pdf"), []byte("x"), 0o644))

	resp, _ := f.postJSON(t, "/certificates/email", EmailRequest{Email: "a@x.com", Name: "Asha", Role: "ML", CertificateFilename: "c.pdf"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Congrats, Asha!", f.sender.sent[0].subject)
	assert.Equal(t, "Dear Asha,\nWell done in ML!\nWarm regards,\n", f.sender.sent[0].body)
}

func TestSendOfferLetter(t *testing.T) {
	f := newFixture(t)
	resp, out := f.postJSON(t, "/offer-letters/send", EmailRequest{Email: "asha@x.com", Name: "Asha Rao", Role: "Web"})
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "Offer letter sent to asha@x.com", out["message"])
	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "Web Internship Offer Letter - DNYX", f.sender.sent[0].subject)
	_, err := os.Stat(filepath.Join(f.outDir, "DNYX-OfferLetter-Asha Rao.pdf"))
	assert.NoError(t, err)
}

func TestGenerateAndSend_DeliveryFailure(t *testing.T) {
	f := newFixture(t)
	f.sender.err = fmt.Errorf("%w: smtp down", domain.ErrDelivery)
	resp, _ := f.postJSON(t, "/certificates/send", EmailRequest{Email: "asha@x.com", Name: "Asha", Role: "ML"})
	assert.Equal(t, fiber.StatusBadGateway, resp.StatusCode)
}

func uploadCSV(t *testing.T, path, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("csv_file", "roster.csv")
	require.NoError(t, err)
	_, err = part.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestBatch(t *testing.T) {
	f := newFixture(t)
	req := uploadCSV(t, "/batches/certificates", "Name,Email,Domain\nAsha Rao,asha@x.com,Data Science\n ,blank@x.com,ML\nBen,ben@x.com,Web\n")
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var res domain.BatchResult
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&res))
	require.Len(t, res.Results, 3)
	assert.Equal(t, domain.StatusSuccess, res.Results[0].Status)
	assert.True(t, res.Results[1].Status.IsFailed())
	assert.Equal(t, domain.StatusSuccess, res.Results[2].Status)
	assert.Len(t, f.sender.sent, 2)
}

func TestBatch_NoEmail(t *testing.T) {
	f := newFixture(t)
	req := uploadCSV(t, "/batches/certificates?send_email=false", "Name,Email,Domain\nAsha,asha@x.com,ML\n")
	resp, out := f.do(t, req)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Len(t, out["results"], 1)
	assert.Empty(t, f.sender.sent)
}

func TestBatch_MissingColumn(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, uploadCSV(t, "/batches/certificates", "Name,Email\nAsha,asha@x.com\n"))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	_, err := os.Stat(f.outDir)
	assert.True(t, os.IsNotExist(err), "nothing rendered")
}

func TestBatch_MissingFile(t *testing.T) {
	f := newFixture(t)
	resp, _ := f.do(t, httptest.NewRequest(http.MethodPost, "/batches/certificates", nil))
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestListOutputs(t *testing.T) {
	f := newFixture(t)
	resp, out := f.do(t, httptest.NewRequest(http.MethodGet, "/outputs", nil))
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Empty(t, out["files"])

	f.postJSON(t, "/certificates", GenerateRequest{Name: "Asha Rao", Role: "ML"})
	_, out = f.do(t, httptest.NewRequest(http.MethodGet, "/outputs", nil))
	files, ok := out["files"].([]any)
	require.True(t, ok)
	require.Len(t, files, 1)
	assert.Equal(t, "DNYX-Completion-Asha Rao.pdf", files[0].(map[string]any)["name"])
}

func TestHandleChromeStats_Disabled(t *testing.T) {
	var cfg config.Config
	cfg.PDF.TimeoutSecs = 7
	app := fiber.New()
	app.Get("/stats", HandleChromeStats(cfg, nil))

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/stats", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, false, out["enabled"])
	assert.Equal(t, 7.0, out["timeout_secs"])
}

func TestHTTPError(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{domain.ErrSchema, fiber.StatusBadRequest},
		{domain.ErrInvalidRecipient, fiber.StatusBadRequest},
		{fmt.Errorf("%w: template", domain.ErrNotFound), fiber.StatusNotFound},
		{domain.ErrDelivery, fiber.StatusBadGateway},
		{domain.ErrConversion, fiber.StatusInternalServerError},
		{domain.ErrIO, fiber.StatusInternalServerError},
		{fiber.NewError(fiber.StatusTeapot, "tea"), fiber.StatusTeapot},
	}
	for _, tt := range tests {
		var fe *fiber.Error
		require.ErrorAs(t, httpError(tt.err), &fe)
		assert.Equal(t, tt.code, fe.Code, tt.err.Error())
	}
}
