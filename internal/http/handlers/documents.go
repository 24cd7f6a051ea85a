package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"certdispatch/internal/batch"
	"certdispatch/internal/domain"
	"certdispatch/internal/infra/logging"
)

// GenerateRequest asks for a single certificate.
type GenerateRequest struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// EmailRequest asks for a document to be e-mailed. Empty Subject or Body use
// the configured single-recipient wording for the document kind.
type EmailRequest struct {
	Email               string `json:"email"`
	Name                string `json:"name"`
	Role                string `json:"role"`
	CertificateFilename string `json:"certificate_filename"`
	Subject             string `json:"subject"`
	Body                string `json:"body"`
}

func (r EmailRequest) recipient() domain.Recipient {
	return domain.Recipient{Name: r.Name, Email: r.Email, Role: r.Role}.Trimmed()
}

// DocumentService serves the document and batch endpoints.
type DocumentService struct {
	Batch *batch.Orchestrator
	// Timeout bounds each request's render and dispatch work.
	Timeout time.Duration
}

// NewDocumentService returns a DocumentService over o.
func NewDocumentService(o *batch.Orchestrator, timeout time.Duration) *DocumentService {
	return &DocumentService{Batch: o, Timeout: timeout}
}

func (svc *DocumentService) requestContext(c *fiber.Ctx) (context.Context, context.CancelFunc) {
	if svc.Timeout <= 0 {
		return context.WithCancel(c.UserContext())
	}
	return context.WithTimeout(c.UserContext(), svc.Timeout)
}

func parseEmailRequest(c *fiber.Ctx) (EmailRequest, error) {
	var req EmailRequest
	if err := c.BodyParser(&req); err != nil {
		return req, fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	if strings.TrimSpace(req.Email) == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "email is required")
	}
	if strings.TrimSpace(req.Name) == "" {
		return req, fiber.NewError(fiber.StatusBadRequest, "name is required")
	}
	return req, nil
}

// HandleGenerateCertificate renders a certificate without sending it.
func (svc *DocumentService) HandleGenerateCertificate(c *fiber.Ctx) error {
	var req GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body: "+err.Error())
	}
	ctx, cancel := svc.requestContext(c)
	defer cancel()

	path, err := svc.Batch.RenderOne(ctx, domain.Recipient{Name: req.Name, Role: req.Role}, domain.KindCertificate)
	if err != nil {
		logging.Error("Certificate generation failed", "name", req.Name, "error", err)
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"status":           "success",
		"certificate_file": filepath.Base(path),
		"saved_path":       path,
	})
}

// HandleSendCertificateEmail e-mails an existing certificate. Without a
// filename every PDF in the output directory is attached.
func (svc *DocumentService) HandleSendCertificateEmail(c *fiber.Ctx) error {
	req, err := parseEmailRequest(c)
	if err != nil {
		return err
	}
	outDir := svc.Batch.OutputDir()

	var attachments []string
	if name := strings.TrimSpace(req.CertificateFilename); name != "" {
		if filepath.Base(name) != name || name == "." || name == ".." {
			return fiber.NewError(fiber.StatusBadRequest, "certificate_filename must be a plain file name")
		}
		p := filepath.Join(outDir, name)
		if _, err := os.Stat(p); err != nil {
			return fiber.NewError(fiber.StatusNotFound, fmt.Sprintf("Certificate file '%s' not found", name))
		}
		attachments = append(attachments, p)
	} else {
		pdfs, err := listPDFs(outDir)
		if err != nil {
			return httpError(fmt.Errorf("%w: list output dir: %v", domain.ErrIO, err))
		}
		if len(pdfs) == 0 {
			return fiber.NewError(fiber.StatusNotFound, "No certificate files found in output folder")
		}
		attachments = pdfs
	}

	ctx, cancel := svc.requestContext(c)
	defer cancel()
	if err := svc.Batch.SendOne(ctx, req.recipient(), domain.KindCertificate, req.Subject, req.Body, attachments); err != nil {
		return httpError(err)
	}

	sent := make([]string, 0, len(attachments))
	for _, a := range attachments {
		sent = append(sent, filepath.Base(a))
	}
	return c.JSON(fiber.Map{
		"status":     "success",
		"message":    "Email sent to " + req.recipient().Email,
		"files_sent": sent,
	})
}

// HandleGenerateAndSendCertificate renders a certificate and e-mails it.
func (svc *DocumentService) HandleGenerateAndSendCertificate(c *fiber.Ctx) error {
	return svc.generateAndSend(c, domain.KindCertificate, "Certificate generated and sent to ")
}

// HandleSendOfferLetter renders an offer letter and e-mails it.
func (svc *DocumentService) HandleSendOfferLetter(c *fiber.Ctx) error {
	return svc.generateAndSend(c, domain.KindOfferLetter, "Offer letter sent to ")
}

func (svc *DocumentService) generateAndSend(c *fiber.Ctx, kind domain.Kind, message string) error {
	req, err := parseEmailRequest(c)
	if err != nil {
		return err
	}
	rec := req.recipient()
	ctx, cancel := svc.requestContext(c)
	defer cancel()

	path, err := svc.Batch.RenderOne(ctx, rec, kind)
	if err != nil {
		logging.Error("Document generation failed", "kind", kind, "name", rec.Name, "error", err)
		return httpError(err)
	}
	if err := svc.Batch.SendOne(ctx, rec, kind, req.Subject, req.Body, []string{path}); err != nil {
		return httpError(err)
	}
	return c.JSON(fiber.Map{
		"status":  "success",
		"message": message + rec.Email,
	})
}

// HandleBatch returns a handler running an uploaded roster for kind.
// send_email defaults to true.
func (svc *DocumentService) HandleBatch(kind domain.Kind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fh, err := c.FormFile("csv_file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "csv_file is required")
		}
		send := c.QueryBool("send_email", true)

		tmpDir, err := os.MkdirTemp("", "certdispatch-upload-*")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Failed to save uploaded CSV file: "+err.Error())
		}
		name := filepath.Base(fh.Filename)
		if name == "." || name == string(filepath.Separator) {
			name = "upload.csv"
		}
		csvPath := filepath.Join(tmpDir, name)
		if err := c.SaveFile(fh, csvPath); err != nil {
			_ = os.RemoveAll(tmpDir)
			return fiber.NewError(fiber.StatusBadRequest, "Failed to save uploaded CSV file: "+err.Error())
		}

		res, err := svc.Batch.RunFile(c.UserContext(), csvPath, tmpDir, kind, send)
		if err != nil {
			return httpError(err)
		}
		return c.JSON(res)
	}
}

// OutputFile describes one artifact in the output directory.
type OutputFile struct {
	Name     string    `json:"name"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
}

// HandleListOutputs lists the PDF artifacts in the output directory.
func (svc *DocumentService) HandleListOutputs(c *fiber.Ctx) error {
	pdfs, err := listPDFs(svc.Batch.OutputDir())
	if err != nil {
		return httpError(fmt.Errorf("%w: list output dir: %v", domain.ErrIO, err))
	}
	files := make([]OutputFile, 0, len(pdfs))
	for _, p := range pdfs {
		st, err := os.Stat(p)
		if err != nil {
			continue
		}
		files = append(files, OutputFile{Name: filepath.Base(p), Size: st.Size(), Modified: st.ModTime().UTC()})
	}
	return c.JSON(fiber.Map{"files": files})
}

// listPDFs returns the PDFs directly inside dir, sorted by name. A missing
// dir holds no PDFs.
func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".pdf") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}
