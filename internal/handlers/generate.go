// internal/handlers/generate.go
package handlers

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/services"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

const (
	costumeRequiredMessage = "Costume image is required."
	multipartMemory        = 32 << 20
)

type GenerateHandler struct {
	generationService *services.GenerationService
	log               *logrus.Entry
}

func NewGenerateHandler(generationService *services.GenerationService, log *logrus.Entry) *GenerateHandler {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &GenerateHandler{
		generationService: generationService,
		log:               log.WithField("handler", "generate"),
	}
}

// OPTIONS /api/generate-image
func (h *GenerateHandler) Preflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// POST /api/generate-image
func (h *GenerateHandler) GenerateImage(c *gin.Context) {
	log := h.log.WithField("request_id", utils.GetRequestIDFromContext(c))

	if err := c.Request.ParseMultipartForm(multipartMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		log.WithError(err).Warn("Invalid multipart form")
		utils.GenerateError(c, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	input := services.GenerateInput{
		Prompt:     c.PostForm("prompt"),
		UserPrompt: c.PostForm("user_prompt"),
		ImageType:  c.PostForm("image_type"),
		Colors:     selectedColors(c.PostFormArray("selectedColors")),
	}

	var err error
	if input.Head, err = formFile(c, "head_image"); err != nil {
		utils.GenerateError(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Costume, err = formFile(c, "costume_image"); err != nil {
		utils.GenerateError(c, http.StatusBadRequest, err.Error())
		return
	}
	if input.Logo, err = formFile(c, "logo_image"); err != nil {
		utils.GenerateError(c, http.StatusBadRequest, err.Error())
		return
	}

	log.WithFields(logrus.Fields{
		"head":    input.Head != nil,
		"costume": input.Costume != nil,
		"logo":    input.Logo != nil,
		"colors":  input.Colors,
	}).Info("Received generate request")

	if input.Costume == nil {
		utils.GenerateError(c, http.StatusBadRequest, costumeRequiredMessage)
		return
	}

	out, err := h.generationService.Generate(c.Request.Context(), input)
	if err != nil {
		log.WithError(err).Error("Error generating image")
		message := err.Error()
		if message == "" {
			message = "Failed to generate image"
		}
		utils.GenerateError(c, http.StatusInternalServerError, message)
		return
	}
	utils.GenerateResult(c, out.StatusCode, out.OK, out.Data)
}

// selectedColors keeps repeated values as sent; a single value is trimmed
// and dropped when blank.
func selectedColors(values []string) []string {
	if len(values) != 1 {
		return values
	}
	if v := strings.TrimSpace(values[0]); v != "" {
		return []string{v}
	}
	return nil
}

func formFile(c *gin.Context, field string) (*services.FilePart, error) {
	header, err := c.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return readFilePart(header)
}

func readFilePart(header *multipart.FileHeader) (*services.FilePart, error) {
	f, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return &services.FilePart{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
