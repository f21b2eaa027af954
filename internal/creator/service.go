// internal/creator/service.go
package creator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/apiclient"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/storage"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

// MaxArtworkBytes caps each uploaded model or logo image.
const MaxArtworkBytes = 10 << 20

var (
	ErrProductNotPublished = errors.New("product is not published")
	ErrColorNotPublished   = errors.New("colour is not published for this product")
	ErrNoWorkflow          = errors.New("no product selected for the creator workflow")
	ErrArtworkRequired     = errors.New("a model image or a logo image is required")
	ErrArtworkTooLarge     = errors.New("image must be smaller than 10MB")
	ErrPromptRequired      = errors.New("prompt is required")
	ErrCostumeRequired     = apiclient.ErrCostumeRequired
)

// Catalog is the slice of the API client the creator flow depends on.
type Catalog interface {
	FetchProductVariants(ctx context.Context, styleCode string) []models.Variant
	FetchProductImages(ctx context.Context, styleCode string) []models.ProductImage
	FetchAsset(ctx context.Context, url string) (*apiclient.Upload, error)
	GenerateImage(ctx context.Context, req apiclient.GenerateRequest) (*apiclient.GenerateResult, error)
}

// Service drives the creator wizard: pick a published product and colours,
// attach artwork, then generate and record images.
type Service struct {
	catalog Catalog
	store   *storage.Store
	log     *logrus.Entry
}

func NewService(catalog Catalog, store *storage.Store, log *logrus.Entry) *Service {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		catalog: catalog,
		store:   store,
		log:     log.WithField("component", "creator"),
	}
}

// AvailableColors resolves the colour choices for a style in the given mode.
func (s *Service) AvailableColors(ctx context.Context, mode models.UserMode, styleCode string) []string {
	variants := s.catalog.FetchProductVariants(ctx, styleCode)
	if mode != models.UserModeCreator {
		return AvailableColors(mode, variants, nil)
	}
	published, ok := s.store.PublishedProduct(ctx, styleCode)
	if !ok {
		return []string{}
	}
	return AvailableColors(mode, variants, &published)
}

// SelectProduct starts a new workflow for a published product. Every colour
// must be among the colours published for it.
func (s *Service) SelectProduct(ctx context.Context, product models.Product, colors []string) (*models.CreatorWorkflowData, error) {
	if len(colors) == 0 {
		return nil, storage.ErrNoColorsSelected
	}
	published, ok := s.store.PublishedProduct(ctx, product.StyleCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotPublished, product.StyleCode)
	}

	allowed := make(map[string]struct{}, len(published.SelectedColors))
	for _, c := range published.SelectedColors {
		allowed[c] = struct{}{}
	}
	for _, c := range colors {
		if _, ok := allowed[c]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrColorNotPublished, c)
		}
	}

	workflow := models.CreatorWorkflowData{
		SelectedProduct: product.Ref(),
		SelectedColors:  uniqueInOrder(colors),
	}
	if err := s.store.SaveWorkflow(ctx, workflow); err != nil {
		return nil, err
	}
	return &workflow, nil
}

// AttachArtwork sets the model and logo images of the current workflow.
// Images are data URLs or http(s) URLs; at least one is required.
func (s *Service) AttachArtwork(ctx context.Context, modelImage, logoImage string) (*models.CreatorWorkflowData, error) {
	workflow := s.store.Workflow(ctx)
	if workflow == nil || workflow.SelectedProduct.StyleCode == "" {
		return nil, ErrNoWorkflow
	}
	if modelImage == "" && logoImage == "" {
		return nil, ErrArtworkRequired
	}
	for _, img := range []string{modelImage, logoImage} {
		if err := checkArtwork(img); err != nil {
			return nil, err
		}
	}

	workflow.ModelImage = modelImage
	workflow.LogoImage = logoImage
	if err := s.store.SaveWorkflow(ctx, *workflow); err != nil {
		return nil, err
	}
	return workflow, nil
}

func checkArtwork(img string) error {
	switch {
	case img == "":
		return nil
	case utils.IsDataURL(img):
		_, data, err := utils.DecodeDataURL(img)
		if err != nil {
			return err
		}
		if len(data) > MaxArtworkBytes {
			return ErrArtworkTooLarge
		}
		return nil
	case strings.HasPrefix(img, "http://"), strings.HasPrefix(img, "https://"):
		return nil
	default:
		return fmt.Errorf("unsupported image reference %q", truncate(img, 32))
	}
}

// Ready reports whether the workflow can be sent for generation.
func Ready(workflow *models.CreatorWorkflowData) bool {
	return workflow != nil &&
		workflow.SelectedProduct.StyleCode != "" &&
		(workflow.ModelImage != "" || workflow.LogoImage != "")
}

// Generation is the outcome of a successful Generate call.
type Generation struct {
	Output *Output
	Entry  *models.GeneratedImageEntry
}

// Generate sends the current workflow to the generator and records the
// result in the image history. The product's primary image is used as the
// costume. Workflow colours no longer published for the product are dropped.
func (s *Service) Generate(ctx context.Context, prompt string) (*Generation, error) {
	workflow := s.store.Workflow(ctx)
	if workflow == nil || workflow.SelectedProduct.StyleCode == "" {
		return nil, ErrNoWorkflow
	}
	if !Ready(workflow) {
		return nil, ErrArtworkRequired
	}
	userPrompt := strings.TrimSpace(prompt)
	if userPrompt == "" {
		return nil, ErrPromptRequired
	}

	styleCode := workflow.SelectedProduct.StyleCode
	log := s.log.WithField("style_code", styleCode)

	published, ok := s.store.PublishedProduct(ctx, styleCode)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProductNotPublished, styleCode)
	}
	colors := intersect(workflow.SelectedColors, published.SelectedColors)
	if len(colors) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrColorNotPublished, strings.Join(workflow.SelectedColors, ", "))
	}
	if len(colors) < len(workflow.SelectedColors) {
		log.WithField("colors", colors).Warn("Dropped colours no longer published")
	}

	workflow.Prompt = userPrompt
	workflow.SelectedColors = colors
	if err := s.store.SaveWorkflow(ctx, *workflow); err != nil {
		return nil, err
	}

	primary, ok := models.PrimaryImage(s.catalog.FetchProductImages(ctx, styleCode))
	if !ok || primary.URL() == "" {
		return nil, ErrCostumeRequired
	}
	costume, err := s.catalog.FetchAsset(ctx, primary.URL())
	if err != nil {
		log.WithError(err).Error("Error fetching costume image")
		return nil, fmt.Errorf("failed to fetch costume image: %w", err)
	}
	costume.Filename = "costume_image.jpg"

	head, err := s.loadArtwork(ctx, workflow.ModelImage, "head_image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to load model image: %w", err)
	}
	logo, err := s.loadArtwork(ctx, workflow.LogoImage, "logo_image.jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to load logo image: %w", err)
	}

	result, err := s.catalog.GenerateImage(ctx, apiclient.GenerateRequest{
		Prompt:         ComposePrompt(userPrompt),
		UserPrompt:     userPrompt,
		Costume:        costume,
		Head:           head,
		Logo:           logo,
		SelectedColors: colors,
	})
	if err != nil {
		return nil, err
	}

	output, err := ResolveOutput(result)
	if err != nil {
		log.WithError(err).Warn("Image generation failed")
		return nil, err
	}

	entry, err := s.store.SaveGeneratedImage(ctx, models.GeneratedImageEntry{
		Image:  output.Image,
		Prompt: userPrompt,
		Product: models.ProductRef{
			StyleCode:   styleCode,
			StyleName:   workflow.SelectedProduct.StyleName,
			ProductType: workflow.SelectedProduct.ProductType,
		},
		SelectedColors: colors,
		Source:         output.Source(),
		Metadata:       output.Metadata,
		Assets:         output.Assets,
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"kind":   output.Kind.String(),
		"assets": len(output.Assets),
	}).Info("Generated image saved")
	return &Generation{Output: output, Entry: entry}, nil
}

func (s *Service) loadArtwork(ctx context.Context, ref, filename string) (*apiclient.Upload, error) {
	if ref == "" {
		return nil, nil
	}
	if utils.IsDataURL(ref) {
		mimeType, data, err := utils.DecodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return &apiclient.Upload{Filename: filename, ContentType: mimeType, Data: data}, nil
	}
	upload, err := s.catalog.FetchAsset(ctx, ref)
	if err != nil {
		return nil, err
	}
	upload.Filename = filename
	return upload, nil
}

func uniqueInOrder(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
