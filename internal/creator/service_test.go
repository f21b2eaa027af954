package creator

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/apiclient"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/events"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/storage"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

type fakeCatalog struct {
	variants []models.Variant
	images   []models.ProductImage
	assets   map[string]*apiclient.Upload
	result   *apiclient.GenerateResult
	genErr   error

	fetched  []string
	requests []apiclient.GenerateRequest
}

func (f *fakeCatalog) FetchProductVariants(context.Context, string) []models.Variant {
	return f.variants
}

func (f *fakeCatalog) FetchProductImages(context.Context, string) []models.ProductImage {
	return f.images
}

func (f *fakeCatalog) FetchAsset(_ context.Context, url string) (*apiclient.Upload, error) {
	f.fetched = append(f.fetched, url)
	asset, ok := f.assets[url]
	if !ok {
		return nil, errors.New("asset not found")
	}
	copied := *asset
	return &copied, nil
}

func (f *fakeCatalog) GenerateImage(_ context.Context, req apiclient.GenerateRequest) (*apiclient.GenerateResult, error) {
	f.requests = append(f.requests, req)
	return f.result, f.genErr
}

type ServiceTestSuite struct {
	suite.Suite
	ctx     context.Context
	bus     *events.Bus
	store   *storage.Store
	catalog *fakeCatalog
	service *Service
	product models.Product
}

func (suite *ServiceTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.bus = events.NewBus(nil)
	suite.store = storage.New(storage.NewMemoryBackend(), suite.bus, nil)
	suite.catalog = &fakeCatalog{
		variants: variants("BLACK", "NAVY", "WHITE"),
		images: []models.ProductImage{
			{ImageType: "BACK", URLStandard: "https://cdn.example.com/5001-back.jpg"},
			{ImageType: "FRONT", URLStandard: "https://cdn.example.com/5001-front.jpg"},
		},
		assets: map[string]*apiclient.Upload{
			"https://cdn.example.com/5001-front.jpg": {Filename: "5001-front.jpg", ContentType: "image/jpeg", Data: []byte("front")},
			"https://cdn.example.com/logo.png":       {Filename: "logo.png", ContentType: "image/png", Data: []byte("logo")},
		},
		result: &apiclient.GenerateResult{
			StatusCode: http.StatusOK,
			Envelope: models.GenerateEnvelope{
				Success: true,
				Data:    json.RawMessage(`{"images":[{"color":"BLACK","s3_url":"https://cdn.example.com/out-black.jpg","s3_key":"out/black"}]}`),
			},
		},
	}
	suite.service = NewService(suite.catalog, suite.store, nil)
	suite.product = models.Product{StyleCode: "5001", StyleName: "Staple Tee", ProductType: "T-Shirts", Gender: "Men"}

	_, err := suite.store.PublishProducts(suite.ctx, []models.SavedProduct{{
		StyleCode:      "5001",
		StyleName:      "Staple Tee",
		SelectedColors: []string{"BLACK", "WHITE"},
	}})
	suite.Require().NoError(err)
}

func (suite *ServiceTestSuite) TestSelectProductWithinPublishedColours() {
	workflow, err := suite.service.SelectProduct(suite.ctx, suite.product, []string{"WHITE", "BLACK", "WHITE"})
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), []string{"WHITE", "BLACK"}, workflow.SelectedColors)
	assert.Equal(suite.T(), suite.product.Ref(), workflow.SelectedProduct)
	assert.Equal(suite.T(), workflow, suite.store.Workflow(suite.ctx))
}

func (suite *ServiceTestSuite) TestSelectProductRejectsUnpublished() {
	_, err := suite.service.SelectProduct(suite.ctx, suite.product, []string{"NAVY"})
	assert.ErrorIs(suite.T(), err, ErrColorNotPublished)

	_, err = suite.service.SelectProduct(suite.ctx, suite.product, nil)
	assert.ErrorIs(suite.T(), err, storage.ErrNoColorsSelected)

	other := models.Product{StyleCode: "5002", StyleName: "Relax Tee"}
	_, err = suite.service.SelectProduct(suite.ctx, other, []string{"BLACK"})
	assert.ErrorIs(suite.T(), err, ErrProductNotPublished)

	assert.Nil(suite.T(), suite.store.Workflow(suite.ctx))
}

func (suite *ServiceTestSuite) TestSelectProductReplacesPreviousWorkflow() {
	_, err := suite.service.SelectProduct(suite.ctx, suite.product, []string{"BLACK"})
	require.NoError(suite.T(), err)
	_, err = suite.service.AttachArtwork(suite.ctx, "", "https://cdn.example.com/logo.png")
	require.NoError(suite.T(), err)

	_, err = suite.service.SelectProduct(suite.ctx, suite.product, []string{"WHITE"})
	require.NoError(suite.T(), err)

	workflow := suite.store.Workflow(suite.ctx)
	assert.Equal(suite.T(), []string{"WHITE"}, workflow.SelectedColors)
	assert.Empty(suite.T(), workflow.LogoImage)
}

func (suite *ServiceTestSuite) TestAttachArtwork() {
	_, err := suite.service.AttachArtwork(suite.ctx, "data:image/png;base64,AAAA", "")
	assert.ErrorIs(suite.T(), err, ErrNoWorkflow)

	_, err = suite.service.SelectProduct(suite.ctx, suite.product, []string{"BLACK"})
	require.NoError(suite.T(), err)

	_, err = suite.service.AttachArtwork(suite.ctx, "", "")
	assert.ErrorIs(suite.T(), err, ErrArtworkRequired)

	big := utils.EncodeDataURL("image/png", make([]byte, MaxArtworkBytes+1))
	_, err = suite.service.AttachArtwork(suite.ctx, big, "")
	assert.ErrorIs(suite.T(), err, ErrArtworkTooLarge)

	_, err = suite.service.AttachArtwork(suite.ctx, "C:\\face.png", "")
	assert.Error(suite.T(), err)

	workflow, err := suite.service.AttachArtwork(suite.ctx, "data:image/png;base64,AAAA", "https://cdn.example.com/logo.png")
	require.NoError(suite.T(), err)
	assert.True(suite.T(), Ready(workflow))
	assert.Equal(suite.T(), "https://cdn.example.com/logo.png", suite.store.Workflow(suite.ctx).LogoImage)
}

func (suite *ServiceTestSuite) prepareWorkflow() {
	_, err := suite.service.SelectProduct(suite.ctx, suite.product, []string{"BLACK", "WHITE"})
	suite.Require().NoError(err)
	_, err = suite.service.AttachArtwork(suite.ctx, utils.EncodeDataURL("image/png", []byte("face")), "https://cdn.example.com/logo.png")
	suite.Require().NoError(err)
}

func (suite *ServiceTestSuite) TestGenerateRecordsHistory() {
	suite.prepareWorkflow()

	var updates [][]models.GeneratedImageEntry
	events.Subscribe(suite.bus, events.GeneratedImagesUpdated, func(e []models.GeneratedImageEntry) { updates = append(updates, e) })

	gen, err := suite.service.Generate(suite.ctx, "  studio portrait ")
	require.NoError(suite.T(), err)

	require.Len(suite.T(), suite.catalog.requests, 1)
	req := suite.catalog.requests[0]
	assert.Equal(suite.T(), "studio portrait", req.UserPrompt)
	assert.True(suite.T(), strings.HasSuffix(req.Prompt, "Original user prompt: studio portrait"))
	assert.Equal(suite.T(), []byte("front"), req.Costume.Data)
	assert.Equal(suite.T(), "costume_image.jpg", req.Costume.Filename)
	assert.Equal(suite.T(), []byte("face"), req.Head.Data)
	assert.Equal(suite.T(), "image/png", req.Head.ContentType)
	assert.Equal(suite.T(), "head_image.jpg", req.Head.Filename)
	assert.Equal(suite.T(), []byte("logo"), req.Logo.Data)
	assert.Equal(suite.T(), []string{"BLACK", "WHITE"}, req.SelectedColors)
	assert.Equal(suite.T(), []string{
		"https://cdn.example.com/5001-front.jpg",
		"https://cdn.example.com/logo.png",
	}, suite.catalog.fetched)

	assert.Equal(suite.T(), OutputAssets, gen.Output.Kind)
	require.NotNil(suite.T(), gen.Entry)
	assert.Equal(suite.T(), "https://cdn.example.com/out-black.jpg", gen.Entry.Image)
	assert.Equal(suite.T(), models.ImageSourceURL, gen.Entry.Source)
	assert.Equal(suite.T(), "studio portrait", gen.Entry.Prompt)
	assert.Equal(suite.T(), "Staple Tee", gen.Entry.Product.StyleName)
	assert.NotEmpty(suite.T(), gen.Entry.ID)

	history := suite.store.GeneratedImages(suite.ctx)
	require.Len(suite.T(), history, 1)
	assert.Equal(suite.T(), gen.Entry.ID, history[0].ID)
	assert.Len(suite.T(), updates, 1)

	assert.Equal(suite.T(), "studio portrait", suite.store.Workflow(suite.ctx).Prompt)
}

func (suite *ServiceTestSuite) TestGeneratePreconditions() {
	_, err := suite.service.Generate(suite.ctx, "x")
	assert.ErrorIs(suite.T(), err, ErrNoWorkflow)

	_, err = suite.service.SelectProduct(suite.ctx, suite.product, []string{"BLACK"})
	require.NoError(suite.T(), err)
	_, err = suite.service.Generate(suite.ctx, "x")
	assert.ErrorIs(suite.T(), err, ErrArtworkRequired)

	suite.prepareWorkflow()
	_, err = suite.service.Generate(suite.ctx, "   ")
	assert.ErrorIs(suite.T(), err, ErrPromptRequired)

	suite.catalog.images = nil
	_, err = suite.service.Generate(suite.ctx, "x")
	assert.ErrorIs(suite.T(), err, ErrCostumeRequired)

	assert.Empty(suite.T(), suite.catalog.requests)
}

func (suite *ServiceTestSuite) TestGenerateDropsColoursNoLongerPublished() {
	suite.prepareWorkflow()
	_, err := suite.store.PublishProducts(suite.ctx, []models.SavedProduct{{
		StyleCode:      "5001",
		StyleName:      "Staple Tee",
		SelectedColors: []string{"WHITE"},
	}})
	suite.Require().NoError(err)

	gen, err := suite.service.Generate(suite.ctx, "x")
	require.NoError(suite.T(), err)

	require.Len(suite.T(), suite.catalog.requests, 1)
	assert.Equal(suite.T(), []string{"WHITE"}, suite.catalog.requests[0].SelectedColors)
	assert.Equal(suite.T(), []string{"WHITE"}, gen.Entry.SelectedColors)
	assert.Equal(suite.T(), []string{"WHITE"}, suite.store.Workflow(suite.ctx).SelectedColors)
}

func (suite *ServiceTestSuite) TestGenerateRejectsWithdrawnProduct() {
	suite.prepareWorkflow()
	_, err := suite.store.PublishProducts(suite.ctx, []models.SavedProduct{{
		StyleCode:      "5001",
		StyleName:      "Staple Tee",
		SelectedColors: []string{"NAVY"},
	}})
	suite.Require().NoError(err)
	_, err = suite.service.Generate(suite.ctx, "x")
	assert.ErrorIs(suite.T(), err, ErrColorNotPublished)

	suite.Require().NoError(suite.store.ClearPublished(suite.ctx))
	_, err = suite.service.Generate(suite.ctx, "x")
	assert.ErrorIs(suite.T(), err, ErrProductNotPublished)

	assert.Empty(suite.T(), suite.catalog.requests)
}

func (suite *ServiceTestSuite) TestGenerateSoftFailureKeepsHistoryUntouched() {
	suite.prepareWorkflow()
	suite.catalog.result = &apiclient.GenerateResult{
		StatusCode: http.StatusOK,
		Envelope: models.GenerateEnvelope{
			Success: true,
			Data:    json.RawMessage(`{"success":false,"detail":[{"msg":"face not detected"}]}`),
		},
	}

	_, err := suite.service.Generate(suite.ctx, "x")

	assert.EqualError(suite.T(), err, "face not detected")
	assert.Empty(suite.T(), suite.store.GeneratedImages(suite.ctx))
}

func (suite *ServiceTestSuite) TestGenerateStoresInlineImages() {
	suite.prepareWorkflow()
	suite.catalog.result = &apiclient.GenerateResult{
		StatusCode: http.StatusOK,
		Envelope:   models.GenerateEnvelope{Success: true, Data: json.RawMessage(`"QUJD"`)},
	}

	gen, err := suite.service.Generate(suite.ctx, "x")
	require.NoError(suite.T(), err)

	assert.Equal(suite.T(), models.ImageSourceBase64, gen.Entry.Source)
	assert.Equal(suite.T(), "data:image/jpeg;base64,QUJD", gen.Entry.Image)
	assert.Empty(suite.T(), gen.Entry.Assets)
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceTestSuite))
}
