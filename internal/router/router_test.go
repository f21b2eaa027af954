package router

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/apiclient"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/config"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/services"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

type generatorCall struct {
	fields map[string][]string
	files  map[string]string
}

type RouterTestSuite struct {
	suite.Suite
	upstream *httptest.Server
	cfg      *config.Config
	router   *gin.Engine
	stop     func()

	mu          sync.Mutex
	catalogHits map[string]int
	keys        []string
	rawQueries  []string
	calls       []generatorCall

	generatorStatus int
	generatorType   string
	generatorBody   []byte
}

func (suite *RouterTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)
}

func (suite *RouterTestSuite) SetupTest() {
	suite.catalogHits = map[string]int{}
	suite.keys = nil
	suite.rawQueries = nil
	suite.calls = nil
	suite.generatorStatus = http.StatusOK
	suite.generatorType = "application/json"
	suite.generatorBody = []byte(`{"images":[{"color":"BLACK","s3_url":"https://cdn.example.com/out.jpg"}]}`)

	suite.upstream = httptest.NewServer(http.HandlerFunc(suite.serveUpstream))
	suite.cfg = testConfig(suite.upstream.URL)
	suite.build(nil)
}

func (suite *RouterTestSuite) TearDownTest() {
	suite.stop()
	suite.upstream.Close()
}

func (suite *RouterTestSuite) build(cache services.Cache) {
	if suite.stop != nil {
		suite.stop()
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	r, limiter := Initialize(suite.cfg, cache, logger)
	suite.router = r
	suite.stop = limiter.Stop
}

func testConfig(upstream string) *config.Config {
	return &config.Config{
		Environment: "test",
		Server:      config.ServerConfig{Port: config.DefaultPort, MaxBodyBytes: 15 << 20},
		Catalog:     config.CatalogConfig{BaseURL: upstream, SubscriptionKey: "test-key", Timeout: 5},
		Generator:   config.GeneratorConfig{URL: upstream + "/generate", Timeout: 5, MaxUploadBytes: config.DefaultMaxUploadMB << 20},
		CORS:        config.CORSConfig{Origins: []string{config.DefaultCORSOrigin}},
		RateLimit:   config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
}

func (suite *RouterTestSuite) serveUpstream(w http.ResponseWriter, r *http.Request) {
	suite.mu.Lock()
	defer suite.mu.Unlock()

	if r.URL.Path == "/generate" {
		call := generatorCall{fields: map[string][]string{}, files: map[string]string{}}
		if err := r.ParseMultipartForm(1 << 20); err == nil {
			call.fields = r.MultipartForm.Value
			for name, headers := range r.MultipartForm.File {
				f, _ := headers[0].Open()
				data, _ := io.ReadAll(f)
				f.Close()
				call.files[name] = headers[0].Filename + ":" + string(data)
			}
		}
		suite.calls = append(suite.calls, call)
		w.Header().Set("Content-Type", suite.generatorType)
		w.WriteHeader(suite.generatorStatus)
		w.Write(suite.generatorBody)
		return
	}

	suite.catalogHits[r.URL.Path]++
	suite.keys = append(suite.keys, r.Header.Get("subscription-key"))
	suite.rawQueries = append(suite.rawQueries, r.URL.RawQuery)

	switch r.URL.Path {
	case "/catalog/products/":
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"data":[{"styleCode":"5001","styleName":"Staple Tee"}]}`))
	case "/catalog/products/5001":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"styleCode":"5001","styleName":"Staple Tee"}`))
	case "/catalog/products/5001/variants":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"sku":"5001-BLACK-M","colour":"BLACK"}]}`))
	case "/catalog/products/5001/images":
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("images unavailable"))
	case "/catalog/colours":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"colour":"BLACK","hex":"#000000"}]}`))
	case "/inventory/items/":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"sku":"5001-GREY MARLE-M","quantity":12}]`))
	default:
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("<html><body><h1>Style &amp; colour not found</h1><script>x()</script></body></html>"))
	}
}

func (suite *RouterTestSuite) do(method, target string, body io.Reader, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	for k, v := range header {
		req.Header[k] = v
	}
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (suite *RouterTestSuite) TestBannerAndHealth() {
	w := suite.do(http.MethodGet, "/", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), Banner, w.Body.String())
	assert.NotEmpty(suite.T(), w.Header().Get("X-Request-ID"))

	w = suite.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"status":"healthy"}`, w.Body.String())
}

func (suite *RouterTestSuite) TestCatalogPassthrough() {
	w := suite.do(http.MethodGet, "/api/products", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"data":[{"styleCode":"5001","styleName":"Staple Tee"}]}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/products/5001", nil, nil)
	assert.JSONEq(suite.T(), `{"styleCode":"5001","styleName":"Staple Tee"}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/products/5001/variants", nil, nil)
	assert.JSONEq(suite.T(), `{"data":[{"sku":"5001-BLACK-M","colour":"BLACK"}]}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/colours", nil, nil)
	assert.JSONEq(suite.T(), `{"data":[{"colour":"BLACK","hex":"#000000"}]}`, w.Body.String())

	for _, key := range suite.keys {
		assert.Equal(suite.T(), "test-key", key)
	}
	assert.Len(suite.T(), suite.keys, 4)
}

func (suite *RouterTestSuite) TestTextBodiesBecomeJSONStrings() {
	w := suite.do(http.MethodGet, "/api/products/5001/images", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `"images unavailable"`, w.Body.String())
}

func (suite *RouterTestSuite) TestUpstreamErrorKeepsStatus() {
	w := suite.do(http.MethodGet, "/api/products/9999", nil, nil)

	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
	body := decode(suite.T(), w)
	assert.Equal(suite.T(), "AS Colour API error: 404 Not Found", body["error"])
	assert.Equal(suite.T(), "Style & colour not found", body["details"])
}

func (suite *RouterTestSuite) TestInvalidStyleCodeNeverReachesUpstream() {
	w := suite.do(http.MethodGet, "/api/products/bad%20code!/variants", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), "Invalid style code", decode(suite.T(), w)["error"])
	assert.Empty(suite.T(), suite.catalogHits)
}

func (suite *RouterTestSuite) TestInventory() {
	w := suite.do(http.MethodGet, "/api/inventory/items", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.JSONEq(suite.T(), `{"error":"skuFilter parameter is required"}`, w.Body.String())

	w = suite.do(http.MethodGet, "/api/inventory/items?skuFilter=5001-GREY+MARLE", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"data":[{"sku":"5001-GREY MARLE-M","quantity":12}],"success":true}`, w.Body.String())
	assert.Equal(suite.T(), []string{"skuFilter=5001-GREY%20MARLE"}, suite.rawQueries)

	w = suite.do(http.MethodGet, "/api/inventory/items?skuFilter=nodash", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Len(suite.T(), suite.rawQueries, 1)
}

func (suite *RouterTestSuite) TestCatalogCache() {
	suite.cfg.Cache.TTL = 60
	suite.build(services.NewMemoryCache())

	for i := 0; i < 3; i++ {
		w := suite.do(http.MethodGet, "/api/products", nil, nil)
		require.Equal(suite.T(), http.StatusOK, w.Code)
		assert.JSONEq(suite.T(), `{"data":[{"styleCode":"5001","styleName":"Staple Tee"}]}`, w.Body.String())
	}
	assert.Equal(suite.T(), 1, suite.catalogHits["/catalog/products/"])

	suite.do(http.MethodGet, "/api/products/9999", nil, nil)
	suite.do(http.MethodGet, "/api/products/9999", nil, nil)
	assert.Equal(suite.T(), 2, suite.catalogHits["/catalog/products/9999"])
}

type part struct {
	field, filename, value string
	file               bool
}

func multipartBody(t *testing.T, parts ...part) (*bytes.Buffer, http.Header) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, p := range parts {
		if p.file {
			fw, err := w.CreateFormFile(p.field, p.filename)
			require.NoError(t, err)
			_, err = fw.Write([]byte(p.value))
			require.NoError(t, err)
			continue
		}
		require.NoError(t, w.WriteField(p.field, p.value))
	}
	require.NoError(t, w.Close())
	return &buf, http.Header{"Content-Type": {w.FormDataContentType()}}
}

func (suite *RouterTestSuite) TestGenerateRequiresCostume() {
	body, header := multipartBody(suite.T(),
		part{field: "prompt", value: "studio"},
		part{field: "head_image", filename: "face.png", value: "face", file: true},
	)
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.JSONEq(suite.T(), `{"success":false,"error":"Costume image is required."}`, w.Body.String())
	assert.Empty(suite.T(), suite.calls)

	w = suite.do(http.MethodPost, "/api/generate-image", nil, nil)
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Empty(suite.T(), suite.calls)
}

func (suite *RouterTestSuite) TestGenerateForwardsRenamedFields() {
	body, header := multipartBody(suite.T(),
		part{field: "prompt", value: "full prompt"},
		part{field: "user_prompt", value: "studio"},
		part{field: "selectedColors", value: "BLACK"},
		part{field: "selectedColors", value: "WHITE"},
		part{field: "head_image", filename: "face.png", value: "face", file: true},
		part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true},
		part{field: "logo_image", filename: "logo.png", value: "logo", file: true},
	)
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"success":true,"data":{"images":[{"color":"BLACK","s3_url":"https://cdn.example.com/out.jpg"}]}}`, w.Body.String())

	require.Len(suite.T(), suite.calls, 1)
	call := suite.calls[0]
	assert.Equal(suite.T(), []string{"full prompt"}, call.fields["prompt"])
	assert.Equal(suite.T(), []string{"studio"}, call.fields["user_prompt"])
	assert.Equal(suite.T(), []string{"BLACK", "WHITE"}, call.fields["colors"])
	assert.NotContains(suite.T(), call.fields, "image_type")
	assert.Equal(suite.T(), map[string]string{
		"first_image":  "face.png:face",
		"second_image": "tee.jpg:tee",
		"logo_image":   "logo.png:logo",
	}, call.files)
}

func (suite *RouterTestSuite) TestGenerateAcceptsLargeArtwork() {
	face := strings.Repeat("f", 8<<20)
	logo := strings.Repeat("l", 8<<20)
	body, header := multipartBody(suite.T(),
		part{field: "head_image", filename: "face.png", value: face, file: true},
		part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true},
		part{field: "logo_image", filename: "logo.png", value: logo, file: true},
	)
	require.Greater(suite.T(), body.Len(), int(suite.cfg.Server.MaxBodyBytes))

	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	require.Len(suite.T(), suite.calls, 1)
	assert.Equal(suite.T(), "face.png:"+face, suite.calls[0].files["first_image"])
	assert.Equal(suite.T(), "logo.png:"+logo, suite.calls[0].files["logo_image"])
}

func (suite *RouterTestSuite) TestGenerateUploadLimit() {
	suite.cfg.Generator.MaxUploadBytes = 1 << 20
	suite.build(nil)

	body, header := multipartBody(suite.T(),
		part{field: "costume_image", filename: "tee.jpg", value: strings.Repeat("t", 2<<20), file: true},
	)
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
	assert.Equal(suite.T(), false, decode(suite.T(), w)["success"])
	assert.Empty(suite.T(), suite.calls)
}

func (suite *RouterTestSuite) TestGenerateSingleColourIsTrimmed() {
	body, header := multipartBody(suite.T(),
		part{field: "selectedColors", value: "  NAVY "},
		part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true},
	)
	suite.do(http.MethodPost, "/api/generate-image", body, header)

	require.Len(suite.T(), suite.calls, 1)
	assert.Equal(suite.T(), []string{"NAVY"}, suite.calls[0].fields["colors"])
}

func (suite *RouterTestSuite) TestGenerateUpstreamFailureKeepsStatus() {
	suite.generatorStatus = http.StatusBadGateway
	suite.generatorType = "text/plain"
	suite.generatorBody = []byte("model offline")

	body, header := multipartBody(suite.T(), part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true})
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusBadGateway, w.Code)
	assert.JSONEq(suite.T(), `{"success":false,"data":"model offline"}`, w.Body.String())
}

func (suite *RouterTestSuite) TestGenerateBinaryIsBase64() {
	suite.generatorType = "image/jpeg"
	suite.generatorBody = []byte("ABC")

	body, header := multipartBody(suite.T(), part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true})
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.JSONEq(suite.T(), `{"success":true,"data":"QUJD"}`, w.Body.String())
}

func (suite *RouterTestSuite) TestGenerateTransportFailure() {
	suite.cfg.Generator.URL = "http://127.0.0.1:1/generate"
	suite.build(nil)

	body, header := multipartBody(suite.T(), part{field: "costume_image", filename: "tee.jpg", value: "tee", file: true})
	w := suite.do(http.MethodPost, "/api/generate-image", body, header)

	assert.Equal(suite.T(), http.StatusInternalServerError, w.Code)
	resp := decode(suite.T(), w)
	assert.Equal(suite.T(), false, resp["success"])
	assert.NotEmpty(suite.T(), resp["error"])
}

func (suite *RouterTestSuite) TestPreflight() {
	w := suite.do(http.MethodOptions, "/api/generate-image", nil, nil)
	assert.Equal(suite.T(), http.StatusNoContent, w.Code)

	w = suite.do(http.MethodGet, "/health", nil, http.Header{"Origin": {config.DefaultCORSOrigin}})
	assert.Equal(suite.T(), config.DefaultCORSOrigin, w.Header().Get("Access-Control-Allow-Origin"))
}

func (suite *RouterTestSuite) TestStaticClient() {
	dir := suite.T().TempDir()
	require.NoError(suite.T(), os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(suite.T(), os.MkdirAll(filepath.Join(dir, "assets"), 0o755))
	require.NoError(suite.T(), os.WriteFile(filepath.Join(dir, "assets", "app.js"), []byte("console.log(1)"), 0o644))
	suite.cfg.Static.Dir = dir
	suite.build(nil)

	w := suite.do(http.MethodGet, "/assets/app.js", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "console.log(1)", w.Body.String())

	w = suite.do(http.MethodGet, "/creator/generate", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	assert.Equal(suite.T(), "<html>app</html>", w.Body.String())

	w = suite.do(http.MethodPost, "/creator/generate", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestWithoutStaticClient() {
	suite.cfg.Static.Dir = filepath.Join(suite.T().TempDir(), "missing")
	suite.build(nil)

	w := suite.do(http.MethodGet, "/creator", nil, nil)
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RouterTestSuite) TestRateLimit() {
	suite.cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	suite.build(nil)

	w := suite.do(http.MethodGet, "/api/colours", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
	w = suite.do(http.MethodGet, "/api/colours", nil, nil)
	assert.Equal(suite.T(), http.StatusTooManyRequests, w.Code)

	w = suite.do(http.MethodGet, "/health", nil, nil)
	assert.Equal(suite.T(), http.StatusOK, w.Code)
}

func (suite *RouterTestSuite) TestClientHonoursRetryAfter() {
	suite.cfg.RateLimit = config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1}
	suite.build(nil)
	server := httptest.NewServer(suite.router)
	defer server.Close()

	var waits []time.Duration
	client := apiclient.New(server.URL, apiclient.WithSleeper(func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return utils.SleepContext(ctx, d)
	}))

	require.NotEmpty(suite.T(), client.FetchColours(context.Background()))
	colours := client.FetchColours(context.Background())

	assert.Equal(suite.T(), []time.Duration{time.Second}, waits)
	require.Len(suite.T(), colours, 1)
	assert.Equal(suite.T(), "BLACK", colours[0].Colour)
}

func TestRouterSuite(t *testing.T) {
	suite.Run(t, new(RouterTestSuite))
}
