// internal/apiclient/catalog.go
package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/models"
	"github.com/JNVDSM/RedBarre-AI-ImageGenerationProject/internal/utils"
)

var ErrProductNotFound = errors.New("product not found")

// fetchList reads a {data: [...]} envelope. Failures are logged and yield an
// empty list.
func fetchList[T any](ctx context.Context, c *Client, path, operation string) []T {
	var env models.Envelope[[]T]
	if err := c.getJSON(ctx, path, &env); err != nil {
		c.log.WithError(err).WithFields(logrus.Fields{
			"operation": operation,
			"path":      path,
		}).Error("Error fetching list")
		return []T{}
	}
	if env.Data == nil {
		return []T{}
	}
	return env.Data
}

func (c *Client) FetchProducts(ctx context.Context) []models.Product {
	return fetchList[models.Product](ctx, c, "/api/products", "fetch_products")
}

func (c *Client) FetchProductImages(ctx context.Context, styleCode string) []models.ProductImage {
	if utils.ValidateVar(styleCode, "required,style_code") != nil {
		return []models.ProductImage{}
	}
	return fetchList[models.ProductImage](ctx, c, productPath(styleCode)+"/images", "fetch_product_images")
}

func (c *Client) FetchProductVariants(ctx context.Context, styleCode string) []models.Variant {
	if utils.ValidateVar(styleCode, "required,style_code") != nil {
		return []models.Variant{}
	}
	return fetchList[models.Variant](ctx, c, productPath(styleCode)+"/variants", "fetch_product_variants")
}

func (c *Client) FetchColours(ctx context.Context) []models.Colour {
	return fetchList[models.Colour](ctx, c, "/api/colours", "fetch_colours")
}

// ColourMap returns the swatch lookup keyed by uppercase colour name.
func (c *Client) ColourMap(ctx context.Context) map[string]models.Swatch {
	return models.ColourMap(c.FetchColours(ctx))
}

func (c *Client) FetchInventoryItems(ctx context.Context, skuFilter string) []models.InventoryItem {
	path := "/api/inventory/items?skuFilter=" + url.QueryEscape(skuFilter)
	return fetchList[models.InventoryItem](ctx, c, path, "fetch_inventory_items")
}

// ProductSizes lists the distinct sizes stocked for a style, optionally
// narrowed to one colour.
func (c *Client) ProductSizes(ctx context.Context, styleCode, colour string) []string {
	items := c.FetchInventoryItems(ctx, utils.SKUFilter(styleCode, colour))

	seen := make(map[string]struct{}, len(items))
	sizes := make([]string, 0, len(items))
	for _, item := range items {
		if item.Size == "" {
			continue
		}
		if _, dup := seen[item.Size]; dup {
			continue
		}
		seen[item.Size] = struct{}{}
		sizes = append(sizes, item.Size)
	}
	sort.Strings(sizes)
	return sizes
}

// FetchProductDetails returns the product document. Unlike the list
// endpoints it reports failures; a body without a style code is
// ErrProductNotFound.
func (c *Client) FetchProductDetails(ctx context.Context, styleCode string) (*models.Product, error) {
	if err := utils.ValidateVar(styleCode, "required,style_code"); err != nil {
		return nil, fmt.Errorf("invalid style code %q: %w", styleCode, err)
	}

	var body struct {
		models.Product
		Error string `json:"error"`
	}
	if err := c.getJSON(ctx, productPath(styleCode), &body); err != nil {
		c.log.WithError(err).WithField("style_code", styleCode).Error("Error fetching product details")
		return nil, fmt.Errorf("failed to fetch product %s: %w", styleCode, err)
	}
	if body.Error != "" {
		return nil, fmt.Errorf("failed to fetch product %s: %s", styleCode, body.Error)
	}
	if body.StyleCode == "" {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, styleCode)
	}

	product := body.Product
	return &product, nil
}

func productPath(styleCode string) string {
	return "/api/products/" + url.PathEscape(styleCode)
}
