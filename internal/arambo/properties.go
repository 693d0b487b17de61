package arambo

import (
	"context"
	"net/http"
	"net/url"
)

const propertiesResource = "properties"

// Properties lists properties, optionally filtered by query params
// (e.g. area, listingType, page).
func (c *Client) Properties(ctx context.Context, params map[string]string) ([]Property, error) {
	path := "/properties" + encodeQuery(params)
	var properties []Property
	if err := c.getCachedJSON(ctx, propertiesResource, path, &properties); err != nil {
		return nil, err
	}
	return properties, nil
}

func (c *Client) Property(ctx context.Context, id string) (*Property, error) {
	var property Property
	if err := c.getCachedJSON(ctx, propertiesResource, "/properties/"+id, &property); err != nil {
		return nil, err
	}
	return &property, nil
}

func (c *Client) CreateProperty(ctx context.Context, property Property) (*Property, error) {
	var created Property
	if err := c.doJSON(ctx, requestParams{
		resource: propertiesResource,
		method:   http.MethodPost,
		path:     "/properties",
		body:     property,
	}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// UpdateProperty PUTs a partial update. Authenticated.
func (c *Client) UpdateProperty(ctx context.Context, id string, fields map[string]any) (*Property, error) {
	var updated Property
	if err := c.doJSON(ctx, requestParams{
		resource:      propertiesResource,
		method:        http.MethodPut,
		path:          "/properties/" + id,
		body:          fields,
		authenticated: true,
	}, &updated); err != nil {
		return nil, err
	}
	c.invalidate(propertiesResource, "/properties/"+id)
	return &updated, nil
}

// DeleteProperty removes a property. Authenticated.
func (c *Client) DeleteProperty(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, requestParams{
		resource:      propertiesResource,
		method:        http.MethodDelete,
		path:          "/properties/" + id,
		authenticated: true,
	}, nil); err != nil {
		return err
	}
	c.invalidate(propertiesResource, "/properties/"+id)
	return nil
}

func (c *Client) PropertyStats(ctx context.Context) (*PropertyStats, error) {
	var stats PropertyStats
	if err := c.getCachedJSON(ctx, propertiesResource, "/properties/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

func encodeQuery(params map[string]string) string {
	if len(params) == 0 {
		return ""
	}
	values := url.Values{}
	for key, value := range params {
		values.Set(key, value)
	}
	return "?" + values.Encode()
}
