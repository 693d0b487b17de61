package arambo

import (
	"context"
	"net/http"
)

const furnitureResource = "furniture"

// furnitureListEnvelope: the furniture endpoint wraps lists in {data: [...]},
// unlike the other resources.
type furnitureListEnvelope struct {
	Data []Furniture `json:"data"`
}

func (c *Client) FurnitureRequests(ctx context.Context, params map[string]string) ([]Furniture, error) {
	path := "/furniture" + encodeQuery(params)
	var envelope furnitureListEnvelope
	if err := c.getCachedJSON(ctx, furnitureResource, path, &envelope); err != nil {
		return nil, err
	}
	for i := range envelope.Data {
		envelope.Data[i].normalize()
	}
	return envelope.Data, nil
}

func (c *Client) FurnitureRequest(ctx context.Context, id string) (*Furniture, error) {
	var furniture Furniture
	if err := c.getCachedJSON(ctx, furnitureResource, "/furniture/"+id, &furniture); err != nil {
		return nil, err
	}
	furniture.normalize()
	return &furniture, nil
}

func (c *Client) CreateFurnitureRequest(ctx context.Context, furniture Furniture) (*Furniture, error) {
	var created Furniture
	if err := c.doJSON(ctx, requestParams{
		resource: furnitureResource,
		method:   http.MethodPost,
		path:     "/furniture",
		body:     furniture,
	}, &created); err != nil {
		return nil, err
	}
	created.normalize()
	return &created, nil
}

func (c *Client) UpdateFurnitureRequest(ctx context.Context, id string, fields map[string]any) (*Furniture, error) {
	var updated Furniture
	if err := c.doJSON(ctx, requestParams{
		resource:      furnitureResource,
		method:        http.MethodPut,
		path:          "/furniture/" + id,
		body:          fields,
		authenticated: true,
	}, &updated); err != nil {
		return nil, err
	}
	updated.normalize()
	c.invalidate(furnitureResource, "/furniture/"+id)
	return &updated, nil
}

func (c *Client) DeleteFurnitureRequest(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, requestParams{
		resource:      furnitureResource,
		method:        http.MethodDelete,
		path:          "/furniture/" + id,
		authenticated: true,
	}, nil); err != nil {
		return err
	}
	c.invalidate(furnitureResource, "/furniture/"+id)
	return nil
}

func (c *Client) FurnitureStats(ctx context.Context) (*FurnitureStats, error) {
	var stats FurnitureStats
	if err := c.getCachedJSON(ctx, furnitureResource, "/furniture/stats", &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
