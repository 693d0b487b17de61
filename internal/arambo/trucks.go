package arambo

import (
	"context"
	"net/http"
)

const trucksResource = "trucks"

func (c *Client) Trucks(ctx context.Context) ([]Truck, error) {
	var trucks []Truck
	if err := c.getCachedJSON(ctx, trucksResource, "/trucks", &trucks); err != nil {
		return nil, err
	}
	return trucks, nil
}

func (c *Client) Truck(ctx context.Context, id string) (*Truck, error) {
	var truck Truck
	if err := c.getCachedJSON(ctx, trucksResource, "/trucks/"+id, &truck); err != nil {
		return nil, err
	}
	return &truck, nil
}

func (c *Client) CreateTruck(ctx context.Context, truck Truck) (*Truck, error) {
	var created Truck
	if err := c.doJSON(ctx, requestParams{
		resource: trucksResource,
		method:   http.MethodPost,
		path:     "/trucks",
		body:     truck,
	}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateTruck(ctx context.Context, id string, fields map[string]any) (*Truck, error) {
	var updated Truck
	if err := c.doJSON(ctx, requestParams{
		resource:      trucksResource,
		method:        http.MethodPut,
		path:          "/trucks/" + id,
		body:          fields,
		authenticated: true,
	}, &updated); err != nil {
		return nil, err
	}
	c.invalidate(trucksResource, "/trucks/"+id)
	return &updated, nil
}

func (c *Client) DeleteTruck(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, requestParams{
		resource:      trucksResource,
		method:        http.MethodDelete,
		path:          "/trucks/" + id,
		authenticated: true,
	}, nil); err != nil {
		return err
	}
	c.invalidate(trucksResource, "/trucks/"+id)
	return nil
}
