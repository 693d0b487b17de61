package arambo

import (
	"context"
	"net/http"
)

const tripsResource = "trips"

func (c *Client) Trips(ctx context.Context) ([]Trip, error) {
	var trips []Trip
	if err := c.getCachedJSON(ctx, tripsResource, "/trips", &trips); err != nil {
		return nil, err
	}
	return trips, nil
}

func (c *Client) Trip(ctx context.Context, id string) (*Trip, error) {
	var trip Trip
	if err := c.getCachedJSON(ctx, tripsResource, "/trips/"+id, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (c *Client) CreateTrip(ctx context.Context, trip Trip) (*Trip, error) {
	var created Trip
	if err := c.doJSON(ctx, requestParams{
		resource: tripsResource,
		method:   http.MethodPost,
		path:     "/trips",
		body:     trip,
	}, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateTrip(ctx context.Context, id string, fields map[string]any) (*Trip, error) {
	var updated Trip
	if err := c.doJSON(ctx, requestParams{
		resource:      tripsResource,
		method:        http.MethodPut,
		path:          "/trips/" + id,
		body:          fields,
		authenticated: true,
	}, &updated); err != nil {
		return nil, err
	}
	c.invalidate(tripsResource, "/trips/"+id)
	return &updated, nil
}

func (c *Client) DeleteTrip(ctx context.Context, id string) error {
	if err := c.doJSON(ctx, requestParams{
		resource:      tripsResource,
		method:        http.MethodDelete,
		path:          "/trips/" + id,
		authenticated: true,
	}, nil); err != nil {
		return err
	}
	c.invalidate(tripsResource, "/trips/"+id)
	return nil
}
