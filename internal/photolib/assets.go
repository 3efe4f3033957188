package photolib

import "context"

// Asset is a single photo in the platform library.
type Asset struct {
	Identifier       string `json:"identifier"`
	URI              string `json:"uri"`
	CreationDate     string `json:"creationDate"`
	ModificationDate string `json:"modificationDate"`
	Hidden           bool   `json:"is_hidden"`
}

type permissionResponse struct {
	Granted bool `json:"granted"`
}

type mutationRequest struct {
	Identifiers []string `json:"identifiers"`
}

type mutationResponse struct {
	Affected int `json:"affected"`
}

// RequestPermission asks the platform for write access to the photo library.
// A denial is not an error; it is reported through the bool.
func (c *Client) RequestPermission(ctx context.Context) (bool, error) {
	result, err := doPostJSON[permissionResponse](ctx, c, "permissions/photos", nil)
	if err != nil {
		return false, err
	}
	return result.Granted, nil
}

// ListAssets retrieves the library's photo assets. Hidden assets are excluded
// unless includeHidden is set.
func (c *Client) ListAssets(ctx context.Context, includeHidden bool) ([]Asset, error) {
	endpoint := "assets"
	if includeHidden {
		endpoint += "?include_hidden=true"
	}
	result, err := doGetJSON[[]Asset](ctx, c, endpoint)
	if err != nil {
		return nil, err
	}
	return *result, nil
}

// Hide marks the given assets hidden and returns how many the platform
// actually touched. An empty identifier list is a no-op.
func (c *Client) Hide(ctx context.Context, identifiers []string) (int, error) {
	return c.mutate(ctx, "assets/hide", identifiers)
}

// Delete removes the given assets from the library and returns how many the
// platform actually touched. An empty identifier list is a no-op.
func (c *Client) Delete(ctx context.Context, identifiers []string) (int, error) {
	return c.mutate(ctx, "assets/delete", identifiers)
}

func (c *Client) mutate(ctx context.Context, endpoint string, identifiers []string) (int, error) {
	if len(identifiers) == 0 {
		return 0, nil
	}
	result, err := doPostJSON[mutationResponse](ctx, c, endpoint, mutationRequest{Identifiers: identifiers})
	if err != nil {
		return 0, err
	}
	return result.Affected, nil
}
