package models

// RouteResponse mirrors store.StaticRoute for GET /routes.
type RouteResponse struct {
	ID          int64  `json:"id"`
	Destination string `json:"destination"`
	Netmask     string `json:"netmask"`
	Gateway     string `json:"gateway"`
}

// StaticRouteRequest is the body for POST /routes.
type StaticRouteRequest struct {
	Destination string `json:"destination"`
	Netmask     string `json:"netmask"`
	Gateway     string `json:"gateway"`
}
