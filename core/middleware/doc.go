// Package middleware groups the fiber middleware shared by every feature.
//
//   - rayid: assigns each request an id (X-Ray-ID) stored in locals as "ray_id"
//     and picked up by logger.WithRayID.
//   - auth: checks the X-API-Key header against server.api_key.
//
// rayid must be registered first so even rejected requests are traceable.
package middleware
